package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

var (
	runServerURL string
	runTimeout   int
	runUserID    string
)

var runCmd = &cobra.Command{
	Use:   "run [code]",
	Short: "Run code against a running runner server's /run-code endpoint",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		code := args[0]

		payload, _ := json.Marshal(map[string]any{
			"code":    code,
			"user_id": runUserID,
			"timeout": runTimeout,
		})

		resp, err := http.Post(runServerURL+"/run-code", "application/json", bytes.NewReader(payload))
		if err != nil {
			fmt.Printf("failed to connect: %v\nis the server running?\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		var out struct {
			Stdout     string   `json:"stdout"`
			Stderr     string   `json:"stderr"`
			ReturnCode int      `json:"return_code"`
			Error      string   `json:"error"`
			Details    []string `json:"details"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			fmt.Printf("bad response: %v\n", err)
			os.Exit(1)
		}

		if out.Error != "" {
			fmt.Fprintf(os.Stderr, "error: %s\n", out.Error)
			for _, d := range out.Details {
				fmt.Fprintf(os.Stderr, "  - %s\n", d)
			}
			os.Exit(1)
		}

		fmt.Print(out.Stdout)
		if out.Stderr != "" {
			fmt.Fprint(os.Stderr, out.Stderr)
		}
		os.Exit(out.ReturnCode)
	},
}

func init() {
	runCmd.Flags().StringVar(&runServerURL, "server", "http://localhost:8080", "runner server base URL")
	runCmd.Flags().IntVar(&runTimeout, "timeout", 10, "execution deadline in seconds")
	runCmd.Flags().StringVar(&runUserID, "user", "", "submitter id (defaults to anonymous)")
	RootCmd.AddCommand(runCmd)
}

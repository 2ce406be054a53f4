package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/akshayaggarwal99/runner/internal/screener"
)

var screenCmd = &cobra.Command{
	Use:   "screen [file]",
	Short: "Run the static pre-screener against a file or stdin",
	Long: `screen reports the same forbidden-construct violations the runner
server checks before handing code to a sandbox, without spending a pool
slot. Pass a file path, or omit it to read from stdin.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var src []byte
		var err error
		if len(args) == 1 {
			src, err = os.ReadFile(args[0])
		} else {
			src, err = io.ReadAll(os.Stdin)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}

		violations := screener.Check(string(src))
		if len(violations) == 0 {
			fmt.Println("clean: no forbidden constructs found")
			return
		}

		fmt.Printf("rejected: %d violation(s) found\n", len(violations))
		for _, v := range violations {
			fmt.Printf("  - %s\n", v)
		}
		os.Exit(1)
	},
}

func init() {
	RootCmd.AddCommand(screenCmd)
}

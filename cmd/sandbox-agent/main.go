// Command sandbox-agent is the in-container executor: a minimal HTTP
// server that runs exactly one submitted program at a time and reports its
// captured output, matching the original worker executor's contract.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultTimeout = 10 * time.Second

// execRequest is the agent's wire contract, mirrored by
// internal/executor.agentRequest on the runner side.
type execRequest struct {
	Code    string `json:"code"`
	Timeout int    `json:"timeout"`
}

type execResponse struct {
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ReturnCode int    `json:"return_code"`
	Error      string `json:"error,omitempty"`
}

// agent serializes execution: the sandbox hosts exactly one in-flight
// execution at a time, enforced here (not by the pool allocator) by
// refusing overlapping requests rather than queueing them.
type agent struct {
	mu sync.Mutex
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	a := &agent{}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.handleHealth)
	mux.HandleFunc("/execute", a.handleExecute)

	log.Info().Msg("sandbox agent listening on :8000")
	if err := http.ListenAndServe(":8000", mux); err != nil {
		log.Fatal().Err(err).Msg("agent server exited")
	}
}

func (a *agent) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (a *agent) handleExecute(w http.ResponseWriter, r *http.Request) {
	if !a.mu.TryLock() {
		writeJSON(w, http.StatusConflict, execResponse{Error: "sandbox busy"})
		return
	}
	defer a.mu.Unlock()

	var req execRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, execResponse{Error: "invalid request body"})
		return
	}

	timeout := defaultTimeout
	if req.Timeout > 0 {
		timeout = time.Duration(req.Timeout) * time.Second
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "python3", "-c", req.Code)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		writeJSON(w, http.StatusRequestTimeout, execResponse{Error: "execution timed out"})
		return
	}

	returnCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			returnCode = exitErr.ExitCode()
		} else {
			writeJSON(w, http.StatusInternalServerError, execResponse{Error: err.Error()})
			return
		}
	}

	writeJSON(w, http.StatusOK, execResponse{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		ReturnCode: returnCode,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

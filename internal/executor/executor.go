// Package executor implements the Execution Driver: one (code, slot,
// deadline) round trip against a sandbox agent's HTTP executor, with outcome
// normalization into the five-way taxonomy the rest of the service reports.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Outcome classifies an execution's result. Never collapsed into a bare
// error — callers switch on this, not on error strings.
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomeRejected       Outcome = "rejected"
	OutcomeTimeout        Outcome = "timeout"
	OutcomeNoCapacity     Outcome = "no_capacity"
	OutcomeInfrastructure Outcome = "infrastructure"
)

// Result is the tagged union described by the data model: exactly one of
// the five outcomes, with the fields that outcome defines populated.
type Result struct {
	Outcome Outcome

	// Success
	Stdout     string
	Stderr     string
	ReturnCode int

	// Rejected
	Violations []string

	// Infrastructure
	Message string
}

// Submission is the immutable request passed into the Execution Driver.
type Submission struct {
	Code     string
	UserID   string
	Deadline time.Duration
}

// agentRequest/agentResponse mirror the sandbox agent's wire contract.
type agentRequest struct {
	Code    string `json:"code"`
	Timeout int    `json:"timeout"`
}

type agentResponse struct {
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ReturnCode int    `json:"return_code"`
	Error      string `json:"error"`
}

// transportSlack is added to the deadline for the HTTP client's own
// timeout. The sandbox enforces the real deadline and always reports its
// own 408 first; this is pure slack so a legitimate timeout surfaces as a
// sandbox-reported Timeout rather than a transport cut-off.
const transportSlack = 5 * time.Second

// Execute posts code to the sandbox agent listening at addr and normalizes
// the response into a Result. It does not touch the pool — callers are
// responsible for acquiring/releasing the slot and emitting observer events
// around this call.
func Execute(ctx context.Context, addr string, sub Submission) Result {
	deadline := sub.Deadline
	if deadline <= 0 {
		deadline = 10 * time.Second
	}

	body, err := json.Marshal(agentRequest{
		Code:    sub.Code,
		Timeout: int(deadline.Seconds()),
	})
	if err != nil {
		return Result{Outcome: OutcomeInfrastructure, Message: fmt.Sprintf("encode request: %v", err)}
	}

	client := &http.Client{Timeout: deadline + transportSlack}

	reqCtx, cancel := context.WithTimeout(ctx, deadline+transportSlack)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, "http://"+addr+"/execute", bytes.NewReader(body))
	if err != nil {
		return Result{Outcome: OutcomeInfrastructure, Message: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		elapsed := time.Since(start)
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() || errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			if elapsed >= deadline {
				return Result{Outcome: OutcomeTimeout}
			}
			return Result{Outcome: OutcomeInfrastructure, Message: fmt.Sprintf("sandbox unreachable: %v", err)}
		}
		return Result{Outcome: OutcomeInfrastructure, Message: fmt.Sprintf("sandbox unreachable: %v", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Outcome: OutcomeInfrastructure, Message: fmt.Sprintf("read response: %v", err)}
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var out agentResponse
		if err := json.Unmarshal(raw, &out); err != nil {
			return Result{Outcome: OutcomeInfrastructure, Message: fmt.Sprintf("unparseable response: %v", err)}
		}
		return Result{
			Outcome:    OutcomeSuccess,
			Stdout:     out.Stdout,
			Stderr:     out.Stderr,
			ReturnCode: out.ReturnCode,
		}
	case http.StatusRequestTimeout:
		return Result{Outcome: OutcomeTimeout}
	default:
		var out agentResponse
		msg := string(raw)
		if err := json.Unmarshal(raw, &out); err == nil && out.Error != "" {
			msg = out.Error
		}
		return Result{Outcome: OutcomeInfrastructure, Message: msg}
	}
}

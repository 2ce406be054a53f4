// Package observer implements the in-process fan-out of pool and execution
// events described by the Observation Bus component: any number of
// subscribers (a push-stream dashboard, a log sink, a test) can watch
// execution_start/execution_end/pool_status/stats/history events without the
// allocator or execution driver knowing anything about them.
package observer

// Kind identifies the shape of an Event's Data payload.
type Kind string

const (
	KindExecutionStart Kind = "execution_start"
	KindExecutionEnd   Kind = "execution_end"
	KindPoolStatus     Kind = "pool_status"
	KindStats          Kind = "stats"
	KindHistory        Kind = "history"
)

// Event is a plain, immutable snapshot — never a live reference to pool or
// execution state, so a subscriber holding onto one cannot keep a slot or
// execution record alive past its natural lifetime.
type Event struct {
	Kind Kind `json:"type"`
	Data any  `json:"data,omitempty"`
}

// ExecutionStart is the payload for a KindExecutionStart event.
type ExecutionStart struct {
	ExecutionID string `json:"execution_id"`
	UserID      string `json:"user_id"`
	Code        string `json:"code"`
	Worker      string `json:"worker"`
}

// ExecutionEnd is the payload for a KindExecutionEnd event.
type ExecutionEnd struct {
	ExecutionID string `json:"execution_id"`
	DurationMS  int64  `json:"duration_ms"`
	Success     bool   `json:"success"`
}

// WorkerStatus describes one slot inside a PoolStatus snapshot.
type WorkerStatus struct {
	Name        string  `json:"name"`
	Address     string  `json:"port"`
	Busy        bool    `json:"busy"`
	Healthy     bool    `json:"healthy"`
	ExecStartMS *int64  `json:"exec_start,omitempty"`
	CurrentUser *string `json:"current_user,omitempty"`
}

// PoolStatus is the payload for a KindPoolStatus event.
type PoolStatus struct {
	Workers []WorkerStatus `json:"workers"`
}

// Stats is the payload for a KindStats event.
type Stats struct {
	TotalExecutions int64   `json:"totalExecutions"`
	TotalExecTimeMS int64   `json:"totalExecTime"`
	TotalLines      int64   `json:"totalLines"`
	SuccessCount    int64   `json:"successCount"`
	AvgExecTimeMS   float64 `json:"avgExecTimeMs"`
	AvgLines        float64 `json:"avgLines"`
	SuccessRate     float64 `json:"successRatePct"`
}

// ExecutionSnapshot is one entry in a KindHistory event's Executions slice.
type ExecutionSnapshot struct {
	ExecutionID string `json:"execution_id"`
	UserID      string `json:"user_id"`
	Code        string `json:"code"`
	Worker      string `json:"worker"`
	StartTime   int64  `json:"start_time"`
	DurationMS  *int64 `json:"duration_ms,omitempty"`
	Success     bool   `json:"success"`
}

// History is the payload for a KindHistory event.
type History struct {
	Executions []ExecutionSnapshot `json:"executions"`
}

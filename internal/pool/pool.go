package pool

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/akshayaggarwal99/runner/internal/executor"
	"github.com/akshayaggarwal99/runner/internal/observer"
)

// historyCapacity is the bounded recent-history buffer size.
const historyCapacity = 100

// healthProbeTimeout bounds each slot's /health probe during Health().
const healthProbeTimeout = 5 * time.Second

// Pool is the Pool Allocator: a fixed-size, ordered list of sandbox slots
// handed out atomically to at most one in-flight execution each. The mutex
// guards only the bookkeeping (Busy/LastUsed/Current, and the bounded
// history/stats); it is never held across the sandbox HTTP round trip.
type Pool struct {
	mu    sync.Mutex
	slots []*Slot

	history *history
	stats   stats

	bus *observer.Bus

	healthClient *http.Client
}

// New constructs a Pool over the given slots, in the order they should be
// scanned for acquisition (lowest index first — deliberate hot-path
// preference, not LRU).
func New(slots []*Slot, bus *observer.Bus) *Pool {
	return &Pool{
		slots:        slots,
		history:      newHistory(historyCapacity),
		bus:          bus,
		healthClient: &http.Client{Timeout: healthProbeTimeout},
	}
}

// Acquire scans slots in construction order and returns the first idle one
// after marking it busy and stamping LastUsed. Never blocks; returns
// (nil, false) immediately if every slot is busy or unhealthy.
func (p *Pool) Acquire() (*Slot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, s := range p.slots {
		if !s.Busy && !s.Unhealthy {
			s.Busy = true
			s.LastUsed = time.Now()
			return s, true
		}
	}
	return nil, false
}

// Release clears busy and detaches the current execution. Idempotent.
func (p *Pool) Release(slot *Slot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	slot.Busy = false
	slot.Current = nil
}

// Execute composes Acquire, the execution driver, and Release. The
// allocator's guard is held only for bookkeeping (Busy, Current, the
// finalized record, history and stats) — the sandbox HTTP round trip runs
// unlocked. Observer events fire outside the guard too.
func (p *Pool) Execute(ctx context.Context, code string, deadline time.Duration, userID string) executor.Result {
	if userID == "" {
		userID = "anonymous"
	}

	slot, ok := p.Acquire()
	if !ok {
		return executor.Result{Outcome: executor.OutcomeNoCapacity}
	}

	exec := Execution{
		ID:        uuid.NewString(),
		UserID:    userID,
		Code:      code,
		SlotName:  slot.Name,
		StartTime: time.Now(),
	}

	p.mu.Lock()
	slot.Current = &exec
	p.mu.Unlock()

	p.publish(observer.KindExecutionStart, observer.ExecutionStart{
		ExecutionID: exec.ID,
		UserID:      exec.UserID,
		Code:        exec.Code,
		Worker:      slot.Name,
	})
	p.publishPoolStatus()

	result := executor.Execute(ctx, slot.Address, executor.Submission{
		Code:     code,
		UserID:   userID,
		Deadline: deadline,
	})

	endTime := time.Now()
	durationMS := endTime.Sub(exec.StartTime).Milliseconds()
	success := result.Outcome == executor.OutcomeSuccess

	// slot.Current still points at exec until Release below, and Health()
	// reads *s.Current under p.mu concurrently — every write to the shared
	// exec value, not just the history/stats bookkeeping, must happen
	// under the guard.
	p.mu.Lock()
	exec.EndTime = endTime
	exec.DurationMS = durationMS
	exec.Success = success
	exec.Done = true
	p.history.append(exec)
	p.stats.record(exec.DurationMS, countLines(code), exec.Success)
	p.mu.Unlock()

	p.publish(observer.KindExecutionEnd, observer.ExecutionEnd{
		ExecutionID: exec.ID,
		DurationMS:  exec.DurationMS,
		Success:     exec.Success,
	})

	p.Release(slot)
	p.publishPoolStatus()

	return result
}

func countLines(code string) int {
	if code == "" {
		return 0
	}
	n := 1
	for _, r := range code {
		if r == '\n' {
			n++
		}
	}
	return n
}

func (p *Pool) publish(kind observer.Kind, data any) {
	if p.bus == nil {
		return
	}
	p.bus.Publish(observer.Event{Kind: kind, Data: data})
}

// Snapshot is the read-time view of every slot's state, returned by Health.
type Snapshot struct {
	Total     int
	Available int
	Busy      int
	Unhealthy int
	Workers   []WorkerSnapshot
}

// WorkerSnapshot is one slot's entry in a Snapshot.
type WorkerSnapshot struct {
	Name      string
	Address   string
	State     State
	LastUsed  time.Time
	Execution *Execution
}

// Health probes every slot's /health endpoint with a bounded timeout and
// classifies it idle/busy/unhealthy. A failed probe only changes the
// reported snapshot — it never evicts or restarts the slot.
func (p *Pool) Health(ctx context.Context) Snapshot {
	p.mu.Lock()
	slotsCopy := make([]*Slot, len(p.slots))
	copy(slotsCopy, p.slots)
	p.mu.Unlock()

	snap := Snapshot{Total: len(slotsCopy)}
	for _, s := range slotsCopy {
		p.mu.Lock()
		busy := s.Busy
		addr := s.Address
		lastUsed := s.LastUsed
		var cur *Execution
		if s.Current != nil {
			c := *s.Current
			cur = &c
		}
		p.mu.Unlock()

		state := StateIdle
		if busy {
			state = StateBusy
			snap.Busy++
		} else if !p.probeHealthy(ctx, addr) {
			state = StateUnhealthy
			snap.Unhealthy++
		} else {
			snap.Available++
		}

		snap.Workers = append(snap.Workers, WorkerSnapshot{
			Name:      s.Name,
			Address:   addr,
			State:     state,
			LastUsed:  lastUsed,
			Execution: cur,
		})
	}
	return snap
}

func (p *Pool) probeHealthy(ctx context.Context, addr string) bool {
	reqCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, "http://"+addr+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := p.healthClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Stats returns the process-lifetime execution counters with derived
// averages and success rate computed on read.
func (p *Pool) Stats() StatsSnapshot {
	return p.stats.snapshot()
}

// History returns up to limit most-recent finalized executions.
func (p *Pool) History(limit int) []Execution {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.history.recent(limit)
}

func (p *Pool) publishPoolStatus() {
	if p.bus == nil {
		return
	}
	p.mu.Lock()
	workers := make([]observer.WorkerStatus, 0, len(p.slots))
	for _, s := range p.slots {
		ws := observer.WorkerStatus{
			Name:    s.Name,
			Address: s.Address,
			Busy:    s.Busy,
			Healthy: !s.Unhealthy,
		}
		if s.Current != nil {
			startMS := s.Current.StartTime.UnixMilli()
			ws.ExecStartMS = &startMS
			user := s.Current.UserID
			ws.CurrentUser = &user
		}
		workers = append(workers, ws)
	}
	p.mu.Unlock()

	p.bus.Publish(observer.Event{Kind: observer.KindPoolStatus, Data: observer.PoolStatus{Workers: workers}})
}

// Package api implements the Synchronous Ingress: the HTTP surface that
// runs the static screener then drives the pool allocator for one request,
// plus the dashboard's snapshot and push-stream endpoints.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/akshayaggarwal99/runner/internal/executor"
	"github.com/akshayaggarwal99/runner/internal/observer"
	"github.com/akshayaggarwal99/runner/internal/pool"
	"github.com/akshayaggarwal99/runner/internal/screener"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler wires the Synchronous Ingress to a live Pool and observer Bus.
type Handler struct {
	pool           *pool.Pool
	bus            *observer.Bus
	staticCheck    bool
	defaultTimeout time.Duration
	maxTimeout     time.Duration
}

// NewHandler constructs a Handler. staticCheck mirrors STATIC_CHECK: when
// true, every /run-code submission is screened before it reaches the pool.
// maxTimeout bounds a caller-supplied timeout per spec.md §3's "bounded by a
// server-configured maximum"; zero disables clamping.
func NewHandler(p *pool.Pool, bus *observer.Bus, staticCheck bool, defaultTimeout, maxTimeout time.Duration) *Handler {
	return &Handler{pool: p, bus: bus, staticCheck: staticCheck, defaultTimeout: defaultTimeout, maxTimeout: maxTimeout}
}

// RegisterRoutes wires every endpoint from spec.md §6 onto e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/run-code", h.runCode)
	e.GET("/health", h.health)
	e.GET("/dashboard/stats", h.dashboardStats)
	e.GET("/dashboard/history", h.dashboardHistory)
	e.GET("/dashboard", h.dashboardPage)
	e.GET("/ws/dashboard", h.dashboardStream)
}

// RunCodeRequest is the POST /run-code request body.
type RunCodeRequest struct {
	Code    string `json:"code"`
	UserID  string `json:"user_id"`
	Timeout int    `json:"timeout"`
}

func (h *Handler) runCode(c echo.Context) error {
	var req RunCodeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if h.staticCheck {
		if violations := screener.Check(req.Code); len(violations) > 0 {
			return c.JSON(http.StatusForbidden, map[string]any{
				"error":   "forbidden constructs found",
				"details": violations,
			})
		}
	}

	deadline := h.defaultTimeout
	if req.Timeout > 0 {
		deadline = time.Duration(req.Timeout) * time.Second
	}
	if h.maxTimeout > 0 && deadline > h.maxTimeout {
		deadline = h.maxTimeout
	}

	result := h.pool.Execute(c.Request().Context(), req.Code, deadline, req.UserID)
	return writeOutcome(c, result)
}

// writeOutcome maps an executor.Result onto the HTTP response shapes from
// spec.md §4.6, shared by both the synchronous and (conceptually) queue
// ingress paths.
func writeOutcome(c echo.Context, result executor.Result) error {
	switch result.Outcome {
	case executor.OutcomeSuccess:
		return c.JSON(http.StatusOK, map[string]any{
			"stdout":      result.Stdout,
			"stderr":      result.Stderr,
			"return_code": result.ReturnCode,
		})
	case executor.OutcomeTimeout:
		return c.JSON(http.StatusRequestTimeout, map[string]string{"error": "execution timed out"})
	case executor.OutcomeNoCapacity:
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "no available workers"})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": result.Message})
	}
}

func (h *Handler) health(c echo.Context) error {
	if h.pool == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "not initialized"})
	}

	snap := h.pool.Health(c.Request().Context())
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"pool": map[string]any{
			"total":     snap.Total,
			"available": snap.Available,
			"busy":      snap.Busy,
			"unhealthy": snap.Unhealthy,
			"workers":   snap.Workers,
		},
	})
}

func (h *Handler) dashboardStats(c echo.Context) error {
	snap := h.pool.Stats()
	return c.JSON(http.StatusOK, observer.Stats{
		TotalExecutions: snap.TotalExecutions,
		TotalExecTimeMS: snap.TotalExecTimeMS,
		TotalLines:      snap.TotalLines,
		SuccessCount:    snap.SuccessCount,
		AvgExecTimeMS:   snap.AvgExecTimeMS,
		AvgLines:        snap.AvgLines,
		SuccessRate:     snap.SuccessRatePct,
	})
}

func (h *Handler) dashboardHistory(c echo.Context) error {
	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := parsePositiveInt(raw); err == nil {
			limit = n
		}
	}

	executions := h.pool.History(limit)
	snapshots := make([]observer.ExecutionSnapshot, 0, len(executions))
	for _, e := range executions {
		snap := observer.ExecutionSnapshot{
			ExecutionID: e.ID,
			UserID:      e.UserID,
			Code:        e.Code,
			Worker:      e.SlotName,
			StartTime:   e.StartTime.UnixMilli(),
			Success:     e.Success,
		}
		if e.Done {
			d := e.DurationMS
			snap.DurationMS = &d
		}
		snapshots = append(snapshots, snap)
	}

	return c.JSON(http.StatusOK, observer.History{Executions: snapshots})
}

func parsePositiveInt(s string) (int, error) {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		n = n*10 + int(r-'0')
	}
	return n, nil
}

func (h *Handler) dashboardPage(c echo.Context) error {
	return c.HTML(http.StatusOK, dashboardHTML)
}

// dashboardStream upgrades to a WebSocket, sends an initial snapshot of the
// steady-state pool_status/stats/history events, then forwards every event
// the bus publishes as JSON text frames.
func (h *Handler) dashboardStream(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	id, events := h.bus.Subscribe()
	defer h.bus.Unsubscribe(id)

	poolSnap := h.pool.Health(c.Request().Context())
	workers := make([]observer.WorkerStatus, 0, len(poolSnap.Workers))
	for _, w := range poolSnap.Workers {
		ws2 := observer.WorkerStatus{
			Name:    w.Name,
			Address: w.Address,
			Busy:    w.State == pool.StateBusy,
			Healthy: w.State != pool.StateUnhealthy,
		}
		if w.Execution != nil {
			startMS := w.Execution.StartTime.UnixMilli()
			ws2.ExecStartMS = &startMS
			user := w.Execution.UserID
			ws2.CurrentUser = &user
		}
		workers = append(workers, ws2)
	}
	if err := ws.WriteJSON(observer.Event{Kind: observer.KindPoolStatus, Data: observer.PoolStatus{Workers: workers}}); err != nil {
		return nil
	}

	statsSnap := h.pool.Stats()
	if err := ws.WriteJSON(observer.Event{Kind: observer.KindStats, Data: observer.Stats{
		TotalExecutions: statsSnap.TotalExecutions,
		TotalExecTimeMS: statsSnap.TotalExecTimeMS,
		TotalLines:      statsSnap.TotalLines,
		SuccessCount:    statsSnap.SuccessCount,
		AvgExecTimeMS:   statsSnap.AvgExecTimeMS,
		AvgLines:        statsSnap.AvgLines,
		SuccessRate:     statsSnap.SuccessRatePct,
	}}); err != nil {
		return nil
	}

	historySnap := h.pool.History(20)
	histExecs := make([]observer.ExecutionSnapshot, 0, len(historySnap))
	for _, e := range historySnap {
		snap := observer.ExecutionSnapshot{
			ExecutionID: e.ID,
			UserID:      e.UserID,
			Code:        e.Code,
			Worker:      e.SlotName,
			StartTime:   e.StartTime.UnixMilli(),
			Success:     e.Success,
		}
		if e.Done {
			d := e.DurationMS
			snap.DurationMS = &d
		}
		histExecs = append(histExecs, snap)
	}
	if err := ws.WriteJSON(observer.Event{Kind: observer.KindHistory, Data: observer.History{Executions: histExecs}}); err != nil {
		return nil
	}

	for event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			log.Warn().Err(err).Msg("dashboard stream: failed to marshal event")
			continue
		}
		if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
			return nil
		}
	}
	return nil
}

const dashboardHTML = `<!DOCTYPE html>
<html>
<head><title>runner dashboard</title></head>
<body>
<h1>Sandbox Pool Dashboard</h1>
<pre id="events"></pre>
<script>
  const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws/dashboard");
  ws.onmessage = (msg) => {
    const el = document.getElementById("events");
    el.textContent = msg.data + "\n" + el.textContent;
  };
</script>
</body>
</html>`

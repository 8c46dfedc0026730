// Package bridge exposes the tool registry over HTTP. This is the surface a
// desktop shell (or anything else local) calls; it preserves the distinction
// between "the tool ran and reported failure" (200 with success=false) and
// "the tool could not be run at all" (compact error envelope with 4xx/5xx).
package bridge

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/anandukch/localtoolbox/pkg/errmodel"
	"github.com/anandukch/localtoolbox/pkg/history"
	"github.com/anandukch/localtoolbox/pkg/setup"
	"github.com/anandukch/localtoolbox/pkg/tool"
)

// Server routes bridge requests to the registry, invoker, probe and history.
type Server struct {
	reg    *tool.Registry
	inv    *tool.Invoker
	hist   history.Reader
	checks []setup.Check
	log    *zap.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger; default nop.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithHistory enables the history listing endpoints.
func WithHistory(r history.Reader) Option {
	return func(s *Server) { s.hist = r }
}

// WithChecks sets the environment checks served by /api/setup.
func WithChecks(checks []setup.Check) Option {
	return func(s *Server) { s.checks = checks }
}

// New constructs a Server over the given registry and invoker.
func New(reg *tool.Registry, inv *tool.Invoker, opts ...Option) *Server {
	s := &Server{reg: reg, inv: inv, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.buildMux(), "toolboxd")
}

func (s *Server) buildMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /api/tools", s.handleListTools)
	mux.HandleFunc("POST /api/tools/{id}/invoke", s.handleInvoke)
	mux.HandleFunc("GET /api/setup", s.handleSetup)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	return mux
}

// ToolInfo is the listing shape for one registered tool.
type ToolInfo struct {
	ID          string          `json:"id"`
	Description string          `json:"description,omitempty"`
	Convention  string          `json:"convention"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	ds := s.reg.Descriptors()
	infos := make([]ToolInfo, 0, len(ds))
	for _, d := range ds {
		infos = append(infos, ToolInfo{
			ID:          d.ID,
			Description: d.Description,
			Convention:  string(d.Convention),
			InputSchema: json.RawMessage(d.InputSchema),
		})
	}
	writeJSON(w, map[string]any{"tools": infos})
}

// invokeRequest is the POST body for an invocation.
type invokeRequest struct {
	Parameters map[string]any `json:"parameters"`
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req invokeRequest
	body, err := io.ReadAll(r.Body)
	if err != nil {
		errmodel.WriteHTTP(w, r, errmodel.System("read_body", "could not read request body", nil, err))
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			errmodel.WriteHTTP(w, r, errmodel.Validation("bad_json", "request body is not valid JSON", map[string]any{"error": err.Error()}))
			return
		}
	}
	if req.Parameters == nil {
		req.Parameters = map[string]any{}
	}

	res, err := s.inv.Invoke(r.Context(), id, req.Parameters)
	if err != nil {
		s.log.Warn("invoke failed", zap.String("tool", id), zap.Error(err))
		errmodel.WriteHTTP(w, r, err)
		return
	}
	// Tool-reported failure is data, not an HTTP error.
	writeJSON(w, res)
}

func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, setup.Probe(r.Context(), s.checks))
}

// HistoryView is the listing shape for one invocation record.
type HistoryView struct {
	InvocationID string `json:"invocation_id"`
	ToolID       string `json:"tool_id"`
	Success      bool   `json:"success"`
	Message      string `json:"message,omitempty"`
	Error        string `json:"error,omitempty"`
	ExitCode     int    `json:"exit_code"`
	DurationMs   int64  `json:"duration_ms"`
	CreatedAt    string `json:"created_at"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.hist == nil {
		errmodel.WriteHTTP(w, r, errmodel.Config("not_found", "history is not enabled", nil))
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	var (
		recs []history.Record
		err  error
	)
	if toolID := r.URL.Query().Get("tool"); toolID != "" {
		recs, err = s.hist.ListByTool(r.Context(), toolID, limit)
	} else {
		recs, err = s.hist.Recent(r.Context(), limit)
	}
	if err != nil {
		errmodel.WriteHTTP(w, r, errmodel.System("history_query", "history query failed", nil, err))
		return
	}
	views := make([]HistoryView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, HistoryView{
			InvocationID: rec.InvocationID,
			ToolID:       rec.ToolID,
			Success:      rec.Success,
			Message:      rec.Message,
			Error:        rec.Error,
			ExitCode:     rec.ExitCode,
			DurationMs:   rec.DurationMs,
			CreatedAt:    rec.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
		})
	}
	writeJSON(w, map[string]any{"records": views})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}

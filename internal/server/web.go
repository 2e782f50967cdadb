package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/warpdl/warpops/common"
	"github.com/warpdl/warpops/pkg/logger"
	"github.com/warpdl/warpops/pkg/warpops"
)

// WebServer routes the daemon's HTTP surface: the JSON-RPC endpoint and a
// small read-only REST API over the engine.
type WebServer struct {
	engine *warpops.Engine
	rpc    *RPCServer
	log    logger.Logger
	router *mux.Router
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status  string         `json:"status"`
	Version string         `json:"version,omitempty"`
	Groups  int            `json:"groups"`
	Running map[string]int `json:"running"`
}

// GroupResponse is the body of GET /api/groups/{id}.
type GroupResponse struct {
	Snapshot warpops.Snapshot   `json:"snapshot"`
	Tasks    []warpops.TaskInfo `json:"tasks"`
}

// NewWebServer creates the router for e and rpc.
func NewWebServer(e *warpops.Engine, rpc *RPCServer, l logger.Logger) *WebServer {
	if l == nil {
		l = logger.NewNopLogger()
	}
	s := &WebServer{engine: e, rpc: rpc, log: l, router: mux.NewRouter()}
	s.setupRoutes()
	return s
}

func (s *WebServer) setupRoutes() {
	s.router.Handle(common.RPCPath, s.rpc.Handler())

	api := s.router.PathPrefix("/api").Subrouter()
	if s.rpc.secret != "" {
		api.Use(func(next http.Handler) http.Handler {
			return requireToken(s.rpc.secret, next)
		})
	}
	api.HandleFunc("/health", s.health).Methods(http.MethodGet)
	api.HandleFunc("/groups", s.listGroups).Methods(http.MethodGet)
	api.HandleFunc("/groups/{id}", s.getGroup).Methods(http.MethodGet)
}

// Handler returns the root handler.
func (s *WebServer) Handler() http.Handler {
	return s.router
}

// health handles GET /api/health
func (s *WebServer) health(w http.ResponseWriter, r *http.Request) {
	running := make(map[string]int, len(warpops.Categories))
	for _, c := range warpops.Categories {
		running[c.String()] = s.engine.RunningCount(c)
	}
	writeJSON(w, http.StatusOK, &HealthResponse{
		Status:  "ok",
		Version: s.rpc.version,
		Groups:  len(s.engine.Groups()),
		Running: running,
	})
}

// listGroups handles GET /api/groups
func (s *WebServer) listGroups(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, &common.ListResult{Groups: s.engine.Groups()})
}

// getGroup handles GET /api/groups/{id}
func (s *WebServer) getGroup(w http.ResponseWriter, r *http.Request) {
	id := warpops.GroupID(mux.Vars(r)["id"])
	snap, err := s.engine.Snapshot(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	tasks, err := s.engine.Tasks(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &GroupResponse{Snapshot: snap, Tasks: tasks})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *WebServer) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"
	switch {
	case errors.Is(err, warpops.ErrGroupNotFound):
		status, code = http.StatusNotFound, "group_not_found"
	case errors.Is(err, warpops.ErrTaskNotFound):
		status, code = http.StatusNotFound, "task_not_found"
	default:
		s.log.Error("http: %v", err)
	}
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": err.Error(),
		},
	})
}

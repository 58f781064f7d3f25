package stats

import (
	"net/http"

	"github.com/rom8726/resflow"
	"github.com/rom8726/resflow/api"
)

var _ api.Plugin = (*Plugin)(nil)

type Plugin struct {
	monitor resflow.IMonitor
}

func New(monitor resflow.IMonitor) *Plugin {
	return &Plugin{monitor: monitor}
}

func (p *Plugin) Name() string { return "stats" }

func (p *Plugin) Description() string { return "Workflow statistics and progress per resource" }

func (p *Plugin) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/resources/{id}/stats", HandleWorkflowStats(p.monitor))
	mux.HandleFunc("GET /api/resources/{id}/active", HandleActiveWorkflows(p.monitor))
}

func HandleWorkflowStats(monitor resflow.IMonitor) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := monitor.GetWorkflowStats(r.Context(), r.PathValue("id"))
		if err != nil {
			api.WriteError(w, err)

			return
		}

		api.WriteJSON(w, http.StatusOK, StatsResponse{ResourceID: r.PathValue("id"), Workflows: stats})
	}
}

func HandleActiveWorkflows(monitor resflow.IMonitor) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		active, err := monitor.GetActiveWorkflows(r.Context(), r.PathValue("id"))
		if err != nil {
			api.WriteError(w, err)

			return
		}

		api.WriteJSON(w, http.StatusOK, ActiveResponse{ResourceID: r.PathValue("id"), Workflows: active})
	}
}

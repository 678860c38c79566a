package httpapi

import (
	"context"
	stderrors "errors"
	"net/http"
	"runtime"
	"time"

	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/Yassin6up/somoo-sub000/internal/app/scheduler"
	apperrors "github.com/Yassin6up/somoo-sub000/internal/errors"
	"github.com/Yassin6up/somoo-sub000/internal/httputil"
)

type healthResponse struct {
	Status   string   `json:"status"`
	Uptime   string   `json:"uptime"`
	Services []string `json:"services"`
}

type systemResponse struct {
	Hostname        string  `json:"hostname,omitempty"`
	Platform        string  `json:"platform,omitempty"`
	UptimeSeconds   uint64  `json:"uptime_seconds,omitempty"`
	CPUPercent      float64 `json:"cpu_percent"`
	MemoryTotal     uint64  `json:"memory_total"`
	MemoryUsed      uint64  `json:"memory_used"`
	MemoryPercent   float64 `json:"memory_percent"`
	Goroutines      int     `json:"goroutines"`
	HeapAlloc       uint64  `json:"heap_alloc"`
	RealtimeClients int     `json:"realtime_clients"`
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, healthResponse{
		Status:   "ok",
		Uptime:   time.Since(h.started).Round(time.Second).String(),
		Services: h.app.Services(),
	})
}

// handleSystem reports host resource usage. Probe failures leave the
// affected fields zero.
func (h *handler) handleSystem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	var resp systemResponse
	if info, err := host.InfoWithContext(ctx); err == nil {
		resp.Hostname = info.Hostname
		resp.Platform = info.Platform
		resp.UptimeSeconds = info.Uptime
	} else {
		h.log.WithError(err).Debug("host info unavailable")
	}
	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		resp.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		resp.MemoryTotal = vm.Total
		resp.MemoryUsed = vm.Used
		resp.MemoryPercent = vm.UsedPercent
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	resp.Goroutines = runtime.NumGoroutine()
	resp.HeapAlloc = ms.HeapAlloc
	resp.RealtimeClients = h.app.Hub.ClientCount()

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// handleAudit returns the newest audited requests; ?limit= caps the count.
func (h *handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.audit.listLimit(queryLimit(r, 100)))
}

// handleRunJob triggers a scheduled job immediately.
func (h *handler) handleRunJob(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	affected, err := h.app.Scheduler.RunNow(name)
	if err != nil {
		if stderrors.Is(err, scheduler.ErrUnknownJob) {
			err = apperrors.NotFound("job", name)
		}
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"job": name, "affected": affected})
}

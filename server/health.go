package server

import (
	"net/http"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/meridian-hq/ABMX/version"
)

// healthResponse is the health endpoint body.
type healthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Commit        string  `json:"commit"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	MemoryRSSMB   float64 `json:"memory_rss_mb,omitempty"`
	CPUPercent    float64 `json:"cpu_percent,omitempty"`
	Scheduler     bool    `json:"scheduler_running"`
	Clients       int     `json:"websocket_clients"`
}

// handleHealth reports liveness plus process statistics. Stat failures
// leave those fields empty rather than failing the probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	info := version.Get()
	resp := healthResponse{
		Status:        "ok",
		Version:       info.Version,
		Commit:        info.Short(),
		UptimeSeconds: int64(time.Since(s.startedAt) / time.Second),
		Scheduler:     s.scheduler.Running(),
		Clients:       s.clientCount(),
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
			resp.MemoryRSSMB = float64(mem.RSS) / (1024 * 1024)
		}
		if cpu, err := proc.CPUPercent(); err == nil {
			resp.CPUPercent = cpu
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) clientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

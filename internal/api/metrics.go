package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/gray-logic-dynalite/internal/bridges/dynalite"
	"github.com/nerrad567/gray-logic-dynalite/internal/host"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Runtime       RuntimeMetrics  `json:"runtime"`
	MQTT          MQTTMetrics     `json:"mqtt"`
	Bridges       []BridgeMetrics `json:"bridges"`
	Devices       DeviceMetrics   `json:"devices"`
	Database      DatabaseMetrics `json:"database"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// BridgeMetrics combines a bridge's counters with its platform's.
type BridgeMetrics struct {
	dynalite.BridgeMetrics
	Platform *host.Metrics `json:"platform,omitempty"`
}

// DeviceMetrics contains device registry statistics.
type DeviceMetrics struct {
	Total      int            `json:"total"`
	ByCategory map[string]int `json:"by_category"`
	Assigned   int            `json:"assigned"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns runtime, bridge and registry metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Bridges: make([]BridgeMetrics, 0, len(s.bridges)),
	}

	if s.mqtt != nil {
		metrics.MQTT.Connected = s.mqtt.IsConnected()
	}

	for _, b := range s.bridges {
		bm := BridgeMetrics{BridgeMetrics: b.Bridge.GetMetrics()}
		if b.Platform != nil {
			pm := b.Platform.GetMetrics()
			bm.Platform = &pm
		}
		metrics.Bridges = append(metrics.Bridges, bm)
	}

	devices, err := s.devices.ListDevices(r.Context())
	if err != nil {
		s.logger.Error("listing devices for metrics", "error", err)
		writeInternalError(w, "failed to list devices")
		return
	}
	metrics.Devices = DeviceMetrics{
		Total:      len(devices),
		ByCategory: make(map[string]int),
	}
	for _, d := range devices {
		metrics.Devices.ByCategory[d.Category]++
		if d.AreaID != nil {
			metrics.Devices.Assigned++
		}
	}

	dbStats := s.db.Stats()
	metrics.Database = DatabaseMetrics{
		OpenConnections: dbStats.OpenConnections,
		InUse:           dbStats.InUse,
		Idle:            dbStats.Idle,
		WaitCount:       dbStats.WaitCount,
	}

	writeJSON(w, http.StatusOK, metrics)
}

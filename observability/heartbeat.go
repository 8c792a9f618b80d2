package observability

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"runtime"
	"time"
)

// RuntimeMetrics captures Go process health at a point in time.
type RuntimeMetrics struct {
	GoroutinesCount int
	MemoryAllocMB   float64
	MemorySysMB     float64
	GCCount         uint32
}

// CollectRuntimeMetrics reads current Go runtime stats (~10µs overhead).
func CollectRuntimeMetrics() RuntimeMetrics {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return RuntimeMetrics{
		GoroutinesCount: runtime.NumGoroutine(),
		MemoryAllocMB:   float64(mem.Alloc) / 1024 / 1024,
		MemorySysMB:     float64(mem.Sys) / 1024 / 1024,
		GCCount:         mem.NumGC,
	}
}

// HeartbeatWriter writes periodic liveness probes to the worker_heartbeats
// table so an operator can tell a stalled pipeline from an idle one.
type HeartbeatWriter struct {
	db         *sql.DB
	workerName string
	hostname   string
	workerPID  int
	interval   time.Duration
}

// NewHeartbeatWriter creates a writer identified by workerName.
func NewHeartbeatWriter(db *sql.DB, workerName string, interval time.Duration) *HeartbeatWriter {
	hostname, _ := os.Hostname()
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &HeartbeatWriter{
		db:         db,
		workerName: workerName,
		hostname:   hostname,
		workerPID:  os.Getpid(),
		interval:   interval,
	}
}

// Run writes heartbeats on a ticker until ctx is cancelled.
func (h *HeartbeatWriter) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.beat(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.beat(ctx)
		}
	}
}

func (h *HeartbeatWriter) beat(ctx context.Context) {
	rm := CollectRuntimeMetrics()
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO worker_heartbeats
			(worker_name, hostname, worker_pid, timestamp,
			 goroutines_count, memory_alloc_mb, memory_sys_mb, gc_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		h.workerName, h.hostname, h.workerPID, time.Now().Unix(),
		rm.GoroutinesCount, rm.MemoryAllocMB, rm.MemorySysMB, rm.GCCount,
	)
	if err != nil {
		slog.Warn("observability: heartbeat write", "worker", h.workerName, "error", err)
	}
}

// LastHeartbeat returns the most recent heartbeat timestamp for a worker,
// or zero time if none exists.
func LastHeartbeat(ctx context.Context, db *sql.DB, workerName string) (time.Time, error) {
	var ts sql.NullInt64
	err := db.QueryRowContext(ctx,
		`SELECT MAX(timestamp) FROM worker_heartbeats WHERE worker_name = ?`,
		workerName).Scan(&ts)
	if err != nil {
		return time.Time{}, err
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return time.Unix(ts.Int64, 0), nil
}

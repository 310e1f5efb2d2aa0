package monitoring

import (
	"database/sql"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/taskhive/taskhive-be/internal/services"
)

// systemStats is the payload broadcast to the live feed.
type systemStats struct {
	CPUPercent float64 `json:"cpuPercent"`
	MemPercent float64 `json:"memPercent"`
	Goroutines int     `json:"goroutines"`
	Users      int     `json:"users"`
	OpenTasks  int     `json:"openTasks"`
}

// StatBroadcaster periodically publishes host and application stats over the
// event feed, for the admin dashboard.
type StatBroadcaster struct {
	db     *sql.DB
	hub    services.Broadcaster
	ticker *time.Ticker
	done   chan bool
}

// NewStatBroadcaster creates a new StatBroadcaster.
func NewStatBroadcaster(db *sql.DB, hub services.Broadcaster) *StatBroadcaster {
	return &StatBroadcaster{db: db, hub: hub, done: make(chan bool)}
}

// Run starts the periodic updates.
func (sb *StatBroadcaster) Run() {
	log.Info().Msg("Starting background stat broadcaster...")
	sb.ticker = time.NewTicker(15 * time.Second)
	defer sb.ticker.Stop()

	// Run once immediately on start
	sb.broadcast()

	for {
		select {
		case <-sb.done:
			log.Info().Msg("Stopping background stat broadcaster.")
			return
		case <-sb.ticker.C:
			sb.broadcast()
		}
	}
}

// Stop halts the periodic updates.
func (sb *StatBroadcaster) Stop() {
	sb.done <- true
}

func (sb *StatBroadcaster) broadcast() {
	stats := systemStats{Goroutines: runtime.NumGoroutine()}

	if percentages, err := cpu.Percent(0, false); err == nil && len(percentages) > 0 {
		stats.CPUPercent = percentages[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		stats.MemPercent = vm.UsedPercent
	}

	if err := sb.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&stats.Users); err != nil {
		log.Warn().Err(err).Msg("StatBroadcaster: failed to count users")
	}
	if err := sb.db.QueryRow("SELECT COUNT(*) FROM tasks WHERE deleted = 0 AND status NOT IN ('Completed', 'Cancelled')").Scan(&stats.OpenTasks); err != nil {
		log.Warn().Err(err).Msg("StatBroadcaster: failed to count open tasks")
	}

	sb.hub.BroadcastJSON("system.stats", stats)
}

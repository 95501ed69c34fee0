package loader

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// MaintenanceConfig configures periodic optimize and archive runs
type MaintenanceConfig struct {
	// Schedule is a five-field cron expression
	Schedule string
	// OptimizeIdle unloads loaded modules idle for longer than this; zero disables
	OptimizeIdle time.Duration
	// ArchiveIdle moves warm modules idle for longer than this to cold; zero disables
	ArchiveIdle time.Duration
}

// Maintenance runs Optimize and Archive on a cron schedule
type Maintenance struct {
	logger   zerolog.Logger
	loader   *Loader
	config   MaintenanceConfig
	schedule cron.Schedule

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
	running sync.WaitGroup
}

// NewMaintenance validates the schedule and creates a stopped maintenance job
func NewMaintenance(logger zerolog.Logger, loader *Loader, config MaintenanceConfig) (*Maintenance, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(config.Schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}

	return &Maintenance{
		logger:   logger.With().Str("component", "maintenance").Logger(),
		loader:   loader,
		config:   config,
		schedule: schedule,
	}, nil
}

// Start schedules the first run
func (m *Maintenance) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopped = false
	m.scheduleLocked()
}

// Stop cancels the next run and waits for a run in progress
func (m *Maintenance) Stop() {
	m.mu.Lock()
	m.stopped = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.mu.Unlock()

	m.running.Wait()
	m.logger.Info().Msg("Maintenance stopped")
}

// Next returns the time of the next run after t
func (m *Maintenance) Next(t time.Time) time.Time {
	return m.schedule.Next(t)
}

func (m *Maintenance) scheduleLocked() {
	next := m.schedule.Next(time.Now())
	delay := time.Until(next)
	if delay < 0 {
		delay = 0
	}

	m.timer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		if m.stopped {
			m.mu.Unlock()
			return
		}
		m.running.Add(1)
		m.mu.Unlock()

		m.RunOnce()
		m.running.Done()

		m.mu.Lock()
		if !m.stopped {
			m.scheduleLocked()
		}
		m.mu.Unlock()
	})

	m.logger.Debug().Time("next_run", next).Msg("Maintenance scheduled")
}

// RunOnce performs one optimize and archive pass
func (m *Maintenance) RunOnce() {
	if m.config.OptimizeIdle > 0 {
		result, err := m.loader.Optimize(m.config.OptimizeIdle)
		if err != nil {
			m.logger.Error().Err(err).Msg("Optimize failed")
		}
		if result != nil && len(result.Unloaded) > 0 {
			m.logger.Info().
				Int("unloaded", len(result.Unloaded)).
				Int("freed_tokens", result.FreedTokens).
				Msg("Maintenance optimize completed")
		}
	}

	if m.config.ArchiveIdle > 0 {
		result, err := m.loader.Archive(m.config.ArchiveIdle)
		if err != nil {
			m.logger.Error().Err(err).Msg("Archive failed")
		}
		if result != nil && len(result.Archived) > 0 {
			m.logger.Info().Int("archived", len(result.Archived)).Msg("Maintenance archive completed")
		}
	}
}

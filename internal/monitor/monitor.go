package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/bpsr-logs/livemeter/internal/encounter"
	"github.com/bpsr-logs/livemeter/internal/model"
)

// Meter is the live loop as seen by the monitor.
type Meter interface {
	Processed() int64
	Dropped() int64
	HeaderInfo() (model.HeaderInfo, error)
}

// Queue reports the number of HP reports waiting for delivery.
type Queue interface {
	Pending() int
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Store      *encounter.Store
	Meter      Meter
	Reports    Queue
	StatusPath string
	Interval   time.Duration
	Logger     *slog.Logger
}

// Status is the content of the status file.
type Status struct {
	Time             time.Time `json:"time"`
	Paused           bool      `json:"paused"`
	FightActive      bool      `json:"fightActive"`
	Tracked          string    `json:"tracked,omitempty"`
	PacketsProcessed int64     `json:"packetsProcessed"`
	PacketsDropped   int64     `json:"packetsDropped"`
	PendingReports   int       `json:"pendingReports"`
	TotalDmg         int64     `json:"totalDmg"`
	ElapsedMs        int64     `json:"elapsedMs"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	now       func() time.Time
	isRunning bool
	mu        sync.RWMutex
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Service{deps: deps, now: time.Now}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus collects the current meter status.
func (s *Service) GetStatus() Status {
	st := Status{Time: s.now().UTC()}

	if s.deps.Store != nil {
		es := s.deps.Store.Status()
		st.Paused = es.Paused
		st.FightActive = es.FightActive
		st.Tracked = es.Tracked
	}
	if s.deps.Meter != nil {
		st.PacketsProcessed = s.deps.Meter.Processed()
		st.PacketsDropped = s.deps.Meter.Dropped()
		if h, err := s.deps.Meter.HeaderInfo(); err == nil {
			st.TotalDmg = h.TotalDmg
			st.ElapsedMs = h.ElapsedMs
		}
	}
	if s.deps.Reports != nil {
		st.PendingReports = s.deps.Reports.Pending()
	}
	return st
}

// WriteStatus replaces the status file with the current status.
func (s *Service) WriteStatus() error {
	body, err := json.MarshalIndent(s.GetStatus(), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}
	if err := os.WriteFile(s.deps.StatusPath, append(body, '\n'), 0644); err != nil {
		return fmt.Errorf("writing status file: %w", err)
	}
	return nil
}

// Run writes the status file every interval until ctx is done. The file is
// written one last time on return.
func (s *Service) Run(ctx context.Context) error {
	if s.deps.StatusPath == "" {
		return errors.New("monitor: no status file path")
	}

	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
	}()

	logger := s.deps.Logger
	logger.Debug("Starting status monitor", "path", s.deps.StatusPath, "interval", s.deps.Interval)

	ticker := time.NewTicker(s.deps.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := s.WriteStatus(); err != nil {
				logger.Error("Error writing status file", "error", err)
			}
			return nil
		case <-ticker.C:
			if err := s.WriteStatus(); err != nil {
				logger.Error("Error writing status file", "error", err)
			}
		}
	}
}

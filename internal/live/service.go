// Package live drives the meter: it pulls captured packets in order, routes
// them through the dispatcher into the encounter store and settles the
// resulting report and snapshot effects outside the store lock. It also
// exposes the command surface used by front ends.
package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bpsr-logs/livemeter/internal/capture"
	"github.com/bpsr-logs/livemeter/internal/dispatcher"
	"github.com/bpsr-logs/livemeter/internal/encounter"
	"github.com/bpsr-logs/livemeter/internal/logging"
	"github.com/bpsr-logs/livemeter/internal/model"
	"github.com/bpsr-logs/livemeter/internal/tables"
)

// Submitter queues an HP report for asynchronous delivery. It must not block.
type Submitter interface {
	Submit(report model.HPReport) bool
}

// Poster sends one HP report synchronously.
type Poster interface {
	CreateHPReport(ctx context.Context, report model.HPReport) error
}

// SnapshotStore persists the tracked crowdsource monster per scope.
type SnapshotStore interface {
	Save(ctx context.Context, scope string, snap model.CrowdsourceSnapshot) error
	Load(ctx context.Context, scope string) (model.CrowdsourceSnapshot, bool, error)
}

// Recorder receives every packet the loop sees, before the pause check.
type Recorder interface {
	Write(p capture.Packet) error
}

// Dependencies holds everything the Service needs. Poster, Source and
// Recorder are optional.
type Dependencies struct {
	Store     *encounter.Store
	Tables    *tables.Tables
	Reports   Submitter
	Poster    Poster
	Snapshots SnapshotStore
	Source    capture.Source
	Recorder  Recorder
	Scope     string
	Logger    *slog.Logger
}

// Service owns the packet loop and the command surface.
type Service struct {
	deps       Dependencies
	logger     *slog.Logger
	dispatcher *dispatcher.Dispatcher
	now        func() time.Time

	processed atomic.Int64
	dropped   atomic.Int64
}

// New validates deps, creates the dispatcher and registers the opcode handlers.
func New(deps Dependencies) (*Service, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("live: store is required")
	case deps.Tables == nil:
		return nil, errors.New("live: tables are required")
	case deps.Reports == nil:
		return nil, errors.New("live: report submitter is required")
	case deps.Snapshots == nil:
		return nil, errors.New("live: snapshot store is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	d, err := dispatcher.New(logging.NewDispatcherLogger(deps.Logger))
	if err != nil {
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}

	s := &Service{
		deps:       deps,
		logger:     deps.Logger,
		dispatcher: d,
		now:        time.Now,
	}
	s.RegisterHandlers(d)
	return s, nil
}

// Run consumes packets from the source until ctx is done or the source
// closes its channel.
func (s *Service) Run(ctx context.Context) error {
	if s.deps.Source == nil {
		return errors.New("live: no capture source")
	}
	packets := s.deps.Source.Packets()

	for {
		select {
		case <-ctx.Done():
			return nil
		case p, ok := <-packets:
			if !ok {
				s.logger.Info("Capture source closed")
				return nil
			}
			_ = s.Process(ctx, p)
		}
	}
}

// Process applies one packet. While paused the packet is dropped. Opcodes
// without a handler are ignored. Handler failures are logged and returned;
// they never stop the loop.
func (s *Service) Process(ctx context.Context, p capture.Packet) error {
	if s.deps.Recorder != nil {
		if err := s.deps.Recorder.Write(p); err != nil {
			s.logger.Warn("Failed to record packet", "opcode", p.Opcode, "error", err)
		}
	}
	if s.deps.Store.IsPaused() {
		s.dropped.Add(1)
		s.logger.Debug("Packet dropped due to encounter paused", "opcode", p.Opcode)
		return nil
	}
	if !s.dispatcher.HasHandler(p.Opcode) {
		return nil
	}

	s.processed.Add(1)
	err := s.dispatcher.Dispatch(ctx, dispatcher.Event{
		Opcode:    p.Opcode,
		Payload:   p.Data,
		Timestamp: s.now(),
	})
	if err != nil {
		s.logger.Warn("Error processing packet, ignoring", "opcode", p.Opcode, "error", err)
	}
	return err
}

// Processed returns the number of packets routed to a handler.
func (s *Service) Processed() int64 {
	return s.processed.Load()
}

// Dropped returns the number of packets dropped while paused.
func (s *Service) Dropped() int64 {
	return s.dropped.Load()
}

// settle hands effects to the reporter and the snapshot store. It runs after
// the store lock is released.
func (s *Service) settle(ctx context.Context, fx encounter.Effects) {
	for _, r := range fx.Reports {
		s.deps.Reports.Submit(r)
	}
	if fx.Snapshot != nil {
		s.saveSnapshot(ctx, *fx.Snapshot)
	}
}

func (s *Service) saveSnapshot(ctx context.Context, snap model.CrowdsourceSnapshot) {
	if err := s.deps.Snapshots.Save(ctx, s.deps.Scope, snap); err != nil {
		s.logger.Warn("Failed to persist crowdsourced monster snapshot",
			"remoteId", snap.RemoteID,
			"error", err)
		return
	}
	s.logger.Debug("Persisted crowdsourced monster snapshot", "snapshot", snap.String())
}

// SessionAttrs returns a log context provider exposing the session state.
func SessionAttrs(store *encounter.Store) logging.ContextProvider {
	return func() []slog.Attr {
		st := store.Status()
		attrs := []slog.Attr{
			slog.Bool("paused", st.Paused),
			slog.Bool("fight_active", st.FightActive),
		}
		if st.Tracked != "" {
			attrs = append(attrs, slog.String("tracked", st.Tracked))
		}
		return attrs
	}
}

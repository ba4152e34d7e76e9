package live

import (
	"context"
	"fmt"

	"github.com/bpsr-logs/livemeter/internal/capture"
	"github.com/bpsr-logs/livemeter/internal/dispatcher"
	"github.com/bpsr-logs/livemeter/internal/model"
	"github.com/bpsr-logs/livemeter/pkg/blueproto"
)

// RegisterHandlers registers one handler per consumed opcode.
func (s *Service) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Session lifecycle - rare, always logged
	d.Register(capture.OpServerChangeInfo, s.handleServerChange, dispatcher.Logged())
	d.Register(capture.OpSyncContainerData, s.handleContainerData, dispatcher.Logged())

	// High-volume entity traffic
	d.Register(capture.OpSyncNearEntities, s.handleNearEntities)
	d.Register(capture.OpSyncToMeDeltaInfo, s.handleToMeDelta)
	d.Register(capture.OpSyncNearDeltaInfo, s.handleNearDelta)

	// Decoded for validation only
	d.Register(capture.OpSyncServerTime, s.handleServerTime)
}

func decodeError(op capture.Opcode, err error) error {
	return fmt.Errorf("decoding %s: %w", op, err)
}

func (s *Service) handleServerChange(ctx context.Context, e dispatcher.Event) error {
	var msg blueproto.ServerChangeInfo
	if err := msg.Unmarshal(e.Payload); err != nil {
		return decodeError(e.Opcode, err)
	}

	var restore *model.CrowdsourceSnapshot
	snap, found, err := s.deps.Snapshots.Load(ctx, s.deps.Scope)
	switch {
	case err != nil:
		s.logger.Warn("Failed to load crowdsourced monster snapshot", "scope", s.deps.Scope, "error", err)
	case found:
		restore = &snap
	}

	s.deps.Store.ServerChange(restore)
	if restore != nil {
		s.logger.Info("Server changed, restored crowdsourced monster", "snapshot", restore.String())
	} else {
		s.logger.Info("Server changed, encounter reset")
	}
	return nil
}

func (s *Service) handleNearEntities(ctx context.Context, e dispatcher.Event) error {
	var msg blueproto.SyncNearEntities
	if err := msg.Unmarshal(e.Payload); err != nil {
		return decodeError(e.Opcode, err)
	}
	fx, err := s.deps.Store.SyncNearEntities(&msg)
	s.settle(ctx, fx)
	return err
}

func (s *Service) handleContainerData(ctx context.Context, e dispatcher.Event) error {
	var msg blueproto.SyncContainerData
	if err := msg.Unmarshal(e.Payload); err != nil {
		return decodeError(e.Opcode, err)
	}
	fx, err := s.deps.Store.SyncContainerData(&msg)
	s.settle(ctx, fx)
	return err
}

func (s *Service) handleServerTime(_ context.Context, e dispatcher.Event) error {
	var msg blueproto.SyncServerTime
	if err := msg.Unmarshal(e.Payload); err != nil {
		return decodeError(e.Opcode, err)
	}
	return nil
}

func (s *Service) handleToMeDelta(ctx context.Context, e dispatcher.Event) error {
	var msg blueproto.SyncToMeDeltaInfo
	if err := msg.Unmarshal(e.Payload); err != nil {
		return decodeError(e.Opcode, err)
	}
	fx, err := s.deps.Store.SyncToMeDeltaInfo(&msg)
	s.settle(ctx, fx)
	return err
}

func (s *Service) handleNearDelta(ctx context.Context, e dispatcher.Event) error {
	var msg blueproto.SyncNearDeltaInfo
	if err := msg.Unmarshal(e.Payload); err != nil {
		return decodeError(e.Opcode, err)
	}
	fx, err := s.deps.Store.SyncNearDeltaInfo(&msg)
	s.settle(ctx, fx)
	return err
}

package live

import (
	"context"
	"errors"
	"fmt"

	"github.com/bpsr-logs/livemeter/internal/model"
)

var (
	ErrUnknownRemoteID = errors.New("unknown remote id")
	ErrNoPoster        = errors.New("no HP report poster configured")
)

// HeaderInfo returns the running damage and timing summary.
func (s *Service) HeaderInfo() (model.HeaderInfo, error) {
	return s.deps.Store.Header()
}

// CrowdsourcedMonster returns the tracked monster when both its name and
// id are known. The remote id may be absent.
func (s *Service) CrowdsourcedMonster() (model.CrowdsourcedMonster, bool) {
	id := s.deps.Store.Crowdsource()
	if id.MonsterID == nil || id.MonsterName == nil {
		return model.CrowdsourcedMonster{}, false
	}
	return model.CrowdsourcedMonster{
		Name:     *id.MonsterName,
		ID:       *id.MonsterID,
		RemoteID: id.RemoteID,
	}, true
}

// CrowdsourcedMonsterOptions lists the selectable monsters, sorted by name.
func (s *Service) CrowdsourcedMonsterOptions() []model.CrowdsourcedMonsterOption {
	return s.deps.Tables.Choices()
}

// SetCrowdsourcedMonsterRemote makes the monster behind remoteID the tracked
// one and persists it. A failed save is logged, not returned.
func (s *Service) SetCrowdsourcedMonsterRemote(ctx context.Context, remoteID string) error {
	monsterID, name, ok := s.deps.Tables.ResolveRemote(remoteID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRemoteID, remoteID)
	}

	snap := model.CrowdsourceSnapshot{MonsterID: monsterID, MonsterName: name, RemoteID: remoteID}
	s.deps.Store.SetCrowdsource(snap.Identity())
	s.logger.Info("Crowdsourced monster selected", "monsterId", monsterID, "name", name, "remoteId", remoteID)

	s.saveSnapshot(ctx, snap)
	return nil
}

// LastHitBossName returns the name of the tracked crowdsource monster.
func (s *Service) LastHitBossName() (string, bool) {
	id := s.deps.Store.Crowdsource()
	if id.MonsterName == nil {
		return "", false
	}
	return *id.MonsterName, true
}

// LocalPlayerLine returns the controlled character's line id, if known.
func (s *Service) LocalPlayerLine() (int32, bool, error) {
	line, ok := s.deps.Store.LocalLine()
	return line, ok, nil
}

// MarkCurrentLineDead synchronously reports the tracked monster at 0% on
// the local player's line.
func (s *Service) MarkCurrentLineDead(ctx context.Context) error {
	if s.deps.Poster == nil {
		return ErrNoPoster
	}

	report, name, err := s.deps.Store.DeadReport()
	if err != nil {
		return err
	}

	s.logger.Info("Reporting crowdsourced monster as dead",
		"name", name,
		"monsterId", report.MonsterID,
		"line", report.Line)

	if err := s.deps.Poster.CreateHPReport(ctx, report); err != nil {
		return fmt.Errorf("failed to send HP report: %w", err)
	}
	return nil
}

// Reset clears the encounter.
func (s *Service) Reset() {
	s.deps.Store.Reset()
	s.logger.Info("Encounter reset")
}

// HardReset clears the encounter and asks the capture source to restart.
func (s *Service) HardReset() {
	s.deps.Store.Reset()
	if s.deps.Source != nil {
		s.deps.Source.RequestRestart()
	}
	s.logger.Info("Hard reset")
}

// TogglePause flips the pause flag and returns the new value.
func (s *Service) TogglePause() bool {
	paused := s.deps.Store.TogglePause()
	s.logger.Info("Encounter pause toggled", "paused", paused)
	return paused
}

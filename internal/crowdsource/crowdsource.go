// Package crowdsource decides when a monster's health is worth sharing with
// the crowdsource backend and which monster the encounter is tracking.
package crowdsource

import (
	"log/slog"

	"github.com/bpsr-logs/livemeter/internal/model"
	"github.com/bpsr-logs/livemeter/internal/tables"
)

// ReportStep is the percentage bucket size between reports.
const ReportStep = 5

// HPPercent returns clamp(curr*100/maxHP, 0, 100) using integer division. It
// reports false when maxHP is not positive.
func HPPercent(curr, maxHP int32) (int32, bool) {
	if maxHP <= 0 {
		return 0, false
	}
	pct := int64(curr) * 100 / int64(maxHP)
	return int32(min(max(pct, 0), 100)), true
}

// ShouldReport applies the percentage-bucket dedup. The first observation
// always reports. After that a change is reported when it lands on a
// multiple of ReportStep; reaching 0 always counts.
func ShouldReport(old *int32, pct int32) bool {
	if old == nil {
		return true
	}
	if *old == pct {
		return false
	}
	return pct == 0 || pct%ReportStep == 0
}

// Detector evaluates HP updates and damage events against the reference
// tables.
type Detector struct {
	tables *tables.Tables
	logger *slog.Logger
}

// NewDetector creates a Detector. A nil logger falls back to slog.Default.
func NewDetector(t *tables.Tables, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{tables: t, logger: logger}
}

// Tables returns the reference tables the detector was built with.
func (d *Detector) Tables() *tables.Tables {
	return d.tables
}

// Evaluate is called after e.CurrHP has been updated; prevHP is the value it
// replaced. It returns the report to send, if any.
func (d *Detector) Evaluate(e *model.Entity, prevHP *int32, player *model.LocalPlayer) (model.HPReport, bool) {
	if e.MonsterID == nil || e.CurrHP == nil || e.MaxHP == nil {
		return model.HPReport{}, false
	}
	monsterID := *e.MonsterID
	if !d.tables.IsCrowdsourced(monsterID) {
		return model.HPReport{}, false
	}

	pct, ok := HPPercent(*e.CurrHP, *e.MaxHP)
	if !ok {
		return model.HPReport{}, false
	}
	var old *int32
	if prevHP != nil {
		if p, ok := HPPercent(*prevHP, *e.MaxHP); ok {
			old = &p
		}
	}
	if !ShouldReport(old, pct) {
		return model.HPReport{}, false
	}

	loc, ok := player.Location()
	if !ok {
		d.logger.Debug("Dropping HP report without local player location",
			"monsterId", monsterID,
			"hpPct", pct)
		return model.HPReport{}, false
	}

	return model.HPReport{
		MonsterID: monsterID,
		HPPct:     pct,
		Line:      loc.Line,
		PosX:      loc.X,
		PosY:      loc.Y,
	}, true
}

// Identify resolves the crowdsource identity of a damaged entity. It reports
// false when the entity is not a crowdsourced monster. A missing remote id is
// logged and leaves RemoteID nil.
func (d *Detector) Identify(e *model.Entity) (model.CrowdsourceIdentity, bool) {
	if e == nil || e.MonsterID == nil || !d.tables.IsCrowdsourced(*e.MonsterID) {
		return model.CrowdsourceIdentity{}, false
	}
	monsterID := *e.MonsterID
	name := d.tables.DisplayName(monsterID, e.Name)

	id := model.CrowdsourceIdentity{MonsterID: &monsterID, MonsterName: &name}
	if remote, ok := d.tables.RemoteID(monsterID); ok {
		id.RemoteID = &remote
	} else {
		d.logger.Warn("Crowdsourced monster missing remote id",
			"monsterId", monsterID,
			"monsterName", name)
	}
	return id, true
}

// DeadReport builds the report marking the monster dead on the player's
// current line.
func DeadReport(monsterID int32, loc model.Location) model.HPReport {
	return model.HPReport{
		MonsterID: monsterID,
		HPPct:     0,
		Line:      loc.Line,
		PosX:      loc.X,
		PosY:      loc.Y,
	}
}

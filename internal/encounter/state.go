// Package encounter owns the live encounter state and applies decoded game
// messages to it.
package encounter

import "github.com/bpsr-logs/livemeter/internal/model"

// Encounter is the single mutable session object. Only the Store touches it.
type Encounter struct {
	Paused bool

	FightStartMs int64
	LastCombatMs int64
	DamageTotal  int64

	Entities *Registry

	LocalPlayerUID *int64
	LocalPlayer    *model.LocalPlayer

	Crowdsource model.CrowdsourceIdentity
}

// New returns an encounter with every field at its default.
func New() *Encounter {
	return &Encounter{Entities: NewRegistry()}
}

// FightActive reports whether a damage event has been seen this session.
func (e *Encounter) FightActive() bool {
	return e.FightStartMs != 0
}

func (e *Encounter) tick(nowMs int64) {
	if e.FightStartMs == 0 {
		e.FightStartMs = nowMs
	}
	e.LastCombatMs = nowMs
}

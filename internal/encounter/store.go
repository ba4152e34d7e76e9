package encounter

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bpsr-logs/livemeter/internal/crowdsource"
	"github.com/bpsr-logs/livemeter/internal/model"
	"github.com/bpsr-logs/livemeter/pkg/blueproto"
)

var (
	ErrNoDamage             = errors.New("no damage found")
	ErrNoCrowdsourceMonster = errors.New("no crowdsourced monster id available")
	ErrNoScene              = errors.New("no local player scene data available")
	ErrNoLine               = errors.New("no line id available for local player")
	ErrNoPosition           = errors.New("no position data available for local player")
)

// Status is a lock-free summary of the encounter used for log enrichment.
type Status struct {
	Paused      bool
	FightActive bool
	Tracked     string
}

// Store exclusively owns an Encounter and serializes every access to it.
type Store struct {
	mu       sync.Mutex
	state    *Encounter
	detector *crowdsource.Detector
	logger   *slog.Logger
	now      func() time.Time

	status atomic.Pointer[Status]
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for combat timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger sets the logger used by message handlers.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func NewStore(detector *crowdsource.Detector, opts ...Option) *Store {
	s := &Store{
		state:    New(),
		detector: detector,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.publish()
	return s
}

// publish refreshes the lock-free status. Callers hold s.mu.
func (s *Store) publish() {
	st := &Status{Paused: s.state.Paused, FightActive: s.state.FightActive()}
	if s.state.Crowdsource.MonsterName != nil {
		st.Tracked = *s.state.Crowdsource.MonsterName
	}
	s.status.Store(st)
}

// Status returns the last published status without taking the lock, so it
// is safe to call from log handlers running inside Store operations.
func (s *Store) Status() Status {
	return *s.status.Load()
}

func (s *Store) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Paused
}

// TogglePause flips the pause flag and returns the new value.
func (s *Store) TogglePause() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Paused = !s.state.Paused
	s.publish()
	return s.state.Paused
}

// Reset replaces the encounter with a fresh default one.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = New()
	s.publish()
}

// ServerChange resets the encounter and restores the crowdsource identity
// from snap when one was persisted.
func (s *Store) ServerChange(snap *model.CrowdsourceSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = New()
	if snap != nil {
		s.state.Crowdsource = snap.Identity()
	}
	s.publish()
}

// apply runs fn under the lock and collects its effects.
func (s *Store) apply(fn func(fx *Effects) error) (Effects, error) {
	var fx Effects
	s.mu.Lock()
	defer s.mu.Unlock()
	err := fn(&fx)
	s.publish()
	return fx, err
}

func (s *Store) SyncNearEntities(msg *blueproto.SyncNearEntities) (Effects, error) {
	return s.apply(func(fx *Effects) error {
		return s.applyNearEntities(msg, fx)
	})
}

func (s *Store) SyncContainerData(msg *blueproto.SyncContainerData) (Effects, error) {
	return s.apply(func(*Effects) error {
		return s.applyContainerData(msg)
	})
}

func (s *Store) SyncToMeDeltaInfo(msg *blueproto.SyncToMeDeltaInfo) (Effects, error) {
	return s.apply(func(fx *Effects) error {
		return s.applyToMeDelta(msg, fx)
	})
}

func (s *Store) SyncNearDeltaInfo(msg *blueproto.SyncNearDeltaInfo) (Effects, error) {
	return s.apply(func(fx *Effects) error {
		return s.applyNearDelta(msg, fx)
	})
}

// Header summarizes damage and timing. It fails with ErrNoDamage until some
// damage has been recorded.
func (s *Store) Header() (model.HeaderInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.DamageTotal == 0 {
		return model.HeaderInfo{}, ErrNoDamage
	}
	return model.HeaderInfo{
		TotalDmg:               s.state.DamageTotal,
		ElapsedMs:              s.state.LastCombatMs - s.state.FightStartMs,
		TimeLastCombatPacketMs: s.state.LastCombatMs,
	}, nil
}

// Crowdsource returns a copy of the tracked crowdsource identity.
func (s *Store) Crowdsource() model.CrowdsourceIdentity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyIdentity(s.state.Crowdsource)
}

// SetCrowdsource replaces the tracked crowdsource identity.
func (s *Store) SetCrowdsource(id model.CrowdsourceIdentity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Crowdsource = copyIdentity(id)
	s.publish()
}

// LocalLine returns the controlled character's current line id.
func (s *Store) LocalLine() (int32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.state.LocalPlayer
	if p == nil || p.Scene == nil || p.Scene.LineID == nil {
		return 0, false
	}
	return int32(*p.Scene.LineID), true
}

// DeadReport builds an hp_pct=0 report for the tracked monster at the
// controlled character's location, along with the monster's display name.
func (s *Store) DeadReport() (model.HPReport, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs := s.state.Crowdsource
	if cs.MonsterID == nil {
		return model.HPReport{}, "", ErrNoCrowdsourceMonster
	}
	name := "Unknown Monster"
	if cs.MonsterName != nil {
		name = *cs.MonsterName
	}

	p := s.state.LocalPlayer
	if p == nil || p.Scene == nil {
		return model.HPReport{}, name, ErrNoScene
	}
	if p.Scene.LineID == nil {
		return model.HPReport{}, name, ErrNoLine
	}
	loc, ok := p.Location()
	if !ok {
		return model.HPReport{}, name, ErrNoPosition
	}
	return crowdsource.DeadReport(*cs.MonsterID, loc), name, nil
}

// Entity returns a copy of the tracked entity for uid.
func (s *Store) Entity(uid int64) (model.Entity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.state.Entities.Get(uid)
	if !ok {
		return model.Entity{}, false
	}
	return *e, true
}

// Inspect runs fn with the encounter while holding the lock. fn must not
// retain the pointer or call back into the Store.
func (s *Store) Inspect(fn func(e *Encounter)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state)
}

func copyIdentity(id model.CrowdsourceIdentity) model.CrowdsourceIdentity {
	return model.CrowdsourceIdentity{
		MonsterID:   clonePtr(id.MonsterID),
		MonsterName: clonePtr(id.MonsterName),
		RemoteID:    clonePtr(id.RemoteID),
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

package model

import (
	"fmt"
	"time"
)

//////////////////////////
// DATABASE STRUCTURES //
//////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&CrowdsourceSnapshotRecord{},
}

// CrowdsourceSnapshotRecord persists the last tracked crowdsource monster,
// one row per application scope.
type CrowdsourceSnapshotRecord struct {
	Scope       string    `json:"scope" gorm:"primaryKey;size:127"`
	MonsterID   int32     `json:"monsterId"`
	MonsterName string    `json:"monsterName" gorm:"size:255"`
	RemoteID    string    `json:"remoteId" gorm:"size:127"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (*CrowdsourceSnapshotRecord) TableName() string {
	return "crowdsource_snapshots"
}

// Snapshot converts the record to its domain value.
func (r *CrowdsourceSnapshotRecord) Snapshot() CrowdsourceSnapshot {
	return CrowdsourceSnapshot{
		MonsterID:   r.MonsterID,
		MonsterName: r.MonsterName,
		RemoteID:    r.RemoteID,
	}
}

////////////////////
// LIVE STRUCTURES //
////////////////////

// EntityType is the kind of a tracked game object, taken from the low 16
// bits of its protocol uuid.
type EntityType uint8

const (
	EntityUnknown EntityType = iota
	EntityCharacter
	EntityMonster
)

const (
	uuidTypeCharacter = 640
	uuidTypeMonster   = 64
)

func (t EntityType) String() string {
	switch t {
	case EntityCharacter:
		return "character"
	case EntityMonster:
		return "monster"
	default:
		return "unknown"
	}
}

// EntityTypeFromUUID extracts the entity type tag of a protocol uuid.
func EntityTypeFromUUID(uuid int64) EntityType {
	switch uuid & 0xffff {
	case uuidTypeCharacter:
		return EntityCharacter
	case uuidTypeMonster:
		return EntityMonster
	default:
		return EntityUnknown
	}
}

// UIDFromUUID drops the type tag from a protocol uuid.
func UIDFromUUID(uuid int64) int64 {
	return uuid >> 16
}

// Entity is one tracked player or monster. Unknown fields are nil.
type Entity struct {
	Type      EntityType
	Name      *string
	MonsterID *int32
	CurrHP    *int32
	MaxHP     *int32
}

// Position is the controlled character's 2D world position.
type Position struct {
	X *float32
	Y *float32
}

// Scene is the controlled character's scene placement.
type Scene struct {
	LineID *uint32
	Pos    *Position
}

// LocalPlayer is the last full-state record of the controlled character.
type LocalPlayer struct {
	CharID *int64
	Name   *string
	Scene  *Scene
}

// Location is a fully resolved report location.
type Location struct {
	Line int32
	X    float64
	Y    float64
}

// Location resolves the line and position of the local player, reporting
// false when any part is missing.
func (p *LocalPlayer) Location() (Location, bool) {
	if p == nil || p.Scene == nil || p.Scene.LineID == nil || p.Scene.Pos == nil {
		return Location{}, false
	}
	if p.Scene.Pos.X == nil || p.Scene.Pos.Y == nil {
		return Location{}, false
	}
	return Location{
		Line: int32(*p.Scene.LineID),
		X:    float64(*p.Scene.Pos.X),
		Y:    float64(*p.Scene.Pos.Y),
	}, true
}

// CrowdsourceIdentity is the currently tracked crowdsource monster. All
// fields are nil when nothing is tracked.
type CrowdsourceIdentity struct {
	MonsterID   *int32
	MonsterName *string
	RemoteID    *string
}

// IsZero reports whether no monster is tracked.
func (c CrowdsourceIdentity) IsZero() bool {
	return c.MonsterID == nil && c.MonsterName == nil && c.RemoteID == nil
}

// Equal compares two identities by value.
func (c CrowdsourceIdentity) Equal(o CrowdsourceIdentity) bool {
	return eqPtr(c.MonsterID, o.MonsterID) && eqPtr(c.MonsterName, o.MonsterName) && eqPtr(c.RemoteID, o.RemoteID)
}

// Snapshot materializes a persistable copy. It reports false unless all
// three fields are set.
func (c CrowdsourceIdentity) Snapshot() (CrowdsourceSnapshot, bool) {
	if c.MonsterID == nil || c.MonsterName == nil || c.RemoteID == nil {
		return CrowdsourceSnapshot{}, false
	}
	return CrowdsourceSnapshot{
		MonsterID:   *c.MonsterID,
		MonsterName: *c.MonsterName,
		RemoteID:    *c.RemoteID,
	}, true
}

func eqPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// CrowdsourceSnapshot is the durable record of the tracked crowdsource monster.
type CrowdsourceSnapshot struct {
	MonsterID   int32  `json:"monster_id"`
	MonsterName string `json:"monster_name"`
	RemoteID    string `json:"remote_id"`
}

// Identity converts the snapshot back into an in-memory identity.
func (s CrowdsourceSnapshot) Identity() CrowdsourceIdentity {
	id, name, remote := s.MonsterID, s.MonsterName, s.RemoteID
	return CrowdsourceIdentity{MonsterID: &id, MonsterName: &name, RemoteID: &remote}
}

func (s CrowdsourceSnapshot) String() string {
	return fmt.Sprintf("%s (%d, %s)", s.MonsterName, s.MonsterID, s.RemoteID)
}

// HPReport is the body posted to the crowdsource backend.
type HPReport struct {
	MonsterID int32   `json:"monster_id"`
	HPPct     int32   `json:"hp_pct"`
	Line      int32   `json:"line"`
	PosX      float64 `json:"pos_x"`
	PosY      float64 `json:"pos_y"`
}

// HeaderInfo summarizes the running encounter.
type HeaderInfo struct {
	TotalDmg               int64 `json:"total_dmg"`
	ElapsedMs              int64 `json:"elapsed_ms"`
	TimeLastCombatPacketMs int64 `json:"time_last_combat_packet_ms"`
}

// CrowdsourcedMonster is the tracked crowdsource monster as shown to the UI.
type CrowdsourcedMonster struct {
	Name     string  `json:"name"`
	ID       int32   `json:"id"`
	RemoteID *string `json:"remote_id"`
}

// CrowdsourcedMonsterOption is one selectable crowdsource monster.
type CrowdsourcedMonsterOption struct {
	Name     string `json:"name"`
	ID       int32  `json:"id"`
	RemoteID string `json:"remote_id"`
}

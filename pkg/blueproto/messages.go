// Package blueproto holds the subset of the game's protobuf notify messages
// the live meter consumes, with field numbers mirroring the upstream schema.
// Optional scalar fields are pointers so "absent" and "zero" stay distinct.
package blueproto

// SyncNearEntities lists entities entering the client's area of interest.
type SyncNearEntities struct {
	Appear    []*AoiSyncEntity   // 1
	Disappear []*DisappearEntity // 2
}

// AoiSyncEntity is a full attribute dump for one appearing entity.
type AoiSyncEntity struct {
	UUID    *int64          // 1
	EntType *int32          // 2
	Attrs   *AttrCollection // 3
}

// DisappearEntity marks an entity leaving the area of interest.
type DisappearEntity struct {
	UUID *int64 // 1
	Type *int32 // 2
}

// AttrCollection wraps the generic attribute records of an entity.
type AttrCollection struct {
	UUID  *int64  // 1
	Attrs []*Attr // 2
}

// Attr is a generic (id, raw bytes) attribute record.
type Attr struct {
	ID      *int32 // 1
	RawData []byte // 2
}

// SyncContainerData is the full-state sync for the controlled character.
type SyncContainerData struct {
	VData *CharSerialize // 1
}

// CharSerialize is the serialized controlled character.
type CharSerialize struct {
	CharID    *int64        // 1
	CharBase  *CharBaseInfo // 2
	SceneData *SceneData    // 3
}

// CharBaseInfo carries the character's base info.
type CharBaseInfo struct {
	CharID *int64  // 1
	Name   *string // 5
}

// SceneData locates the character in the world.
type SceneData struct {
	MapID     *uint32  // 1
	ChannelID *uint32  // 2
	Pos       *Vector3 // 3
	LineID    *uint32  // 5
}

// Vector3 is a world position.
type Vector3 struct {
	X *float32 // 1
	Y *float32 // 2
	Z *float32 // 3
}

// SyncServerTime is the periodic server clock sync.
type SyncServerTime struct {
	ClientMilliseconds *int64 // 1
	ServerMilliseconds *int64 // 2
}

// SyncToMeDeltaInfo is a delta for the controlled character.
type SyncToMeDeltaInfo struct {
	DeltaInfo *AoiSyncToMeDelta // 1
}

// AoiSyncToMeDelta wraps the generic delta with the controlled character's uuid.
type AoiSyncToMeDelta struct {
	BaseDelta *AoiSyncDelta // 1
	UUID      *int64        // 5
}

// SyncNearDeltaInfo batches deltas for nearby entities.
type SyncNearDeltaInfo struct {
	DeltaInfos []*AoiSyncDelta // 1
}

// AoiSyncDelta is an incremental update of one entity.
type AoiSyncDelta struct {
	UUID         *int64          // 1
	Attrs        *AttrCollection // 2
	SkillEffects *SkillEffect    // 7
}

// SkillEffect carries the damage events applied to the delta's entity.
type SkillEffect struct {
	UUID    *int64            // 1
	Damages []*SyncDamageInfo // 2
}

// SyncDamageInfo is one damage (or heal) event.
type SyncDamageInfo struct {
	DamageSource *int32 // 1
	IsMiss       *bool  // 2
	IsCrit       *bool  // 3
	Type         *int32 // 4
	AttackerUUID *int64 // 11
	Value        *int64 // 14
	LuckyValue   *int64 // 16
}

// Amount returns the damage carried by the event: the regular value when
// present, otherwise the lucky value, otherwise zero.
func (d *SyncDamageInfo) Amount() int64 {
	switch {
	case d.Value != nil:
		return *d.Value
	case d.LuckyValue != nil:
		return *d.LuckyValue
	default:
		return 0
	}
}

// ServerChangeInfo signals that the client moved to another server/session.
type ServerChangeInfo struct{}

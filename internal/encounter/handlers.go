package encounter

import (
	"errors"
	"fmt"

	"github.com/bpsr-logs/livemeter/internal/attr"
	"github.com/bpsr-logs/livemeter/internal/model"
	"github.com/bpsr-logs/livemeter/pkg/blueproto"
)

// ErrIncompleteMessage is returned when a field required to apply a message
// is missing. Mutations made before the missing field was hit are kept.
var ErrIncompleteMessage = errors.New("incomplete message")

func incomplete(field string) error {
	return fmt.Errorf("%w: missing %s", ErrIncompleteMessage, field)
}

// Effects are the side effects a message produced. They are settled by the
// caller after the state lock is released.
type Effects struct {
	Reports  []model.HPReport
	Snapshot *model.CrowdsourceSnapshot
}

// Empty reports whether there is nothing to settle.
func (fx Effects) Empty() bool {
	return len(fx.Reports) == 0 && fx.Snapshot == nil
}

// The apply* methods expect s.mu to be held.

func (s *Store) applyNearEntities(msg *blueproto.SyncNearEntities, fx *Effects) error {
	for _, ent := range msg.Appear {
		if ent.UUID == nil {
			return incomplete("appear.uuid")
		}
		uid := model.UIDFromUUID(*ent.UUID)
		typ := model.EntityTypeFromUUID(*ent.UUID)
		entity := s.state.Entities.Upsert(uid, typ)

		switch typ {
		case model.EntityCharacter:
			if ent.Attrs == nil {
				return incomplete("appear.attrs")
			}
			s.applyCharacterAttrs(uid, entity, ent.Attrs.Attrs)
		case model.EntityMonster:
			if ent.Attrs == nil {
				return incomplete("appear.attrs")
			}
			s.applyMonsterAttrs(uid, entity, ent.Attrs.Attrs, fx)
		}
	}
	return nil
}

func (s *Store) applyContainerData(msg *blueproto.SyncContainerData) error {
	s.state.LocalPlayer = localPlayerFrom(msg)

	v := msg.VData
	if v == nil {
		return incomplete("v_data")
	}
	if v.CharID == nil {
		return incomplete("v_data.char_id")
	}
	entity := s.state.Entities.Upsert(*v.CharID, model.EntityCharacter)
	if v.CharBase == nil {
		return incomplete("v_data.char_base")
	}
	if v.CharBase.Name == nil {
		return incomplete("v_data.char_base.name")
	}
	s.setPlayerName(*v.CharID, entity, *v.CharBase.Name)
	return nil
}

func localPlayerFrom(msg *blueproto.SyncContainerData) *model.LocalPlayer {
	p := &model.LocalPlayer{}
	v := msg.VData
	if v == nil {
		return p
	}
	p.CharID = v.CharID
	if v.CharBase != nil {
		p.Name = v.CharBase.Name
	}
	if sd := v.SceneData; sd != nil {
		p.Scene = &model.Scene{LineID: sd.LineID}
		if sd.Pos != nil {
			p.Scene.Pos = &model.Position{X: sd.Pos.X, Y: sd.Pos.Y}
		}
	}
	return p
}

func (s *Store) applyToMeDelta(msg *blueproto.SyncToMeDeltaInfo, fx *Effects) error {
	d := msg.DeltaInfo
	if d == nil {
		return incomplete("delta_info")
	}
	if d.UUID == nil {
		return incomplete("delta_info.uuid")
	}
	uid := model.UIDFromUUID(*d.UUID)
	s.state.LocalPlayerUID = &uid
	if d.BaseDelta == nil {
		return incomplete("delta_info.base_delta")
	}
	return s.applyDelta(d.BaseDelta, fx)
}

func (s *Store) applyNearDelta(msg *blueproto.SyncNearDeltaInfo, fx *Effects) error {
	var errs []error
	for i, d := range msg.DeltaInfos {
		if err := s.applyDelta(d, fx); err != nil {
			errs = append(errs, fmt.Errorf("delta %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Store) applyDelta(d *blueproto.AoiSyncDelta, fx *Effects) error {
	if d.UUID == nil {
		return incomplete("uuid")
	}
	uid := model.UIDFromUUID(*d.UUID)
	typ := model.EntityTypeFromUUID(*d.UUID)
	entity := s.state.Entities.Upsert(uid, typ)

	if d.Attrs != nil {
		switch typ {
		case model.EntityCharacter:
			s.applyCharacterAttrs(uid, entity, d.Attrs.Attrs)
		case model.EntityMonster:
			s.applyMonsterAttrs(uid, entity, d.Attrs.Attrs, fx)
		}
	}

	if d.SkillEffects == nil {
		return nil
	}
	for _, dmg := range d.SkillEffects.Damages {
		s.state.tick(s.now().UnixMilli())
		s.state.DamageTotal += dmg.Amount()
		s.confirmCrowdsource(entity, fx)
	}
	return nil
}

// confirmCrowdsource makes a damaged crowdsourced monster the tracked one.
// A changed identity is queued for persistence once it is complete.
func (s *Store) confirmCrowdsource(entity *model.Entity, fx *Effects) {
	id, ok := s.detector.Identify(entity)
	if !ok {
		return
	}
	prev := s.state.Crowdsource
	s.state.Crowdsource = id
	if prev.Equal(id) {
		return
	}
	if snap, ok := id.Snapshot(); ok {
		fx.Snapshot = &snap
	}
}

func (s *Store) applyCharacterAttrs(uid int64, entity *model.Entity, attrs []*blueproto.Attr) {
	for _, a := range attrs {
		if a.ID == nil || a.RawData == nil || *a.ID != attr.IDName {
			continue
		}
		v, err := attr.Decode(*a.ID, a.RawData)
		if err != nil {
			s.logger.Warn("Failed to read player name", "uid", uid, "error", err)
			continue
		}
		s.setPlayerName(uid, entity, v.Name)
	}
}

func (s *Store) setPlayerName(uid int64, entity *model.Entity, name string) {
	if entity.Name != nil && *entity.Name == name {
		return
	}
	entity.Name = &name
	s.logger.Info("Found player", "name", name, "uid", uid)
}

func (s *Store) applyMonsterAttrs(uid int64, entity *model.Entity, attrs []*blueproto.Attr, fx *Effects) {
	for _, a := range attrs {
		if a.ID == nil || a.RawData == nil {
			continue
		}
		v, err := attr.Decode(*a.ID, a.RawData)
		if err != nil {
			s.logger.Warn("Failed to decode monster attribute", "uid", uid, "attrId", *a.ID, "error", err)
			continue
		}

		switch v.Kind {
		case attr.KindMonsterID:
			id := v.Int
			entity.MonsterID = &id
		case attr.KindMaxHP:
			hp := v.Int
			entity.MaxHP = &hp
		case attr.KindCurrHP:
			prev := entity.CurrHP
			hp := v.Int
			entity.CurrHP = &hp
			if report, ok := s.detector.Evaluate(entity, prev, s.state.LocalPlayer); ok {
				fx.Reports = append(fx.Reports, report)
			}
		}
	}
}

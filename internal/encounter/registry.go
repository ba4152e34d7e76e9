package encounter

import "github.com/bpsr-logs/livemeter/internal/model"

// Registry maps entity UIDs to their tracked state. It is not safe for
// concurrent use; the Store serializes access.
type Registry struct {
	entities map[int64]*model.Entity
}

func NewRegistry() *Registry {
	return &Registry{entities: make(map[int64]*model.Entity)}
}

// Upsert returns the entity for uid, creating it with typ if absent. A known
// type is never replaced by EntityUnknown.
func (r *Registry) Upsert(uid int64, typ model.EntityType) *model.Entity {
	e, ok := r.entities[uid]
	if !ok {
		e = &model.Entity{Type: typ}
		r.entities[uid] = e
		return e
	}
	if typ != model.EntityUnknown {
		e.Type = typ
	}
	return e
}

func (r *Registry) Get(uid int64) (*model.Entity, bool) {
	e, ok := r.entities[uid]
	return e, ok
}

func (r *Registry) Len() int {
	return len(r.entities)
}

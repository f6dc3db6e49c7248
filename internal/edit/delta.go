package edit

// EntityRef identifies one affected entity in a command's delta.
type EntityRef struct {
	Entity string `json:"entity"`
	ID     string `json:"id"`
}

// Delta reports which entities a command created, updated, or removed, so
// callers can refresh exactly the views that changed instead of reloading
// the whole project.
type Delta struct {
	Created []EntityRef `json:"created,omitempty"`
	Updated []EntityRef `json:"updated,omitempty"`
	Removed []EntityRef `json:"removed,omitempty"`
}

func (d *Delta) created(entity, id string) {
	d.Created = append(d.Created, EntityRef{Entity: entity, ID: id})
}

func (d *Delta) updated(entity, id string) {
	d.Updated = append(d.Updated, EntityRef{Entity: entity, ID: id})
}

func (d *Delta) removed(entity, id string) {
	d.Removed = append(d.Removed, EntityRef{Entity: entity, ID: id})
}

// merge folds another delta into this one, used when occlusion side effects
// extend a command's own changes.
func (d *Delta) merge(other Delta) {
	d.Created = append(d.Created, other.Created...)
	d.Updated = append(d.Updated, other.Updated...)
	d.Removed = append(d.Removed, other.Removed...)
}

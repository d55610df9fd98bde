package session

// ref is the persistence identity composed into Session and RefreshToken.
// The id is empty until the first Save assigns one.
type ref struct {
	id    string
	saved bool
}

// ID returns the persisted identifier, or "" before the first save.
func (r ref) ID() string { return r.id }

// IsNew reports whether the entity has never been saved.
func (r ref) IsNew() bool { return !r.saved }

func (r *ref) markSaved(id string) {
	r.id = id
	r.saved = true
}

// Package session holds the per-page form controller: the event loop that
// drives calculations, the saved-elements list and the map scene for one open
// page, plus the registry of live pages.
package session

// State records which saved element set, if any, the form inputs came from.
// When LoadedID is set the inputs hold exactly that record's lines. It is
// advisory and is cleared on any divergence.
type State struct {
	LoadedID *int
}

// Loaded marks id as the source of the current inputs.
func (s State) Loaded(id int) State {
	return State{LoadedID: &id}
}

// Edited clears the loaded id after a hand edit of either input.
func (s State) Edited() State {
	return State{}
}

// Deleted clears the loaded id if it refers to the deleted record.
func (s State) Deleted(id int) State {
	if s.Is(id) {
		return State{}
	}
	return s
}

// Is reports whether id is the loaded record.
func (s State) Is(id int) bool {
	return s.LoadedID != nil && *s.LoadedID == id
}

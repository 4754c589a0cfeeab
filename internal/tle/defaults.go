package tle

// Built-in ISS element set, used until a catalogue containing the default
// satellite has been loaded.
const (
	BuiltinName  = "ISS (ZARYA)"
	BuiltinLine1 = "1 25544U 98067A   26290.51782528  .00014829  00000+0  26717-3 0  9996"
	BuiltinLine2 = "2 25544  51.6323 204.4617 0004721 145.1170 215.0127 15.50126513534211"

	DefaultNORADID = 25544
)

// Defaults picks the element set a new page starts with.
type Defaults struct {
	store   *Store
	noradID int
}

// NewDefaults returns the catalogue entry for noradID when store has one,
// and the built-in ISS lines otherwise. store may be nil.
func NewDefaults(store *Store, noradID int) *Defaults {
	return &Defaults{store: store, noradID: noradID}
}

// Elements returns the default name and lines.
func (d *Defaults) Elements() (name, line1, line2 string) {
	if d.store != nil {
		if e, ok := d.store.Lookup(d.noradID); ok {
			return e.Name, e.Line1, e.Line2
		}
	}
	return BuiltinName, BuiltinLine1, BuiltinLine2
}

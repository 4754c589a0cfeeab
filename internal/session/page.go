package session

import (
	"github.com/sudhakar086/nasa-python-sgp4/internal/calc"
	"github.com/sudhakar086/nasa-python-sgp4/internal/elements"
	"github.com/sudhakar086/nasa-python-sgp4/internal/render"
)

// EmptyListPlaceholder is shown in place of an empty saved-elements list.
const EmptyListPlaceholder = "No saved elements"

// Inputs are the two element-line fields of the form, untrimmed.
type Inputs struct {
	Line1 string `json:"line1"`
	Line2 string `json:"line2"`
}

// ListView is the saved-elements list panel.
type ListView struct {
	Open        bool              `json:"open"`
	Loading     bool              `json:"loading"`
	Records     []elements.Record `json:"records"`
	Placeholder string            `json:"placeholder,omitempty"`
}

// Page is a snapshot of everything the browser shows for one session.
// Version increases with every published snapshot.
type Page struct {
	Version     uint64               `json:"version"`
	Inputs      Inputs               `json:"inputs"`
	Pending     bool                 `json:"pending"`
	Error       string               `json:"error,omitempty"`
	ShowResults bool                 `json:"show_results"`
	Readouts    *calc.Readouts       `json:"readouts,omitempty"`
	List        ListView             `json:"list"`
	Alert       string               `json:"alert,omitempty"`
	LoadedID    *int                 `json:"loaded_id"`
	Scene       render.SceneSnapshot `json:"scene"`
}

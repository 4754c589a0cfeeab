package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/sudhakar086/nasa-python-sgp4/internal/calc"
	"github.com/sudhakar086/nasa-python-sgp4/internal/elements"
	"github.com/sudhakar086/nasa-python-sgp4/internal/metrics"
	"github.com/sudhakar086/nasa-python-sgp4/internal/render"
)

var (
	ErrClosed        = errors.New("session closed")
	ErrUnknownField  = errors.New("unknown input field")
	ErrUnknownRecord = errors.New("element set is not in the list")
	ErrNoStore       = errors.New("no element store configured")
)

// Store is the persistence service as seen by a controller.
type Store interface {
	List(ctx context.Context) ([]elements.Record, error)
	Save(ctx context.Context, name, line1, line2 string) (elements.Record, error)
	Delete(ctx context.Context, id int) error
}

// Options configures a Controller. Store may be nil, in which case the
// saved-elements operations report ErrNoStore.
type Options struct {
	Calculator calc.Calculator
	Store      Store
	Display    calc.Display
	Logger     *slog.Logger
}

// Controller runs the form logic of one page. All page, scene and state
// mutation happens on a single loop goroutine; network calls run on their own
// goroutines and post their completion back to the loop.
type Controller struct {
	opts     Options
	logger   *slog.Logger
	calc     *calc.Session
	scene    *render.Scene
	renderer *render.Renderer

	ctx    context.Context
	cancel context.CancelFunc
	events chan request
	quit   chan struct{}
	done   chan struct{}
	stop   sync.Once

	// Owned by the loop goroutine.
	inputs      Inputs
	state       State
	pending     bool
	errMsg      string
	showResults bool
	readouts    *calc.Readouts
	list        ListView
	listSeq     uint64
	alert       string
	version     uint64

	mu     sync.Mutex
	page   Page
	subs   map[chan Page]struct{}
	closed bool
}

type request struct {
	ev    any
	reply chan error
}

// User intents.
type (
	submitEvent    struct{ line1, line2 string }
	editEvent      struct{ field, value string }
	openListEvent  struct{}
	closeListEvent struct{}
	saveEvent      struct{ name string }
	deleteEvent    struct{ id int }
	loadEvent      struct{ id int }
	ackAlertEvent  struct{}
)

// Network completions.
type (
	calcDone struct{ out calc.Outcome }
	listDone struct {
		seq     uint64
		records []elements.Record
		err     error
	}
	saveDone struct {
		inputs Inputs // form contents when the save was issued
		rec    elements.Record
		err    error
	}
	deleteDone struct {
		id  int
		err error
	}
)

// NewController starts a controller whose form holds defaults, and submits
// them as the page-load calculation.
func NewController(opts Options, defaults Inputs) *Controller {
	c := newController(opts, defaults)
	go c.loop()
	return c
}

// newController builds a controller with the page-load submit queued but
// without starting its loop.
func newController(opts Options, defaults Inputs) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	scene := render.NewScene()
	c := &Controller{
		opts:     opts,
		logger:   opts.Logger.With("component", "session"),
		calc:     calc.NewSession(opts.Calculator, opts.Logger),
		scene:    scene,
		renderer: render.NewRenderer(scene),
		ctx:      ctx,
		cancel:   cancel,
		events:   make(chan request, 16),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		inputs:   defaults,
		subs:     make(map[chan Page]struct{}),
	}
	c.page = c.snapshot()

	c.events <- request{ev: submitEvent{line1: defaults.Line1, line2: defaults.Line2}}
	return c
}

// Submit runs a calculation for the given input values. A newer submission
// supersedes any calculation still in flight.
func (c *Controller) Submit(line1, line2 string) error {
	return c.send(submitEvent{line1: line1, line2: line2})
}

// Edit stores a hand-edited value for "line1" or "line2".
func (c *Controller) Edit(field, value string) error {
	return c.send(editEvent{field: field, value: value})
}

// OpenList shows the saved-elements list and fetches it.
func (c *Controller) OpenList() error { return c.send(openListEvent{}) }

// CloseList dismisses the saved-elements list.
func (c *Controller) CloseList() error { return c.send(closeListEvent{}) }

// Save stores the current inputs under name. An empty name cancels.
func (c *Controller) Save(name string) error { return c.send(saveEvent{name: name}) }

// Delete removes a saved element set.
func (c *Controller) Delete(id int) error { return c.send(deleteEvent{id: id}) }

// Load copies a listed record into the form and submits it.
func (c *Controller) Load(id int) error { return c.send(loadEvent{id: id}) }

// AckAlert dismisses the blocking alert.
func (c *Controller) AckAlert() error { return c.send(ackAlertEvent{}) }

// Snapshot returns the latest published page.
func (c *Controller) Snapshot() Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

// Subscribe returns a channel that receives every newly published page. A
// slow reader only sees the latest one. The channel is closed when the
// controller stops.
func (c *Controller) Subscribe() (<-chan Page, func()) {
	ch := make(chan Page, 1)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	c.subs[ch] = struct{}{}

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, ch)
	}
}

// Stop ends the loop, abandons in-flight requests and closes subscriptions.
func (c *Controller) Stop() {
	c.stop.Do(func() {
		c.cancel()
		close(c.quit)
		<-c.done

		c.mu.Lock()
		defer c.mu.Unlock()
		c.closed = true
		for ch := range c.subs {
			close(ch)
		}
		c.subs = nil
	})
}

// Done is closed once the loop has exited.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

func (c *Controller) send(ev any) error {
	reply := make(chan error, 1)
	select {
	case c.events <- request{ev: ev, reply: reply}:
	case <-c.done:
		return ErrClosed
	}
	select {
	case err := <-reply:
		return err
	case <-c.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrClosed
		}
	}
}

// complete posts a network completion back to the loop.
func (c *Controller) complete(ev any) {
	select {
	case c.events <- request{ev: ev}:
	case <-c.done:
	}
}

func (c *Controller) loop() {
	defer close(c.done)
	for {
		select {
		case <-c.quit:
			return
		case req := <-c.events:
			changed, err := c.handle(req.ev)
			if changed {
				c.publish()
			}
			if req.reply != nil {
				req.reply <- err
			}
		}
	}
}

func (c *Controller) handle(ev any) (bool, error) {
	switch ev := ev.(type) {
	case submitEvent:
		c.submit(ev.line1, ev.line2)
		return true, nil
	case editEvent:
		return c.edit(ev.field, ev.value)
	case openListEvent:
		if c.opts.Store == nil {
			return false, ErrNoStore
		}
		c.list.Open = true
		c.refreshList()
		return true, nil
	case closeListEvent:
		changed := c.list.Open
		c.list.Open = false
		return changed, nil
	case saveEvent:
		return c.save(ev.name)
	case deleteEvent:
		return c.delete(ev.id)
	case loadEvent:
		return c.load(ev.id)
	case ackAlertEvent:
		changed := c.alert != ""
		c.alert = ""
		return changed, nil

	case calcDone:
		return c.calculated(ev.out), nil
	case listDone:
		return c.listed(ev), nil
	case saveDone:
		return c.saved(ev), nil
	case deleteDone:
		return c.deleted(ev), nil
	}
	return false, fmt.Errorf("unhandled event %T", ev)
}

func (c *Controller) submit(line1, line2 string) {
	if line1 != c.inputs.Line1 || line2 != c.inputs.Line2 {
		c.inputs = Inputs{Line1: line1, Line2: line2}
		c.state = c.state.Edited()
	}
	line1, line2 = strings.TrimSpace(line1), strings.TrimSpace(line2)

	c.errMsg = ""
	c.pending = true
	token := c.calc.Begin()
	c.logger.Debug("calculation submitted", "token", token)

	go func() {
		c.complete(calcDone{out: c.calc.Run(c.ctx, token, line1, line2)})
	}()
}

func (c *Controller) calculated(out calc.Outcome) bool {
	if !c.calc.Current(out.Token) {
		metrics.IncStaleResponses()
		c.logger.Debug("dropping stale calculation", "token", out.Token)
		return false
	}

	c.pending = false
	if !out.OK() {
		c.errMsg = out.Message()
		c.showResults = false
		return true
	}

	readouts := c.opts.Display.Format(out.Result)
	c.readouts = &readouts
	c.showResults = true

	if pos, ok := out.Result.Geodetic(); ok {
		c.renderer.Update(pos, out.Result.PastPath, out.Result.Path)
	}
	return true
}

func (c *Controller) edit(field, value string) (bool, error) {
	switch field {
	case "line1":
		c.inputs.Line1 = value
	case "line2":
		c.inputs.Line2 = value
	default:
		return false, fmt.Errorf("%w %q", ErrUnknownField, field)
	}
	c.state = c.state.Edited()
	return true, nil
}

func (c *Controller) refreshList() {
	c.listSeq++
	seq := c.listSeq
	c.list.Loading = true

	go func() {
		records, err := c.opts.Store.List(c.ctx)
		c.complete(listDone{seq: seq, records: records, err: err})
	}()
}

func (c *Controller) listed(ev listDone) bool {
	if ev.seq != c.listSeq {
		return false
	}
	c.list.Loading = false
	if ev.err != nil {
		c.logger.Warn("listing saved elements failed", "error", ev.err)
		c.alert = "Could not load saved elements: " + ev.err.Error()
		return true
	}

	c.list.Records = ev.records
	c.list.Placeholder = ""
	if len(ev.records) == 0 {
		c.list.Placeholder = EmptyListPlaceholder
	}
	return true
}

func (c *Controller) save(name string) (bool, error) {
	if c.opts.Store == nil {
		return false, ErrNoStore
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return false, nil
	}
	inputs := c.inputs
	line1, line2 := strings.TrimSpace(inputs.Line1), strings.TrimSpace(inputs.Line2)

	go func() {
		rec, err := c.opts.Store.Save(c.ctx, name, line1, line2)
		c.complete(saveDone{inputs: inputs, rec: rec, err: err})
	}()
	return false, nil
}

func (c *Controller) saved(ev saveDone) bool {
	if ev.err != nil {
		c.logger.Warn("saving elements failed", "error", ev.err)
		c.alert = "Could not save elements: " + ev.err.Error()
		return true
	}

	// Only tag the inputs if they were not edited while the save was in flight.
	if c.inputs == ev.inputs {
		c.state = c.state.Loaded(ev.rec.ID)
	}
	if c.list.Open {
		c.refreshList()
	}
	return true
}

func (c *Controller) delete(id int) (bool, error) {
	if c.opts.Store == nil {
		return false, ErrNoStore
	}
	go func() {
		c.complete(deleteDone{id: id, err: c.opts.Store.Delete(c.ctx, id)})
	}()
	return false, nil
}

func (c *Controller) deleted(ev deleteDone) bool {
	if ev.err != nil {
		c.logger.Warn("deleting elements failed", "id", ev.id, "error", ev.err)
		c.alert = "Could not delete elements: " + ev.err.Error()
		return true
	}

	c.state = c.state.Deleted(ev.id)
	if c.list.Open {
		c.refreshList()
	}
	return true
}

func (c *Controller) load(id int) (bool, error) {
	for _, rec := range c.list.Records {
		if rec.ID != id {
			continue
		}
		c.inputs = Inputs{Line1: rec.Line1, Line2: rec.Line2}
		c.state = c.state.Loaded(rec.ID)
		c.list.Open = false
		c.submit(rec.Line1, rec.Line2)
		return true, nil
	}
	return false, fmt.Errorf("%w: %d", ErrUnknownRecord, id)
}

func (c *Controller) publish() {
	c.version++
	p := c.snapshot()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.page = p
	for ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- p
	}
}

func (c *Controller) snapshot() Page {
	p := Page{
		Version:     c.version,
		Inputs:      c.inputs,
		Pending:     c.pending,
		Error:       c.errMsg,
		ShowResults: c.showResults,
		List:        c.list,
		Alert:       c.alert,
		Scene:       c.scene.Snapshot(),
	}
	if c.showResults && c.readouts != nil {
		r := *c.readouts
		p.Readouts = &r
	}
	if c.state.LoadedID != nil {
		id := *c.state.LoadedID
		p.LoadedID = &id
	}
	return p
}

// Package submit drives one form: it validates and maps the fields, posts
// the payload to the relay and reports the outcome on a View.
package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/cdl-rdv/formrelay/pkg/formmap"
	"github.com/cdl-rdv/formrelay/pkg/trace"
)

// Button labels.
const (
	LabelBusy  = "Envoi en cours..."
	LabelReady = "Envoyer"
)

// MissingNameText is shown when the name field is empty.
const MissingNameText = "Le nom est obligatoire"

// Default lifetimes of the notices.
const (
	SuccessDelay = 5 * time.Second
	FailureDelay = 8 * time.Second
)

// ErrBusy is returned when a submission is already running on the
// controller.
var ErrBusy = errors.New("submit: submission already in progress")

// Controller submits one form at a time.
type Controller struct {
	endpoint string
	client   *http.Client
	mapper   *formmap.Mapper
	view     View

	successDelay time.Duration
	failureDelay time.Duration

	mu     sync.Mutex
	busy   bool
	closed bool
	nextID uint64
	timers map[uint64]*time.Timer
}

// Option configures a Controller.
type Option func(*Controller)

// WithHTTPClient sets the client used to reach the relay.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Controller) { c.client = client }
}

// WithDelays overrides how long success and failure notices stay visible.
func WithDelays(success, failure time.Duration) Option {
	return func(c *Controller) {
		c.successDelay = success
		c.failureDelay = failure
	}
}

// New returns a controller posting to endpoint.
func New(endpoint string, mapper *formmap.Mapper, view View, opts ...Option) *Controller {
	c := &Controller{
		endpoint:     endpoint,
		client:       http.DefaultClient,
		mapper:       mapper,
		view:         view,
		successDelay: SuccessDelay,
		failureDelay: FailureDelay,
		timers:       make(map[uint64]*time.Timer),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit sends the form described by d. The outcome is shown on the view
// and also returned.
func (c *Controller) Submit(ctx context.Context, d formmap.Descriptor, src formmap.FieldSource, pageURL string) (Result, error) {
	if !c.acquire() {
		return Result{}, ErrBusy
	}
	defer c.release()

	ctx, span := trace.NewSpan(ctx, "submit.Submit", attribute.String("form.id", d.FormID))
	defer span.End()

	if err := c.mapper.Validate(d, src); err != nil {
		c.view.ClearMessages()
		c.notify(Failure, MissingNameText, c.failureDelay)
		return Result{}, err
	}

	c.view.SetBusy(true, LabelBusy)
	defer c.view.SetBusy(false, LabelReady)

	res, err := c.send(ctx, d, src, pageURL)
	if err != nil {
		trace.Fail(span, err)
		log.Printf("form=%s err=%v", d.FormID, err)
		c.view.ClearMessages()
		c.notify(Failure, Reword(err), c.failureDelay)
		return Result{}, err
	}

	log.Printf("form=%s reference=%s test=%t", d.FormID, res.Reference, res.TestMode)
	c.view.Reset()
	c.view.ClearMessages()
	c.notify(Success, res.Text(), c.successDelay)
	return res, nil
}

func (c *Controller) send(ctx context.Context, d formmap.Descriptor, src formmap.FieldSource, pageURL string) (Result, error) {
	payload, err := c.mapper.Build(d, src, pageURL)
	if err != nil {
		return Result{}, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, pkgerrors.Wrap(err, "encoding payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, pkgerrors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")
	trace.InjectHeaders(ctx, req.Header)

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, pkgerrors.Wrap(err, "reading reply")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, newHTTPError(resp, raw)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var reply interface{}
	if err := dec.Decode(&reply); err != nil {
		return Result{}, pkgerrors.Wrap(err, "decoding reply")
	}
	return Classify(reply)
}

// notify shows a message and schedules its removal.
func (c *Controller) notify(kind MessageKind, text string, after time.Duration) {
	c.mu.Lock()
	c.nextID++
	m := Message{ID: c.nextID, Kind: kind, Text: text}
	c.mu.Unlock()

	c.view.Show(m)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.timers[m.ID] = time.AfterFunc(after, func() {
		c.mu.Lock()
		_, pending := c.timers[m.ID]
		delete(c.timers, m.ID)
		c.mu.Unlock()
		if pending {
			c.view.Remove(m)
		}
	})
}

func (c *Controller) acquire() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return false
	}
	c.busy = true
	return true
}

func (c *Controller) release() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

// Close cancels pending notice removals. Notices shown afterwards stay
// visible.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
}

package extraction

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"
)

// ErrModelUnavailable is returned when the entity model failed to load
var ErrModelUnavailable = errors.New("entity model unavailable")

// Entity is one span found by a named-entity recognizer
type Entity struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

// Recognizer runs named-entity recognition over text
type Recognizer interface {
	Recognize(text string) ([]Entity, error)
}

// Loader builds a Recognizer. It is expensive and runs at most once per Model
// unless a retry interval is configured.
type Loader func() (Recognizer, error)

type modelState struct {
	rec      Recognizer
	err      error
	loadedAt time.Time
}

// Model owns a lazily loaded Recognizer. Concurrent first callers share a
// single load, and a failed load is remembered.
type Model struct {
	load       Loader
	retryAfter time.Duration
	now        func() time.Time

	mu    sync.Mutex
	state atomic.Pointer[modelState]
}

// NewModel creates a lazy model handle. A zero retryAfter caches a failed
// load for the life of the process; otherwise the load is re-probed once the
// interval has elapsed.
func NewModel(load Loader, retryAfter time.Duration) *Model {
	return &Model{load: load, retryAfter: retryAfter, now: time.Now}
}

// Get returns the loaded recognizer, loading it on first use
func (m *Model) Get() (Recognizer, error) {
	if s := m.state.Load(); s != nil && !m.expired(s) {
		return s.rec, s.err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s := m.state.Load(); s != nil && !m.expired(s) {
		return s.rec, s.err
	}

	rec, err := m.safeLoad()
	if err == nil && rec == nil {
		err = ErrModelUnavailable
	}
	if err != nil {
		slog.Warn("entity model unavailable", "error", err)
		err = fmt.Errorf("%w: %v", ErrModelUnavailable, err)
		rec = nil
	}
	m.state.Store(&modelState{rec: rec, err: err, loadedAt: m.now()})
	return rec, err
}

func (m *Model) expired(s *modelState) bool {
	return s.err != nil && m.retryAfter > 0 && m.now().Sub(s.loadedAt) >= m.retryAfter
}

func (m *Model) safeLoad() (rec Recognizer, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec, err = nil, fmt.Errorf("loading entity model panicked: %v", r)
		}
	}()
	if m.load == nil {
		return nil, ErrModelUnavailable
	}
	return m.load()
}

// EntityVendor picks the shortest organization entity as the vendor name
type EntityVendor struct {
	Model *Model
	// MinLength is the text length at or below which the model is never asked
	MinLength int
}

// NewEntityVendor creates the entity-based vendor tier
func NewEntityVendor(model *Model) *EntityVendor {
	return &EntityVendor{Model: model, MinLength: 10}
}

// Name implements Tier
func (e *EntityVendor) Name() string {
	return "entity"
}

// Lookup implements Tier. Only vendor_name is answered.
func (e *EntityVendor) Lookup(field, text string) (any, bool) {
	if field != FieldVendorName {
		return nil, false
	}
	name := e.Vendor(text)
	if name == "" {
		return nil, false
	}
	return name, true
}

// Vendor returns the shortest organization name found, or an empty string
// when the text is too short or the model cannot be used.
func (e *EntityVendor) Vendor(text string) string {
	if utf8.RuneCountInString(text) <= e.MinLength || e.Model == nil {
		return ""
	}
	rec, err := e.Model.Get()
	if err != nil {
		return ""
	}
	entities, err := recognize(rec, text)
	if err != nil {
		slog.Debug("entity recognition failed", "error", err)
		return ""
	}

	best := ""
	for _, ent := range entities {
		label := strings.ToUpper(ent.Label)
		if label != "ORG" && label != "ORGANIZATION" {
			continue
		}
		span := strings.TrimSpace(ent.Text)
		n := utf8.RuneCountInString(span)
		if n <= 2 {
			continue
		}
		if best == "" || n < utf8.RuneCountInString(best) {
			best = span
		}
	}
	return best
}

func recognize(rec Recognizer, text string) (entities []Entity, err error) {
	defer func() {
		if r := recover(); r != nil {
			entities, err = nil, fmt.Errorf("entity recognition panicked: %v", r)
		}
	}()
	return rec.Recognize(text)
}

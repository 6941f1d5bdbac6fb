// Package id generates prefixed, lexicographically sortable ULIDs for the
// values that leave the process: pop-up requests, streamed events and
// request traces.
// Session ids are not generated here; the registry allocates small
// integers so the engine and UI can refer to them cheaply.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// PopupID identifies a queued pop-up request
type PopupID string

// EventID identifies an event pushed to stream clients
type EventID string

const (
	PopupPrefix = "pop"
	EventPrefix = "evt"
	TracePrefix = "trc"
	SpanPrefix  = "spn"
)

// Generator produces ULIDs that are strictly increasing within a millisecond
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand
func NewGenerator() *Generator {
	return NewGeneratorWithEntropy(rand.Reader)
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Useful for deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: ulid.Monotonic(entropy, 0),
		now:     time.Now,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy)
}

// GenerateWithPrefix creates a "prefix_ULID" string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate())
}

// NewPopupID generates a pop-up request id
func NewPopupID() PopupID {
	return PopupID(Default().GenerateWithPrefix(PopupPrefix))
}

// NewEventID generates a stream event id
func NewEventID() EventID {
	return EventID(Default().GenerateWithPrefix(EventPrefix))
}

// NewTraceID generates an id for a request trace
func NewTraceID() string {
	return Default().GenerateWithPrefix(TracePrefix)
}

// NewSpanID generates an id for one span of a trace
func NewSpanID() string {
	return Default().GenerateWithPrefix(SpanPrefix)
}

func (id PopupID) String() string { return string(id) }
func (id EventID) String() string { return string(id) }

// Valid reports whether id is "<prefix>_<ULID>"
func Valid(id, prefix string) bool {
	rest, ok := strings.CutPrefix(id, prefix+"_")
	if !ok {
		return false
	}
	_, err := ulid.ParseStrict(rest)
	return err == nil
}

// Timestamp extracts the creation time from a prefixed id
func Timestamp(id string) (time.Time, error) {
	_, raw, found := strings.Cut(id, "_")
	if !found {
		raw = id
	}
	parsed, err := ulid.ParseStrict(raw)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}

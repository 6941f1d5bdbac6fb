package listener

import (
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/sessionhub/internal/infrastructure/logging"
	"github.com/GriffinCanCode/sessionhub/internal/infrastructure/monitoring"
)

// Category names, used for logging and metrics labels
const (
	CategoryNavigation    = "navigation"
	CategoryProgress      = "progress"
	CategoryContent       = "content"
	CategoryTextInput     = "text_input"
	CategoryPrompt        = "prompt"
	CategorySessionChange = "session_change"
	CategoryVideo         = "video_availability"
)

// Hub holds the ordered listener collections. Add and Remove are safe
// from any goroutine, including from inside a listener callback.
// Notify methods iterate a snapshot taken under the lock and call
// listeners without holding it.
type Hub struct {
	mu            sync.Mutex
	navigation    list[Navigation]
	progress      list[Progress]
	content       list[Content]
	textInput     list[TextInput]
	prompt        list[Prompt]
	sessionChange list[SessionChange]
	video         list[VideoAvailability]

	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// NewHub creates an empty hub. Both arguments may be nil.
func NewHub(logger *logging.Logger, metrics *monitoring.Metrics) *Hub {
	return &Hub{
		logger:  logging.OrNop(logger).Named("listeners"),
		metrics: metrics,
	}
}

// AddNavigation adds l unless already present; it reports whether it was added
func (h *Hub) AddNavigation(l Navigation) bool { return add(h, &h.navigation, l) }

// RemoveNavigation removes l if present
func (h *Hub) RemoveNavigation(l Navigation) { remove(h, &h.navigation, l) }

func (h *Hub) AddProgress(l Progress) bool { return add(h, &h.progress, l) }
func (h *Hub) RemoveProgress(l Progress) { remove(h, &h.progress, l) }

func (h *Hub) AddContent(l Content) bool { return add(h, &h.content, l) }
func (h *Hub) RemoveContent(l Content) { remove(h, &h.content, l) }

func (h *Hub) AddTextInput(l TextInput) bool { return add(h, &h.textInput, l) }
func (h *Hub) RemoveTextInput(l TextInput) { remove(h, &h.textInput, l) }

func (h *Hub) AddPrompt(l Prompt) bool { return add(h, &h.prompt, l) }
func (h *Hub) RemovePrompt(l Prompt) { remove(h, &h.prompt, l) }

func (h *Hub) AddSessionChange(l SessionChange) bool { return add(h, &h.sessionChange, l) }
func (h *Hub) RemoveSessionChange(l SessionChange) { remove(h, &h.sessionChange, l) }

func (h *Hub) AddVideoAvailability(l VideoAvailability) bool { return add(h, &h.video, l) }
func (h *Hub) RemoveVideoAvailability(l VideoAvailability) { remove(h, &h.video, l) }

// Navigations returns a snapshot of the navigation listeners
func (h *Hub) Navigations() []Navigation {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.navigation.snapshot()
}

// Counts returns the size of every collection by category
func (h *Hub) Counts() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return map[string]int{
		CategoryNavigation:    len(h.navigation.items),
		CategoryProgress:      len(h.progress.items),
		CategoryContent:       len(h.content.items),
		CategoryTextInput:     len(h.textInput.items),
		CategoryPrompt:        len(h.prompt.items),
		CategorySessionChange: len(h.sessionChange.items),
		CategoryVideo:         len(h.video.items),
	}
}

func (h *Hub) NotifyNavigation(fn func(Navigation)) {
	notify(h, CategoryNavigation, &h.navigation, fn)
}

func (h *Hub) NotifyProgress(fn func(Progress)) {
	notify(h, CategoryProgress, &h.progress, fn)
}

func (h *Hub) NotifyContent(fn func(Content)) {
	notify(h, CategoryContent, &h.content, fn)
}

func (h *Hub) NotifyTextInput(fn func(TextInput)) {
	notify(h, CategoryTextInput, &h.textInput, fn)
}

func (h *Hub) NotifyPrompt(fn func(Prompt)) {
	notify(h, CategoryPrompt, &h.prompt, fn)
}

func (h *Hub) NotifySessionChange(fn func(SessionChange)) {
	notify(h, CategorySessionChange, &h.sessionChange, fn)
}

func (h *Hub) NotifyVideoAvailability(fn func(VideoAvailability)) {
	notify(h, CategoryVideo, &h.video, fn)
}

// Call runs fn for one listener, recovering and logging a panic.
// It reports whether fn returned normally.
func (h *Hub) Call(category string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			h.metrics.ListenerPanicked(category)
			h.logger.Error("listener panicked",
				zap.String("category", category),
				zap.String("panic", fmt.Sprint(r)),
				zap.Stack("stack"),
			)
		}
	}()
	fn()
	h.metrics.EventDispatched(category)
	return true
}

func add[T any](h *Hub, l *list[T], v T) bool {
	if isNil(v) {
		return false
	}
	if t := reflect.TypeOf(v); t.Kind() != reflect.Pointer {
		h.logger.Warn("rejected non-pointer listener", zap.Stringer("type", t))
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return l.add(v)
}

func remove[T any](h *Hub, l *list[T], v T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	l.remove(v)
}

func notify[T any](h *Hub, category string, l *list[T], fn func(T)) {
	h.mu.Lock()
	items := l.snapshot()
	h.mu.Unlock()

	for _, item := range items {
		h.Call(category, func() { fn(item) })
	}
}

// list is an ordered set keyed on listener identity
type list[T any] struct {
	items []T
}

func (l *list[T]) add(v T) bool {
	for _, existing := range l.items {
		if same(existing, v) {
			return false
		}
	}
	l.items = append(l.items, v)
	return true
}

func (l *list[T]) remove(v T) {
	for i, existing := range l.items {
		if same(existing, v) {
			l.items = append(l.items[:i:i], l.items[i+1:]...)
			return
		}
	}
}

func (l *list[T]) snapshot() []T {
	if len(l.items) == 0 {
		return nil
	}
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

// same compares listeners by pointer identity
func same(a, b any) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Kind() != reflect.Pointer || vb.Kind() != reflect.Pointer || va.Type() != vb.Type() {
		return false
	}
	return va.Pointer() == vb.Pointer()
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Chan, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

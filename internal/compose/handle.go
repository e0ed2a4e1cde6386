package compose

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/heimdex/reelcut/internal/mediatime"
)

// Result is the single terminal outcome of an export.
type Result struct {
	ExportID   string         `json:"export_id"`
	State      State          `json:"state"`
	OutputPath string         `json:"output_path,omitempty"`
	Duration   mediatime.Time `json:"duration"`
	Failure    FailureKind    `json:"failure,omitempty"`
	Error      string         `json:"error,omitempty"`
	Err        error          `json:"-"`
}

// Update is delivered to ExportOptions.OnUpdate on every state change and,
// rate-limited, on progress. The last update carries the Result.
type Update struct {
	ExportID string  `json:"export_id"`
	State    State   `json:"state"`
	Progress float64 `json:"progress"`
	Result   *Result `json:"result,omitempty"`
}

// Handle is the caller's view of a running export. All methods are safe to
// call from any goroutine.
type Handle struct {
	id     string
	cancel context.CancelFunc

	state    atomic.Int32
	progress atomic.Uint64

	mu        sync.Mutex
	last      float64
	sometimes rate.Sometimes

	events chan Update
	done   chan struct{}
	result Result
}

func newHandle(id string, cancel context.CancelFunc, interval time.Duration, onUpdate func(Update)) *Handle {
	h := &Handle{
		id:     id,
		cancel: cancel,
		events: make(chan Update, 64),
		done:   make(chan struct{}),
	}
	if interval > 0 {
		h.sometimes = rate.Sometimes{Interval: interval}
	} else {
		h.sometimes = rate.Sometimes{Every: 1}
	}

	// Every callback runs on this goroutine, in order.
	go func() {
		for u := range h.events {
			if onUpdate != nil {
				onUpdate(u)
			}
		}
		close(h.done)
	}()
	return h
}

func (h *Handle) ID() string { return h.id }

func (h *Handle) State() State { return State(h.state.Load()) }

// Progress returns the fraction rendered so far, in [0, 1].
func (h *Handle) Progress() float64 {
	return math.Float64frombits(h.progress.Load())
}

// Cancel asks the export to stop. It is honoured at the next asset load while
// the graph is built, and aborts the renderer while exporting.
func (h *Handle) Cancel() { h.cancel() }

// Done is closed after the terminal update has been delivered.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the export finishes or ctx ends.
func (h *Handle) Wait(ctx context.Context) (Result, error) {
	select {
	case <-h.done:
		return h.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Result returns the outcome once the export has finished.
func (h *Handle) Result() (Result, bool) {
	select {
	case <-h.done:
		return h.result, true
	default:
		return Result{}, false
	}
}

func (h *Handle) transition(to State) bool {
	from := h.State()
	if !canTransition(from, to) {
		return false
	}
	h.state.Store(int32(to))
	h.events <- Update{ExportID: h.id, State: to, Progress: h.Progress()}
	return true
}

// reportProgress records a renderer progress sample. Samples that would move
// progress backwards are ignored; delivery is rate-limited.
func (h *Handle) reportProgress(fraction float64) {
	if math.IsNaN(fraction) {
		return
	}
	fraction = math.Max(0, math.Min(1, fraction))

	h.mu.Lock()
	defer h.mu.Unlock()
	if fraction <= h.last || h.State() != StateExporting {
		return
	}
	h.last = fraction
	h.progress.Store(math.Float64bits(fraction))

	h.sometimes.Do(func() {
		select {
		case h.events <- Update{ExportID: h.id, State: StateExporting, Progress: fraction}:
		default:
		}
	})
}

// finish publishes the terminal result and stops the dispatcher.
func (h *Handle) finish(res Result) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if res.State == StateCompleted {
		h.last = 1
		h.progress.Store(math.Float64bits(1))
	}
	h.state.Store(int32(res.State))
	h.result = res
	h.events <- Update{ExportID: h.id, State: res.State, Progress: h.Progress(), Result: &res}
	close(h.events)
	h.cancel()
}

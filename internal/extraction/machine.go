package extraction

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zombor/bill-scanner/internal/intake"
	"github.com/zombor/bill-scanner/internal/receipt"
)

// Phase is the lifecycle state of a scan cycle
type Phase string

const (
	Idle       Phase = "idle"
	Processing Phase = "processing"
	Success    Phase = "success"
	Error      Phase = "error"
)

// FallbackMessage is shown when a failure carries no message of its own
const FallbackMessage = "Failed to extract data. Please try a clearer image."

// Extractor turns an encoded document into receipt data
type Extractor interface {
	Extract(ctx context.Context, encoded string, mimeType string) (*receipt.ReceiptData, error)
}

// SuccessFunc is called after a successful extraction has been stored
type SuccessFunc func(ctx context.Context, token uint64, sel intake.Selection, data *receipt.ReceiptData)

// State is a point-in-time copy of the machine
type State struct {
	Phase    Phase                `json:"phase"`
	Token    uint64               `json:"token"`
	Filename string               `json:"filename,omitempty"`
	MimeType string               `json:"mimeType,omitempty"`
	Preview  string               `json:"-"`
	Result   *receipt.ReceiptData `json:"result,omitempty"`
	Error    string               `json:"error,omitempty"`
}

// Machine owns the single active scan cycle. Every Select starts a new
// cycle identified by a monotonically increasing token; results that come
// back for any other token are dropped and their context is cancelled.
type Machine struct {
	extractor Extractor
	timeout   time.Duration
	onSuccess SuccessFunc

	mu     sync.Mutex
	phase  Phase
	token  uint64
	sel    *intake.Selection
	result *receipt.ReceiptData
	errMsg string
	cancel context.CancelFunc

	wg sync.WaitGroup
}

// Option configures a Machine
type Option func(*Machine)

// WithTimeout bounds each extraction call. Zero disables the deadline.
func WithTimeout(d time.Duration) Option {
	return func(m *Machine) {
		m.timeout = d
	}
}

// WithOnSuccess registers a hook run after each stored success
func WithOnSuccess(fn SuccessFunc) Option {
	return func(m *Machine) {
		m.onSuccess = fn
	}
}

// New creates a Machine in the Idle phase
func New(extractor Extractor, opts ...Option) *Machine {
	m := &Machine{
		extractor: extractor,
		phase:     Idle,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Select starts a new cycle for the selection and returns its token. Any
// earlier cycle is superseded and its request cancelled.
func (m *Machine) Select(sel intake.Selection) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancelLocked()
	m.token++
	token := m.token

	m.result = nil
	m.errMsg = ""
	m.sel = &sel
	m.phase = Processing

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if m.timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), m.timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	m.cancel = cancel

	slog.Info("Starting extraction",
		"token", token,
		"filename", sel.Filename,
		"content_type", sel.MimeType,
		"file_size", len(sel.Data),
	)

	m.wg.Add(1)
	go m.run(ctx, token, sel)

	return token
}

// Reset discards the file, preview, result and error and returns to Idle.
// An in-flight request is cancelled and its result ignored.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancelLocked()
	m.token++
	m.sel = nil
	m.result = nil
	m.errMsg = ""
	m.phase = Idle
}

// Snapshot returns a copy of the current state
func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := State{
		Phase:  m.phase,
		Token:  m.token,
		Result: m.result,
		Error:  m.errMsg,
	}
	if m.sel != nil {
		s.Filename = m.sel.Filename
		s.MimeType = m.sel.MimeType
		s.Preview = m.sel.Preview
	}
	return s
}

// Wait blocks until every started extraction has returned
func (m *Machine) Wait() {
	m.wg.Wait()
}

func (m *Machine) run(ctx context.Context, token uint64, sel intake.Selection) {
	defer m.wg.Done()

	data, err := m.extractor.Extract(ctx, sel.Encoded(), sel.MimeType)
	m.settle(ctx, token, sel, data, err)
}

func (m *Machine) settle(ctx context.Context, token uint64, sel intake.Selection, data *receipt.ReceiptData, err error) {
	m.mu.Lock()
	if token != m.token {
		current := m.token
		m.mu.Unlock()
		slog.Debug("Discarding stale extraction result", "token", token, "current", current)
		return
	}

	m.cancelLocked()

	if err != nil || data == nil {
		m.phase = Error
		m.errMsg = failureMessage(err)
		m.mu.Unlock()
		slog.Error("Failed to extract receipt",
			"token", token,
			"filename", sel.Filename,
			"content_type", sel.MimeType,
			"file_size", len(sel.Data),
			"error", err,
		)
		return
	}

	m.phase = Success
	m.result = data
	hook := m.onSuccess
	m.mu.Unlock()

	slog.Info("Extraction succeeded", "token", token, "filename", sel.Filename, "items", len(data.Items))
	if hook != nil {
		hook(context.WithoutCancel(ctx), token, sel, data)
	}
}

func (m *Machine) cancelLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func failureMessage(err error) string {
	if err == nil || err.Error() == "" {
		return FallbackMessage
	}
	return err.Error()
}

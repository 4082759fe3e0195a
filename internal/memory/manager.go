package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/davidealbano/aria/internal/observability"
	"github.com/davidealbano/aria/internal/reliability"
	"github.com/davidealbano/aria/internal/textgen"
)

// OutcomeStatus classifies one compression attempt.
type OutcomeStatus string

const (
	OutcomeOK      OutcomeStatus = "ok"
	OutcomeSkipped OutcomeStatus = "skipped"
	OutcomeFailed  OutcomeStatus = "failed"
)

// Outcome is the tagged result of an UpdateBuffer call. Failures never
// propagate to the chat path; they are reported here for logs and metrics
// and otherwise leave the buffer unchanged.
type Outcome struct {
	Status OutcomeStatus
	Reason string
	Err    error
}

func skipped(reason string) Outcome { return Outcome{Status: OutcomeSkipped, Reason: reason} }
func failed(reason string, err error) Outcome {
	return Outcome{Status: OutcomeFailed, Reason: reason, Err: err}
}

// Options tune the compression cadence.
type Options struct {
	// CompressEvery is the batch size: a cycle fires only once at least
	// this many turns accumulated beyond the batches already summarized.
	CompressEvery int
	// Lookback is the fixed transcript window passed to the backend.
	Lookback int
	// Timeout bounds each text-generation call.
	Timeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.CompressEvery <= 0 {
		o.CompressEvery = 10
	}
	if o.Lookback <= 0 {
		o.Lookback = 15
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	return o
}

// Manager owns the session buffers and runs the compression cycle. All
// operations degrade missing-buffer conditions to logged no-ops; nothing
// here may block or fail the chat-serving path.
type Manager struct {
	store   BufferStore
	gen     textgen.Client
	metrics *observability.Metrics
	log     *slog.Logger
	opts    Options

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewManager(store BufferStore, gen textgen.Client, metrics *observability.Metrics, log *slog.Logger, opts Options) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		store:    store,
		gen:      gen,
		metrics:  metrics,
		log:      log,
		opts:     opts.withDefaults(),
		inflight: make(map[string]struct{}),
	}
}

// Initialize creates an empty buffer if none exists for the session.
// Re-initializing an existing session preserves its turns; use Reset to
// force a fresh buffer.
func (m *Manager) Initialize(ctx context.Context, sessionID, userID string) error {
	created, err := m.store.Create(ctx, sessionID, userID)
	if err != nil {
		return fmt.Errorf("initialize buffer: %w", err)
	}
	if created && m.metrics != nil {
		m.metrics.ActiveBuffers.Inc()
	}
	if !created {
		m.log.Debug("buffer already initialized", "session_id", sessionID)
	}
	return nil
}

// Reset discards any existing buffer and starts an empty one.
func (m *Manager) Reset(ctx context.Context, sessionID, userID string) error {
	existed, err := m.store.Reset(ctx, sessionID, userID)
	if err != nil {
		return fmt.Errorf("reset buffer: %w", err)
	}
	if !existed && m.metrics != nil {
		m.metrics.ActiveBuffers.Inc()
	}
	return nil
}

// AddMessage appends a turn with the current timestamp. Appends are
// best-effort: a missing buffer logs a warning and drops the turn rather
// than failing the reply being delivered to the user.
func (m *Manager) AddMessage(ctx context.Context, sessionID string, role Role, content string) {
	if !role.Valid() {
		m.log.Warn("dropping turn with unknown role", "session_id", sessionID, "role", string(role))
		return
	}
	err := m.store.AppendTurn(ctx, sessionID, Turn{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
	if errors.Is(err, ErrNotFound) {
		m.log.Warn("dropping turn for uninitialized session", "session_id", sessionID)
		return
	}
	if err != nil {
		m.log.Warn("failed to append turn", "session_id", sessionID, "error", err)
	}
}

// MessageCount returns the number of turns, or 0 when no buffer exists.
func (m *Manager) MessageCount(ctx context.Context, sessionID string) int {
	n, err := m.store.TurnCount(ctx, sessionID)
	if err != nil {
		return 0
	}
	return n
}

// Buffer returns a diagnostic snapshot of the full buffer record.
func (m *Manager) Buffer(ctx context.Context, sessionID string) (*SessionBuffer, error) {
	return m.store.Snapshot(ctx, sessionID)
}

// Clear removes the buffer entirely. Safe on a non-existent session.
func (m *Manager) Clear(ctx context.Context, sessionID string) {
	existed, err := m.store.Delete(ctx, sessionID)
	if err != nil {
		m.log.Warn("failed to clear buffer", "session_id", sessionID, "error", err)
		return
	}
	if existed && m.metrics != nil {
		m.metrics.ActiveBuffers.Dec()
	}
}

// UpdateBuffer runs one compression check. It is a no-op until a full
// batch of new turns has accumulated, tolerates a concurrent call for the
// same session by skipping, and swallows every failure: the next trigger
// point retries over the same or a larger unsummarized tail.
func (m *Manager) UpdateBuffer(ctx context.Context, sessionID string) Outcome {
	out := m.updateBuffer(ctx, sessionID)

	switch out.Status {
	case OutcomeOK:
		m.log.Info("compression cycle completed", "session_id", sessionID)
	case OutcomeSkipped:
		m.log.Debug("compression skipped", "session_id", sessionID, "reason", out.Reason)
	case OutcomeFailed:
		m.log.Warn("compression failed", "session_id", sessionID, "reason", out.Reason, "error", out.Err)
	}
	if m.metrics != nil {
		m.metrics.CompressionCycles.WithLabelValues(string(out.Status)).Inc()
		if out.Status == OutcomeFailed && out.Reason == "backend" {
			m.metrics.TextGenErrors.WithLabelValues(reliability.Classify(out.Err)).Inc()
		}
	}
	return out
}

func (m *Manager) updateBuffer(ctx context.Context, sessionID string) Outcome {
	// The in-flight slot guards the whole check-and-append sequence: the
	// batch condition must be evaluated against a snapshot taken while
	// holding it, or two racing callers could both pass the check and
	// summarize the same batch twice.
	if !m.acquire(sessionID) {
		return skipped("in_flight")
	}
	defer m.release(sessionID)

	buf, err := m.store.Snapshot(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return skipped("missing_buffer")
	}
	if err != nil {
		return failed("store", err)
	}

	every := m.opts.CompressEvery
	if len(buf.Turns) < every {
		return skipped("too_few_turns")
	}
	// One cycle per full batch: with N summaries recorded, the next cycle
	// waits until turn (N+1)*every exists.
	if len(buf.Turns) < (len(buf.RollingSummaries)+1)*every {
		return skipped("no_new_batch")
	}

	window := renderWindow(buf.Turns, m.opts.Lookback)
	prompt := buildCompressPrompt(window)

	callCtx, cancel := context.WithTimeout(ctx, m.opts.Timeout)
	defer cancel()

	start := time.Now()
	text, err := m.gen.Complete(callCtx, prompt)
	if m.metrics != nil {
		m.metrics.ObserveTextGenLatency(time.Since(start))
	}
	if err != nil {
		return failed("backend", err)
	}

	sum, ok := parseCompressReply(text)
	if !ok {
		return failed("unparseable", fmt.Errorf("no labeled fields in reply"))
	}

	if err := m.store.AppendSummary(ctx, sessionID, sum, time.Now().UTC()); err != nil {
		return failed("store", err)
	}
	return Outcome{Status: OutcomeOK}
}

func (m *Manager) acquire(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.inflight[sessionID]; busy {
		return false
	}
	m.inflight[sessionID] = struct{}{}
	return true
}

func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inflight, sessionID)
}

// WorkingMemory renders the condensed context block for the next outbound
// prompt. It is a fresh view over current state; an empty string means no
// compression has succeeded yet.
func (m *Manager) WorkingMemory(ctx context.Context, sessionID string) string {
	buf, err := m.store.Snapshot(ctx, sessionID)
	if err != nil || len(buf.RollingSummaries) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Conversation memory so far:\n")
	for i, s := range buf.RollingSummaries {
		fmt.Fprintf(&sb, "%d. [%s] %s\n", i+1, s.Topic, s.Summary)
	}
	sb.WriteString("Emotional arc: ")
	sb.WriteString(strings.Join(buf.EmotionTrail, " -> "))
	sb.WriteString("\n")

	last := buf.RollingSummaries[len(buf.RollingSummaries)-1]
	fmt.Fprintf(&sb, "Current topic: %s\n", last.Topic)
	fmt.Fprintf(&sb, "Current emotion: %s", buf.EmotionTrail[len(buf.EmotionTrail)-1])
	return sb.String()
}

// Transcript renders the full turn history as "ROLE: content" lines for
// the session-end tagging pass.
func (m *Manager) Transcript(ctx context.Context, sessionID string) (string, error) {
	buf, err := m.store.Snapshot(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return renderWindow(buf.Turns, 0), nil
}

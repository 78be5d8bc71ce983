package botworker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/browserbot-relay/internal/metrics"
	"github.com/JakeFAU/browserbot-relay/internal/participant"
)

// DefaultPruneLimit caps how many sessions the worker keeps in memory.
const DefaultPruneLimit = 50

// PageArchive persists the page HTML observed on prepare calls, for
// post-mortem debugging of desynchronized bots. Optional.
type PageArchive interface {
	PutPage(ctx context.Context, participantCode, pagePath string, html []byte) (string, error)
}

// WorkerConfig controls Worker behavior.
type WorkerConfig struct {
	// PruneLimit bounds the session map; least-recently-touched sessions
	// beyond it are evicted. Defaults to DefaultPruneLimit.
	PruneLimit int
}

// session is one participant currently loaded in the worker.
type session struct {
	code   string
	source SubmitSource
	page   PageView
}

// Worker owns the bot sessions and the prepared-submit cache and executes
// the command protocol against them. Command execution is serial: the
// receive loop feeds it one request at a time. The mutex still makes the
// check-then-advance sequence in PrepareNextSubmit atomic relative to
// itself, so a duplicated request stays idempotent even if execution is ever
// parallelized.
type Worker struct {
	participants participant.Store
	newSource    SourceFactory
	archive      PageArchive
	cfg          WorkerConfig
	logger       *zap.Logger

	mu       sync.Mutex
	sessions map[string]*session
	// recency holds participant codes least-recently-touched first.
	recency  []string
	prepared map[string]SubmitPayload
}

// NewWorker constructs a Worker. archive may be nil.
func NewWorker(
	participants participant.Store,
	newSource SourceFactory,
	archive PageArchive,
	cfg WorkerConfig,
	logger *zap.Logger,
) *Worker {
	if cfg.PruneLimit <= 0 {
		cfg.PruneLimit = DefaultPruneLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		participants: participants,
		newSource:    newSource,
		archive:      archive,
		cfg:          cfg,
		logger:       logger,
		sessions:     make(map[string]*session),
		prepared:     make(map[string]SubmitPayload),
	}
}

// InitializeParticipant creates or replaces the session for a participant.
// It fails only if the participant record does not exist.
func (w *Worker) InitializeParticipant(ctx context.Context, participantCode string) error {
	p, err := w.participants.Get(ctx, participantCode)
	if err != nil {
		return fmt.Errorf("look up participant %s: %w", participantCode, err)
	}
	source, err := w.newSource(p)
	if err != nil {
		return fmt.Errorf("build submit source for %s: %w", participantCode, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.sessions[participantCode] = &session{code: participantCode, source: source}
	w.touchLocked(participantCode)
	w.pruneLocked()
	metrics.SetLiveSessions(len(w.sessions))
	return nil
}

// PrepareNextSubmit computes or confirms the next submission for a
// participant. A second prepare without an intervening consume returns the
// empty acknowledgement and does not advance the source. An exhausted source
// stores and returns the empty placeholder. A missing session fails with
// NotLoadedError.
func (w *Worker) PrepareNextSubmit(ctx context.Context, participantCode, path, html string) (SubmitPayload, error) {
	if w.archive != nil {
		if _, err := w.archive.PutPage(ctx, participantCode, path, []byte(html)); err != nil {
			w.logger.Warn("page archive write failed",
				zap.String("participant_code", participantCode),
				zap.String("path", path),
				zap.Error(err),
			)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	sess, ok := w.sessions[participantCode]
	if !ok {
		return SubmitPayload{}, &NotLoadedError{
			ParticipantCode: participantCode,
			PruneLimit:      w.cfg.PruneLimit,
		}
	}
	sess.page = PageView{Path: path, HTML: html}
	w.touchLocked(participantCode)

	if _, exists := w.prepared[participantCode]; exists {
		// Duplicate request; the earlier one already advanced the source.
		return SubmitPayload{}, nil
	}

	submission, err := sess.source.Next(sess.page)
	var payload SubmitPayload
	switch {
	case err == nil:
		// The page-class tag never leaves the worker.
		payload = SubmitPayload{PostData: submission.PostData}
	case errors.Is(err, ErrExhausted):
		// Keep the session so stray requests for it still resolve; store the
		// placeholder to distinguish "no more submits" from a transport
		// timeout.
		payload = SubmitPayload{}
	default:
		return SubmitPayload{}, fmt.Errorf("advance submit source for %s: %w", participantCode, err)
	}

	w.prepared[participantCode] = payload
	metrics.SetPreparedSubmits(len(w.prepared))
	return payload, nil
}

// ConsumeNextSubmit removes and returns the prepared submit for a
// participant. Consuming without a prior prepare is a contract violation and
// fails with NoPreparedSubmitError.
func (w *Worker) ConsumeNextSubmit(participantCode string) (SubmitPayload, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	payload, ok := w.prepared[participantCode]
	if !ok {
		return SubmitPayload{}, &NoPreparedSubmitError{ParticipantCode: participantCode}
	}
	delete(w.prepared, participantCode)
	metrics.SetPreparedSubmits(len(w.prepared))
	return payload, nil
}

// ClearAll discards every session and every prepared submit.
func (w *Worker) ClearAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sessions = make(map[string]*session)
	w.prepared = make(map[string]SubmitPayload)
	w.recency = nil
	metrics.SetLiveSessions(0)
	metrics.SetPreparedSubmits(0)
}

// Ping does nothing. It exists purely as a liveness probe.
func (w *Worker) Ping() {}

// SessionCount reports the number of loaded sessions.
func (w *Worker) SessionCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.sessions)
}

// touchLocked moves a code to the most-recently-used end of the recency
// list. Caller holds w.mu.
func (w *Worker) touchLocked(participantCode string) {
	for i, code := range w.recency {
		if code == participantCode {
			w.recency = append(w.recency[:i], w.recency[i+1:]...)
			break
		}
	}
	w.recency = append(w.recency, participantCode)
}

// pruneLocked evicts least-recently-touched sessions beyond the prune limit,
// together with their prepared submits, so a pruned participant always gets
// the not-loaded request error. Caller holds w.mu.
func (w *Worker) pruneLocked() {
	for len(w.sessions) > w.cfg.PruneLimit && len(w.recency) > 0 {
		oldest := w.recency[0]
		w.recency = w.recency[1:]
		delete(w.sessions, oldest)
		delete(w.prepared, oldest)
		metrics.IncSessionsEvicted()
		w.logger.Info("pruned session", zap.String("participant_code", oldest))
	}
	metrics.SetPreparedSubmits(len(w.prepared))
}

package botworker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/browserbot-relay/internal/channel"
)

// Default per-call response waits. Prepare gets the longest budget because a
// failing command can take a while to produce its error detail; in practice
// answers arrive in about a millisecond.
const (
	defaultPrepareTimeout    = 3 * time.Second
	defaultConsumeTimeout    = time.Second
	defaultPingTimeout       = time.Second
	defaultInitializeTimeout = time.Second
)

// Client is the call surface request handlers drive a bot through. The
// channel-backed EphemeralBot and the in-process LocalClient both implement
// it.
type Client interface {
	Initialize(ctx context.Context) error
	PrepareNextSubmit(ctx context.Context, html string) error
	NextPostData(ctx context.Context) (map[string]any, error)
	SendCompletionMessage(ctx context.Context) error
}

// BotConfig controls an EphemeralBot's key prefix and timeouts. The zero
// value gets the defaults.
type BotConfig struct {
	Prefix            string
	PrepareTimeout    time.Duration
	ConsumeTimeout    time.Duration
	PingTimeout       time.Duration
	InitializeTimeout time.Duration
}

func (c *BotConfig) applyDefaults() {
	if c.Prefix == "" {
		c.Prefix = DefaultKeyPrefix
	}
	if c.PrepareTimeout <= 0 {
		c.PrepareTimeout = defaultPrepareTimeout
	}
	if c.ConsumeTimeout <= 0 {
		c.ConsumeTimeout = defaultConsumeTimeout
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = defaultPingTimeout
	}
	if c.InitializeTimeout <= 0 {
		c.InitializeTimeout = defaultInitializeTimeout
	}
}

// EphemeralBot is the per-request proxy to the botworker. It is constructed
// inside a single request-handling call and holds no state that outlives it:
// only the channel handle, the participant identity and the current path.
type EphemeralBot struct {
	ch          channel.Channel
	broadcaster channel.Broadcaster

	participantCode string
	sessionCode     string
	path            string

	cfg    BotConfig
	logger *zap.Logger
}

// NewEphemeralBot constructs a proxy for one request. path is the page the
// client is currently on. broadcaster may be nil if completion messages are
// not needed.
func NewEphemeralBot(
	ch channel.Channel,
	broadcaster channel.Broadcaster,
	participantCode, sessionCode, path string,
	cfg BotConfig,
	logger *zap.Logger,
) *EphemeralBot {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EphemeralBot{
		ch:              ch,
		broadcaster:     broadcaster,
		participantCode: participantCode,
		sessionCode:     sessionCode,
		path:            path,
		cfg:             cfg,
		logger:          logger,
	}
}

// Ping probes worker liveness. A silent worker is ErrWorkerUnreachable.
func (b *EphemeralBot) Ping(ctx context.Context) error {
	_, ok, err := b.call(ctx, CmdPing, Kwargs{}, b.cfg.PingTimeout)
	if err != nil {
		return err
	}
	if !ok {
		return ErrWorkerUnreachable
	}
	return nil
}

// Initialize creates the worker-side session for this participant. It pings
// first so an absent worker is reported as unreachable rather than as a
// failed initialize.
func (b *EphemeralBot) Initialize(ctx context.Context) error {
	if err := b.Ping(ctx); err != nil {
		return err
	}
	resp, ok, err := b.call(
		ctx,
		CmdInitializeParticipant,
		Kwargs{ParticipantCode: b.participantCode},
		b.cfg.InitializeTimeout,
	)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("initialize participant %s: %w", b.participantCode, ErrWorkerUnresponsive)
	}
	if resp.ResponseError != "" {
		return &ResponseError{Message: resp.ResponseError, Traceback: resp.Traceback}
	}
	return nil
}

// PrepareNextSubmit asks the worker to compute (or confirm) the next submit
// for the page whose HTML is given. On timeout it pings to tell an absent
// worker from a stalled one.
func (b *EphemeralBot) PrepareNextSubmit(ctx context.Context, html string) error {
	resp, err := b.callOrDiagnose(
		ctx,
		CmdPrepareNextSubmit,
		Kwargs{ParticipantCode: b.participantCode, Path: b.path, HTML: html},
		b.cfg.PrepareTimeout,
	)
	if err != nil {
		return err
	}
	if resp.ResponseError != "" {
		return &ResponseError{Message: resp.ResponseError, Traceback: resp.Traceback}
	}
	if resp.RequestError != "" {
		return &RequestError{Message: resp.RequestError}
	}
	return nil
}

// NextPostData consumes the prepared submit and returns its post data. The
// empty placeholder is reported as ErrNoMoreSubmits.
func (b *EphemeralBot) NextPostData(ctx context.Context) (map[string]any, error) {
	resp, err := b.callOrDiagnose(
		ctx,
		CmdConsumeNextSubmit,
		Kwargs{ParticipantCode: b.participantCode},
		b.cfg.ConsumeTimeout,
	)
	if err != nil {
		return nil, err
	}
	if resp.ResponseError != "" {
		return nil, &ResponseError{Message: resp.ResponseError, Traceback: resp.Traceback}
	}
	if resp.RequestError != "" {
		return nil, &RequestError{Message: resp.RequestError}
	}
	if len(resp.PostData) == 0 {
		return nil, ErrNoMoreSubmits
	}
	return resp.PostData, nil
}

// SendCompletionMessage tells the session's broadcast group this participant
// is done. Fire and forget; no acknowledgement is expected.
func (b *EphemeralBot) SendCompletionMessage(ctx context.Context) error {
	if b.broadcaster == nil {
		return nil
	}
	group := GroupKey(b.cfg.Prefix, b.sessionCode)
	if err := b.broadcaster.Broadcast(ctx, group, []byte(b.participantCode)); err != nil {
		return fmt.Errorf("broadcast completion for %s: %w", b.participantCode, err)
	}
	return nil
}

// callOrDiagnose performs one round trip; when it times out, a ping decides
// between worker-unreachable and worker-unresponsive.
func (b *EphemeralBot) callOrDiagnose(ctx context.Context, cmd Command, kw Kwargs, timeout time.Duration) (response, error) {
	resp, ok, err := b.call(ctx, cmd, kw, timeout)
	if err != nil {
		return response{}, err
	}
	if !ok {
		if pingErr := b.Ping(ctx); pingErr != nil {
			return response{}, pingErr
		}
		return response{}, fmt.Errorf("%s for participant %s: %w", cmd, b.participantCode, ErrWorkerUnresponsive)
	}
	return resp, nil
}

// call pushes one request envelope and blocks on its response key. ok is
// false on timeout. The participant code picks the listen shard, so an empty
// one cannot be routed.
func (b *EphemeralBot) call(ctx context.Context, cmd Command, kw Kwargs, timeout time.Duration) (response, bool, error) {
	if b.participantCode == "" {
		return response{}, false, fmt.Errorf("%s: participant code is required", cmd)
	}
	responseKey := ResponseKey(b.cfg.Prefix, cmd, b.participantCode)
	req := Request{
		Command:     cmd,
		Kwargs:      kw,
		ResponseKey: responseKey,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return response{}, false, fmt.Errorf("marshal %s request: %w", cmd, err)
	}
	if err := b.ch.Push(ctx, ListenKey(b.cfg.Prefix, b.participantCode), body); err != nil {
		return response{}, false, fmt.Errorf("push %s request: %w", cmd, err)
	}

	_, payload, ok, err := b.ch.BlockPop(ctx, []string{responseKey}, timeout)
	if err != nil {
		return response{}, false, fmt.Errorf("pop %s response: %w", cmd, err)
	}
	if !ok {
		// A late answer is simply left unconsumed; response keys are
		// per-call and never reused.
		return response{}, false, nil
	}
	var resp response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return response{}, false, fmt.Errorf("decode %s response: %w", cmd, err)
	}
	return resp, true, nil
}

package botworker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/browserbot-relay/internal/channel"
	"github.com/JakeFAU/browserbot-relay/internal/metrics"
)

// defaultPopTimeout keeps the receive loop interruptible; a pop that times
// out with no message is not an error.
const defaultPopTimeout = 3 * time.Second

// ListenConfig controls the receive loop.
type ListenConfig struct {
	// Prefix namespaces the channel keys. Defaults to DefaultKeyPrefix.
	Prefix string
	// Charset is the shard range this worker listens on, one listen key per
	// character. Defaults to CodeCharset.
	Charset string
	// PopTimeout bounds each blocking pop. Defaults to defaultPopTimeout.
	PopTimeout time.Duration
}

func (c *ListenConfig) applyDefaults() {
	if c.Prefix == "" {
		c.Prefix = DefaultKeyPrefix
	}
	if c.Charset == "" {
		c.Charset = CodeCharset
	}
	if c.PopTimeout <= 0 {
		c.PopTimeout = defaultPopTimeout
	}
}

// Listen runs the receive loop until the context finishes. One request is
// fully executed before the next is dequeued, and every consumed request is
// answered with exactly one response envelope, even when decoding or
// execution fails. A single bad request never stops the loop.
func (w *Worker) Listen(ctx context.Context, ch channel.Channel, cfg ListenConfig) error {
	cfg.applyDefaults()
	keys := ListenKeys(cfg.Prefix, cfg.Charset)
	w.logger.Info("botworker listening",
		zap.String("prefix", cfg.Prefix),
		zap.Int("listen_keys", len(keys)),
	)

	idleStart := time.Now()
	for {
		key, payload, ok, err := ch.BlockPop(ctx, keys, cfg.PopTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error("channel pop failed", zap.Error(err))
			continue
		}
		if !ok {
			continue
		}

		idle := time.Since(idleStart)
		metrics.ObserveIdle(idle)
		busyStart := time.Now()

		responseKey, resp := w.handleMessage(ctx, payload)
		if responseKey == "" {
			// Nothing to answer to; the caller can only time out.
			w.logger.Error("request without response key dropped", zap.String("listen_key", key))
			idleStart = time.Now()
			continue
		}
		body, err := json.Marshal(resp)
		if err != nil {
			// Responses are plain structs; this should be unreachable, but a
			// blocked caller must still get an answer.
			w.logger.Error("marshal response failed", zap.Error(err))
			body = []byte(`{"response_error":"botworker could not encode the response"}`)
		}
		if err := ch.Push(ctx, responseKey, body); err != nil {
			w.logger.Error("push response failed",
				zap.String("response_key", responseKey),
				zap.Error(err),
			)
		}

		w.logger.Info("request served",
			zap.String("listen_key", key),
			zap.Duration("idle", idle),
			zap.Duration("busy", time.Since(busyStart)),
		)
		idleStart = time.Now()
	}
}

// handleMessage decodes one request and executes it, converting every
// failure mode into a response envelope.
func (w *Worker) handleMessage(ctx context.Context, payload []byte) (responseKey string, resp any) {
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		// Without a decoded envelope there is no response key to answer on.
		w.logger.Error("decode request failed", zap.Error(err))
		return "", nil
	}
	return req.ResponseKey, w.execute(ctx, req)
}

// execute runs one command, recovering panics and classifying errors into
// request-error and response-error envelopes.
func (w *Worker) execute(ctx context.Context, req Request) (resp any) {
	start := time.Now()
	status := "ok"
	defer func() {
		if r := recover(); r != nil {
			status = "response_error"
			w.logger.Error("command panicked",
				zap.String("command", string(req.Command)),
				zap.Any("panic", r),
			)
			resp = responseErrorEnvelope{
				ResponseError: fmt.Sprintf("panic: %v", r),
				Traceback:     string(debug.Stack()),
			}
		}
		metrics.ObserveCommand(string(req.Command), status, time.Since(start))
	}()

	result, err := w.runCommand(ctx, req)
	if err != nil {
		var notLoaded *NotLoadedError
		if errors.As(err, &notLoaded) {
			status = "request_error"
			return requestErrorResponse{RequestError: notLoaded.Error()}
		}
		status = "response_error"
		w.logger.Error("command failed",
			zap.String("command", string(req.Command)),
			zap.Error(err),
		)
		return responseErrorEnvelope{
			ResponseError: err.Error(),
			Traceback:     fmt.Sprintf("%s: %s", req.Command, err),
		}
	}
	return result
}

// runCommand resolves the closed command table.
func (w *Worker) runCommand(ctx context.Context, req Request) (any, error) {
	kw := req.Kwargs
	switch req.Command {
	case CmdPing:
		w.Ping()
		return ackResponse{OK: true}, nil
	case CmdInitializeParticipant:
		if kw.ParticipantCode == "" {
			return nil, fmt.Errorf("%s requires participant_code", req.Command)
		}
		if err := w.InitializeParticipant(ctx, kw.ParticipantCode); err != nil {
			return nil, err
		}
		return ackResponse{OK: true}, nil
	case CmdPrepareNextSubmit:
		if kw.ParticipantCode == "" {
			return nil, fmt.Errorf("%s requires participant_code", req.Command)
		}
		return w.PrepareNextSubmit(ctx, kw.ParticipantCode, kw.Path, kw.HTML)
	case CmdConsumeNextSubmit:
		if kw.ParticipantCode == "" {
			return nil, fmt.Errorf("%s requires participant_code", req.Command)
		}
		return w.ConsumeNextSubmit(kw.ParticipantCode)
	case CmdClearAll:
		w.ClearAll()
		return ackResponse{OK: true}, nil
	default:
		return nil, &UnknownCommandError{Name: string(req.Command)}
	}
}

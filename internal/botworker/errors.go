package botworker

import (
	"errors"
	"fmt"
)

// ErrWorkerUnreachable means the liveness probe itself got no answer: no
// worker is consuming the listen channels at all.
var ErrWorkerUnreachable = errors.New(
	"ping to botworker failed: the botworker does not appear to be running. " +
		"Start the botworker, or disable browser bots in the session config",
)

// ErrWorkerUnresponsive means the worker answered a ping but never answered
// the original call. That points at a worker bug rather than a usage error.
var ErrWorkerUnresponsive = errors.New("botworker is running but did not answer the request")

// ErrNoMoreSubmits is the caller-side reading of the empty placeholder: the
// participant's submit sequence is complete. It is a terminal signal, not a
// failure.
var ErrNoMoreSubmits = errors.New("no more submits for this participant")

// NotLoadedError reports a prepare call for a participant the worker has no
// session for: it was never initialized, was pruned, or the worker restarted
// after the session was created. It crosses the wire as a request error so
// callers can tell it apart from a transport timeout.
type NotLoadedError struct {
	ParticipantCode string
	PruneLimit      int
}

func (e *NotLoadedError) Error() string {
	return fmt.Sprintf(
		"participant %s not loaded in botworker. The botworker only keeps the most recent %d sessions "+
			"and discards older ones; or the botworker was restarted after the session was created",
		e.ParticipantCode, e.PruneLimit,
	)
}

// NoPreparedSubmitError reports a consume without a prior successful prepare.
// That is a contract violation by the caller, not a recoverable condition.
type NoPreparedSubmitError struct {
	ParticipantCode string
}

func (e *NoPreparedSubmitError) Error() string {
	return fmt.Sprintf("no prepared submit for participant %s: prepare_next_submit must be called first", e.ParticipantCode)
}

// UnknownCommandError reports a request naming a command outside the
// dispatcher's closed table.
type UnknownCommandError struct {
	Name string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command %q", e.Name)
}

// RequestError is the caller-side form of a request error received over the
// wire: the worker is reachable but rejected the request as semantically
// invalid given its state.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string { return e.Message }

// ResponseError is the caller-side form of a worker-side failure. Traceback
// carries the worker's own diagnostic detail so the caller's failure report
// contains it verbatim.
type ResponseError struct {
	Message   string
	Traceback string
}

func (e *ResponseError) Error() string {
	if e.Traceback != "" {
		return fmt.Sprintf("botworker failed processing the request: %s\n%s", e.Message, e.Traceback)
	}
	return fmt.Sprintf("botworker failed processing the request: %s", e.Message)
}

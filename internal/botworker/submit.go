package botworker

import (
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/browserbot-relay/internal/participant"
)

// ErrExhausted is the terminal signal from a SubmitSource: the client's
// submit sequence is complete. Repeated calls keep returning it.
var ErrExhausted = errors.New("submit sequence exhausted")

// PageView is the page a client is currently on, as reported by the request
// handler asking for the next submit.
type PageView struct {
	Path string
	HTML string
}

// Submission describes one form submission the bot wants to make. PageClass
// tags which page produced it; the tag is internal to the bot logic and is
// stripped before the submission ever reaches a caller.
type Submission struct {
	PostData  map[string]any
	PageClass string
}

// SubmitPayload is the caller-visible form of a Submission, with the page
// class already stripped. The zero value is the empty placeholder that
// signals an exhausted sequence.
type SubmitPayload struct {
	PostData map[string]any `json:"post_data,omitempty"`
}

// Empty reports whether the payload is the exhaustion placeholder.
func (p SubmitPayload) Empty() bool { return len(p.PostData) == 0 }

// SubmitSource produces a client's submissions one at a time. Next either
// returns the next Submission, fails with ErrExhausted once the sequence is
// complete (and keeps failing with it), or fails with any other error when
// the source cannot reconcile the page it is being asked about.
type SubmitSource interface {
	Next(page PageView) (Submission, error)
}

// SourceFactory builds the SubmitSource for a freshly initialized
// participant. The bot logic behind the source is an external collaborator;
// the worker treats it as opaque.
type SourceFactory func(p participant.Participant) (SubmitSource, error)

// Step is one planned submission in a ScriptedSource. If ExpectPath is set,
// the source fails unless the client is on that page when the step is
// consumed.
type Step struct {
	ExpectPath string
	Submission Submission
}

// ScriptedSource replays a fixed list of steps. Once the steps run out it is
// exhausted for good; a ScriptedSource can only be restarted by creating a
// new one.
type ScriptedSource struct {
	mu    sync.Mutex
	steps []Step
	next  int
}

// NewScriptedSource builds a source that yields the given steps in order.
func NewScriptedSource(steps ...Step) *ScriptedSource {
	return &ScriptedSource{steps: steps}
}

// Next returns the next scripted submission or ErrExhausted.
func (s *ScriptedSource) Next(page PageView) (Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.steps) {
		return Submission{}, ErrExhausted
	}
	step := s.steps[s.next]
	if step.ExpectPath != "" && step.ExpectPath != page.Path {
		return Submission{}, fmt.Errorf(
			"submit %d expects page %s, client is on %s", s.next, step.ExpectPath, page.Path,
		)
	}
	s.next++
	return step.Submission, nil
}

// StaticSourceFactory returns a SourceFactory that gives every participant
// its own ScriptedSource replaying the same steps.
func StaticSourceFactory(steps ...Step) SourceFactory {
	return func(_ participant.Participant) (SubmitSource, error) {
		return NewScriptedSource(steps...), nil
	}
}

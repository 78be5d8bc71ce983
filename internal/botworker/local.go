package botworker

import (
	"context"
	"errors"
	"fmt"

	"github.com/JakeFAU/browserbot-relay/internal/channel"
)

// LocalClient drives a Worker in the same process, with no channel round
// trips. It exists for deployments without a message broker and behaves
// identically to EphemeralBot at the call surface. The Worker handle is
// passed explicitly by whoever hosts request handling; there is no
// process-wide singleton.
type LocalClient struct {
	worker      *Worker
	broadcaster channel.Broadcaster

	participantCode string
	sessionCode     string
	path            string
	prefix          string
}

// NewLocalClient constructs an in-process client bound to a Worker.
// broadcaster may be nil.
func NewLocalClient(
	worker *Worker,
	broadcaster channel.Broadcaster,
	participantCode, sessionCode, path string,
) *LocalClient {
	return &LocalClient{
		worker:          worker,
		broadcaster:     broadcaster,
		participantCode: participantCode,
		sessionCode:     sessionCode,
		path:            path,
		prefix:          DefaultKeyPrefix,
	}
}

// Initialize creates the worker-side session for this participant.
func (c *LocalClient) Initialize(ctx context.Context) error {
	return c.worker.InitializeParticipant(ctx, c.participantCode)
}

// PrepareNextSubmit computes or confirms the next submit. A missing session
// surfaces as a RequestError, matching the channel path.
func (c *LocalClient) PrepareNextSubmit(ctx context.Context, html string) error {
	_, err := c.worker.PrepareNextSubmit(ctx, c.participantCode, c.path, html)
	var notLoaded *NotLoadedError
	if errors.As(err, &notLoaded) {
		return &RequestError{Message: notLoaded.Error()}
	}
	return err
}

// NextPostData consumes the prepared submit and returns its post data, or
// ErrNoMoreSubmits on the empty placeholder.
func (c *LocalClient) NextPostData(_ context.Context) (map[string]any, error) {
	payload, err := c.worker.ConsumeNextSubmit(c.participantCode)
	if err != nil {
		return nil, err
	}
	if payload.Empty() {
		return nil, ErrNoMoreSubmits
	}
	return payload.PostData, nil
}

// SendCompletionMessage tells the session's broadcast group this participant
// is done.
func (c *LocalClient) SendCompletionMessage(ctx context.Context) error {
	if c.broadcaster == nil {
		return nil
	}
	group := GroupKey(c.prefix, c.sessionCode)
	if err := c.broadcaster.Broadcast(ctx, group, []byte(c.participantCode)); err != nil {
		return fmt.Errorf("broadcast completion for %s: %w", c.participantCode, err)
	}
	return nil
}

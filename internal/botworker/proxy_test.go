package botworker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/browserbot-relay/internal/channel"
	channelmemory "github.com/JakeFAU/browserbot-relay/internal/channel/memory"
	"github.com/JakeFAU/browserbot-relay/internal/participant"
	participantmemory "github.com/JakeFAU/browserbot-relay/internal/participant/memory"
)

// fastTimeouts keeps the timeout-path tests from sleeping for real seconds.
var fastTimeouts = BotConfig{
	Prefix:            testPrefix,
	PrepareTimeout:    50 * time.Millisecond,
	ConsumeTimeout:    50 * time.Millisecond,
	PingTimeout:       50 * time.Millisecond,
	InitializeTimeout: 50 * time.Millisecond,
}

// pingOnlyChannel answers pings itself and swallows every other request,
// simulating a worker that is alive but stuck mid-command.
type pingOnlyChannel struct {
	inner *channelmemory.Channel
}

func (c *pingOnlyChannel) Push(ctx context.Context, key string, payload []byte) error {
	var req Request
	if err := json.Unmarshal(payload, &req); err == nil && req.Command == CmdPing {
		return c.inner.Push(ctx, req.ResponseKey, []byte(`{"ok": true}`))
	}
	return nil
}

func (c *pingOnlyChannel) BlockPop(ctx context.Context, keys []string, timeout time.Duration) (string, []byte, bool, error) {
	return c.inner.BlockPop(ctx, keys, timeout)
}

func (c *pingOnlyChannel) DeleteMatching(ctx context.Context, pattern string) (int, error) {
	return c.inner.DeleteMatching(ctx, pattern)
}

func (c *pingOnlyChannel) Close() error { return c.inner.Close() }

func newServedBot(t *testing.T, codes []string, factory SourceFactory, code string) (*EphemeralBot, *channelmemory.Channel) {
	t.Helper()
	store := participantmemory.NewStore()
	for _, c := range codes {
		store.Add(participant.Participant{Code: c, SessionCode: "sess1"})
	}
	ch := channelmemory.New()
	w := NewWorker(store, factory, nil, WorkerConfig{}, zap.NewNop())
	stop := startListener(t, w, ch)
	t.Cleanup(stop)

	bot := NewEphemeralBot(ch, ch, code, "sess1", "/page1", fastTimeouts, zap.NewNop())
	return bot, ch
}

func TestEphemeralBot_FullLifecycle(t *testing.T) {
	t.Parallel()

	factory := StaticSourceFactory(Step{Submission: Submission{
		PostData:  map[string]any{"field": "1"},
		PageClass: "PageOne",
	}})
	bot, ch := newServedBot(t, []string{"abc123"}, factory, "abc123")
	ctx := context.Background()

	require.NoError(t, bot.Initialize(ctx))
	require.NoError(t, bot.PrepareNextSubmit(ctx, "<html/>"))

	postData, err := bot.NextPostData(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"field": "1"}, postData)

	// The script is spent: the next prepare caches the placeholder and the
	// consume reads it back as the terminal signal.
	require.NoError(t, bot.PrepareNextSubmit(ctx, "<html/>"))
	_, err = bot.NextPostData(ctx)
	require.ErrorIs(t, err, ErrNoMoreSubmits)

	require.NoError(t, bot.SendCompletionMessage(ctx))
	msgs := ch.GroupMessages(GroupKey(testPrefix, "sess1"))
	require.Len(t, msgs, 1)
	require.Equal(t, "abc123", string(msgs[0]))
}

func TestEphemeralBot_NoWorkerIsUnreachable(t *testing.T) {
	t.Parallel()

	// Nobody is consuming the listen channels.
	ch := channelmemory.New()
	bot := NewEphemeralBot(ch, ch, "abc123", "sess1", "/page1", fastTimeouts, zap.NewNop())
	ctx := context.Background()

	require.ErrorIs(t, bot.Ping(ctx), ErrWorkerUnreachable)
	require.ErrorIs(t, bot.Initialize(ctx), ErrWorkerUnreachable)
	require.ErrorIs(t, bot.PrepareNextSubmit(ctx, "<html/>"), ErrWorkerUnreachable)
	_, err := bot.NextPostData(ctx)
	require.ErrorIs(t, err, ErrWorkerUnreachable)
}

func TestEphemeralBot_StalledWorkerIsUnresponsive(t *testing.T) {
	t.Parallel()

	ch := &pingOnlyChannel{inner: channelmemory.New()}
	bot := NewEphemeralBot(ch, nil, "abc123", "sess1", "/page1", fastTimeouts, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, bot.Ping(ctx))

	err := bot.PrepareNextSubmit(ctx, "<html/>")
	require.ErrorIs(t, err, ErrWorkerUnresponsive)
	require.Contains(t, err.Error(), "abc123")

	_, err = bot.NextPostData(ctx)
	require.ErrorIs(t, err, ErrWorkerUnresponsive)
}

func TestEphemeralBot_UnknownParticipantInitialize(t *testing.T) {
	t.Parallel()

	bot, _ := newServedBot(t, nil, StaticSourceFactory(), "nope1")

	err := bot.Initialize(context.Background())
	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	require.Contains(t, respErr.Message, "nope1")
	require.NotEmpty(t, respErr.Traceback)
}

func TestEphemeralBot_PrepareWithoutInitializeIsRequestError(t *testing.T) {
	t.Parallel()

	bot, _ := newServedBot(t, nil, StaticSourceFactory(), "zz9")

	err := bot.PrepareNextSubmit(context.Background(), "<html/>")
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	require.Contains(t, reqErr.Message, "zz9")
}

func TestEphemeralBot_ScriptMismatchCarriesTraceback(t *testing.T) {
	t.Parallel()

	factory := StaticSourceFactory(Step{
		ExpectPath: "/elsewhere",
		Submission: Submission{PostData: map[string]any{"field": "1"}},
	})
	bot, _ := newServedBot(t, []string{"abc123"}, factory, "abc123")
	ctx := context.Background()

	require.NoError(t, bot.Initialize(ctx))

	err := bot.PrepareNextSubmit(ctx, "<html/>")
	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	require.Contains(t, respErr.Message, "/elsewhere")
	require.Contains(t, err.Error(), respErr.Traceback)
}

func TestEphemeralBot_ConsumeWithoutPrepare(t *testing.T) {
	t.Parallel()

	bot, _ := newServedBot(t, []string{"abc123"}, StaticSourceFactory(), "abc123")
	ctx := context.Background()

	require.NoError(t, bot.Initialize(ctx))

	_, err := bot.NextPostData(ctx)
	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	require.Contains(t, respErr.Message, "prepare_next_submit must be called first")
}

func TestEphemeralBot_EmptyParticipantCode(t *testing.T) {
	t.Parallel()

	ch := channelmemory.New()
	bot := NewEphemeralBot(ch, ch, "", "sess1", "/page1", fastTimeouts, zap.NewNop())
	ctx := context.Background()

	// An empty code cannot pick a listen shard; every call fails cleanly
	// instead of panicking on the key scheme.
	err := bot.Ping(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "participant code is required")
	require.Error(t, bot.Initialize(ctx))
	require.Error(t, bot.PrepareNextSubmit(ctx, "<html/>"))
	_, err = bot.NextPostData(ctx)
	require.Error(t, err)
	require.Empty(t, ch.Keys())
}

func TestEphemeralBot_CompletionWithoutBroadcaster(t *testing.T) {
	t.Parallel()

	var ch channel.Channel = channelmemory.New()
	bot := NewEphemeralBot(ch, nil, "abc123", "sess1", "/page1", fastTimeouts, zap.NewNop())
	require.NoError(t, bot.SendCompletionMessage(context.Background()))
}

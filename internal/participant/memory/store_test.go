package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/browserbot-relay/internal/participant"
)

func TestStore_AddGet(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()

	_, err := s.Get(ctx, "abc123")
	require.ErrorIs(t, err, participant.ErrNotFound)

	s.Add(participant.Participant{Code: "abc123", SessionCode: "sess1", Label: "Player 1"})

	p, err := s.Get(ctx, "abc123")
	require.NoError(t, err)
	require.Equal(t, "sess1", p.SessionCode)
	require.Equal(t, "Player 1", p.Label)

	// Re-adding replaces the record.
	s.Add(participant.Participant{Code: "abc123", SessionCode: "sess2"})
	p, err = s.Get(ctx, "abc123")
	require.NoError(t, err)
	require.Equal(t, "sess2", p.SessionCode)
	require.Empty(t, p.Label)
}

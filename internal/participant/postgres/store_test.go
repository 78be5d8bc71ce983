package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/browserbot-relay/internal/participant"
)

func TestStore_Get(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewStoreWithPool(mock, "participants")
	require.NoError(t, err)

	rows := pgxmock.NewRows([]string{"code", "session_code", "coalesce"}).
		AddRow("abc123", "sess1", "Player 1")
	mock.ExpectQuery("SELECT code, session_code, COALESCE").
		WithArgs("abc123").
		WillReturnRows(rows)

	p, err := store.Get(context.Background(), "abc123")
	require.NoError(t, err)
	require.Equal(t, participant.Participant{
		Code:        "abc123",
		SessionCode: "sess1",
		Label:       "Player 1",
	}, p)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewStoreWithPool(mock, "participants")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT code, session_code, COALESCE").
		WithArgs("nope1").
		WillReturnError(pgx.ErrNoRows)

	_, err = store.Get(context.Background(), "nope1")
	require.ErrorIs(t, err, participant.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CustomTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewStoreWithPool(mock, "otree_participant")
	require.NoError(t, err)

	rows := pgxmock.NewRows([]string{"code", "session_code", "coalesce"}).
		AddRow("abc123", "sess1", "")
	mock.ExpectQuery("FROM otree_participant WHERE code").
		WithArgs("abc123").
		WillReturnRows(rows)

	p, err := store.Get(context.Background(), "abc123")
	require.NoError(t, err)
	require.Empty(t, p.Label)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewStoreWithPool_RejectsBadTableName(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewStoreWithPool(mock, "participants; DROP TABLE x")
	require.Error(t, err)

	_, err = NewStoreWithPool(nil, "participants")
	require.Error(t, err)
}

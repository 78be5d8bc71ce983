// Package participant defines the participant record consumed by the
// botworker and the lookup interface its stores implement.
package participant

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Store.Get when no participant has the code.
var ErrNotFound = errors.New("participant not found")

// Participant is the minimal view of a participant record the botworker
// needs: its stable code and the session it belongs to.
type Participant struct {
	Code        string
	SessionCode string
	Label       string
}

// Store looks participants up by code.
type Store interface {
	// Get returns the participant with the given code, or ErrNotFound.
	Get(ctx context.Context, code string) (Participant, error)
}

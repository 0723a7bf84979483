package relay

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrNoEligiblePlayers = errors.New("no eligible players")
)

// InvalidTransitionError reports an illegal state-machine move. The turn it
// was attempted against is left unchanged.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid turn transition from %q to %q", e.From, e.To)
}

// InvalidContentError reports a submission whose content does not match the
// turn type, or is empty.
type InvalidContentError struct {
	TurnType string
	Reason   string
}

func (e *InvalidContentError) Error() string {
	return fmt.Sprintf("invalid content for %s turn: %s", e.TurnType, e.Reason)
}

func invalidTransition(from, to string) error {
	return &InvalidTransitionError{From: from, To: to}
}

// IsInvalidTransition reports whether err is an InvalidTransitionError.
// Timeout handlers use it to treat "the turn already moved on" as a no-op.
func IsInvalidTransition(err error) bool {
	var target *InvalidTransitionError
	return errors.As(err, &target)
}

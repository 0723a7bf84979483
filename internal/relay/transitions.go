package relay

import (
	"strings"
	"time"
)

// turnTransitions is the complete set of legal turn moves. Anything not in
// the table is rejected with InvalidTransitionError and the turn is left
// untouched.
var turnTransitions = map[string][]string{
	turnAvailable: {turnOffered},
	turnOffered:   {turnPending, turnAvailable},
	turnPending:   {turnCompleted, turnSkipped},
}

func canTransition(from, to string) bool {
	for _, allowed := range turnTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// transitionArgs carries the data a particular transition needs: the player
// being assigned on offer, or the content being recorded on completion.
type transitionArgs struct {
	PlayerID    int
	TextContent string
	ImageURL    string
}

// applyTransition validates and applies a single turn move at time `at`.
// Validation happens before any field is touched so a rejected transition
// leaves the turn exactly as it was.
func applyTransition(v *GameView, turn *Turn, to string, at time.Time, args transitionArgs) error {
	from := turn.Status
	if !canTransition(from, to) {
		return invalidTransition(from, to)
	}
	switch to {
	case turnOffered:
		if args.PlayerID == 0 || violatesMustRules(v, args.PlayerID) {
			return invalidTransition(from, to)
		}
	case turnCompleted:
		if err := validateContent(turn.Type, args.TextContent, args.ImageURL); err != nil {
			return err
		}
	}

	turn.Status = to
	switch to {
	case turnOffered:
		turn.PlayerID = args.PlayerID
		turn.OfferedAt = at
	case turnAvailable:
		turn.LastHolderID = turn.PlayerID
		turn.PlayerID = 0
		turn.OfferedAt = time.Time{}
		turn.ClaimDeadline = time.Time{}
	case turnPending:
		turn.ClaimedAt = at
		turn.ClaimDeadline = time.Time{}
	case turnCompleted:
		turn.TextContent = args.TextContent
		turn.ImageURL = args.ImageURL
		turn.CompletedAt = at
		turn.SubmitDeadline = time.Time{}
	case turnSkipped:
		turn.SkippedAt = at
		turn.SubmitDeadline = time.Time{}
	}
	return nil
}

// validateContent enforces "exactly one content field, matching the turn
// type": writing turns carry text, drawing turns carry an image reference.
func validateContent(turnType, textContent, imageURL string) error {
	text := strings.TrimSpace(textContent)
	image := strings.TrimSpace(imageURL)
	switch turnType {
	case turnTypeWriting:
		if text == "" {
			return &InvalidContentError{TurnType: turnType, Reason: "text content is required"}
		}
		if image != "" {
			return &InvalidContentError{TurnType: turnType, Reason: "image content not allowed"}
		}
	case turnTypeDrawing:
		if image == "" {
			return &InvalidContentError{TurnType: turnType, Reason: "image reference is required"}
		}
		if text != "" {
			return &InvalidContentError{TurnType: turnType, Reason: "text content not allowed"}
		}
	default:
		return &InvalidContentError{TurnType: turnType, Reason: "unknown turn type"}
	}
	return nil
}

package relay

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// offerOutcome carries what the offer closure decided out of the store
// lock, so timers, persistence and notification can run without holding it.
type offerOutcome struct {
	TurnID   string
	Number   int
	Type     string
	PlayerID int
	Deadline time.Time
}

// OfferNextTurn finds the lowest-numbered available turn of the game,
// selects an eligible player and offers the turn to them. Returns false
// when there is nothing to offer: either the game has no available turns
// left (the normal end-of-relay signal) or selection found no eligible
// player, in which case the turn stays available for a later retry.
func (s *Service) OfferNextTurn(gameID, reason string) (bool, error) {
	var outcome *offerOutcome
	game, err := s.store.UpdateGame(gameID, func(v *GameView) error {
		if v.Game.Status != gameActive {
			return nil
		}
		turn := nextAvailableTurn(v.Game)
		if turn == nil {
			return nil
		}
		playerID, err := SelectNextPlayer(SelectionInput{
			Game:             v.Game,
			SeasonGames:      v.SeasonGames,
			Roster:           v.Roster,
			TurnType:         turn.Type,
			PreviousPlayerID: previousActor(v.Game, turn),
			LastHolderID:     turn.LastHolderID,
		})
		if err != nil {
			log.Printf("no eligible players game_id=%s turn=%d reason=%s", v.Game.ID, turn.Number, reason)
			return nil
		}
		now := s.sched.Now()
		if err := applyTransition(v, turn, turnOffered, now, transitionArgs{PlayerID: playerID}); err != nil {
			return err
		}
		turn.ClaimDeadline = now.Add(s.claimTimeout(v.Season))
		outcome = &offerOutcome{
			TurnID:   turn.ID,
			Number:   turn.Number,
			Type:     turn.Type,
			PlayerID: playerID,
			Deadline: turn.ClaimDeadline,
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if outcome == nil {
		return false, nil
	}

	s.sched.Cancel(submissionJobID(outcome.TurnID))
	turnID := outcome.TurnID
	s.sched.Schedule(claimJobID(turnID), outcome.Deadline, func() {
		s.handleClaimTimeout(gameID, turnID)
	})

	if err := s.persistTurn(game, outcome.Number); err != nil {
		log.Printf("persist offered turn failed game_id=%s turn=%d error=%v", gameID, outcome.Number, err)
	}
	s.persistEvent("turn_offered", eventRefs{Game: game, TurnNumber: outcome.Number}, EventPayload{
		GameID:   gameID,
		TurnID:   outcome.TurnID,
		PlayerID: outcome.PlayerID,
		Reason:   reason,
	})
	log.Printf("turn offered game_id=%s turn=%d player_id=%d reason=%s", gameID, outcome.Number, outcome.PlayerID, reason)

	message := fmt.Sprintf("You're up! Claim your %s turn in %s.", outcome.Type, gameID)
	s.notifyPlayer(outcome.PlayerID, gameID, outcome.TurnID, message)
	return true, nil
}

// ClaimTurn moves an offered turn to pending for the assigned player and
// swaps the claim timer for a submission timer sized by the turn type.
func (s *Service) ClaimTurn(gameID string, turnNumber, playerID int) error {
	var outcome *offerOutcome
	game, err := s.store.UpdateGame(gameID, func(v *GameView) error {
		if v.Game.Status != gameActive {
			return fmt.Errorf("game %s is %s, not active", v.Game.ID, v.Game.Status)
		}
		turn := v.Game.turnByNumber(turnNumber)
		if turn == nil {
			return fmt.Errorf("turn %d in %s: %w", turnNumber, gameID, ErrNotFound)
		}
		if turn.Status == turnOffered && turn.PlayerID != playerID {
			return fmt.Errorf("turn %d not offered to player %d: %w", turnNumber, playerID, ErrNotFound)
		}
		now := s.sched.Now()
		if err := applyTransition(v, turn, turnPending, now, transitionArgs{}); err != nil {
			return err
		}
		turn.SubmitDeadline = now.Add(s.submissionTimeout(v.Season, turn.Type))
		outcome = &offerOutcome{
			TurnID:   turn.ID,
			Number:   turn.Number,
			Type:     turn.Type,
			PlayerID: playerID,
			Deadline: turn.SubmitDeadline,
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.sched.Cancel(claimJobID(outcome.TurnID))
	turnID := outcome.TurnID
	s.sched.Schedule(submissionJobID(turnID), outcome.Deadline, func() {
		s.handleSubmissionTimeout(gameID, turnID)
	})

	if err := s.persistTurn(game, outcome.Number); err != nil {
		log.Printf("persist claimed turn failed game_id=%s turn=%d error=%v", gameID, outcome.Number, err)
	}
	s.persistEvent("turn_claimed", eventRefs{Game: game, TurnNumber: outcome.Number}, EventPayload{
		GameID:   gameID,
		TurnID:   outcome.TurnID,
		PlayerID: playerID,
	})
	log.Printf("turn claimed game_id=%s turn=%d player_id=%d", gameID, outcome.Number, playerID)
	return nil
}

// SubmitTurn completes a pending turn with content matching its type, runs
// completion detection and keeps the relay moving.
func (s *Service) SubmitTurn(gameID string, turnNumber, playerID int, textContent, imageURL string) error {
	var turnID string
	game, err := s.store.UpdateGame(gameID, func(v *GameView) error {
		if v.Game.Status != gameActive {
			return fmt.Errorf("game %s is %s, not active", v.Game.ID, v.Game.Status)
		}
		turn := v.Game.turnByNumber(turnNumber)
		if turn == nil {
			return fmt.Errorf("turn %d in %s: %w", turnNumber, gameID, ErrNotFound)
		}
		if turn.Status == turnPending && turn.PlayerID != playerID {
			return fmt.Errorf("turn %d not held by player %d: %w", turnNumber, playerID, ErrNotFound)
		}
		if err := applyTransition(v, turn, turnCompleted, s.sched.Now(), transitionArgs{
			TextContent: textContent,
			ImageURL:    imageURL,
		}); err != nil {
			return err
		}
		turnID = turn.ID
		markCompletionLocked(v)
		return nil
	})
	if err != nil {
		return err
	}

	s.sched.Cancel(submissionJobID(turnID))
	if err := s.persistTurn(game, turnNumber); err != nil {
		log.Printf("persist submitted turn failed game_id=%s turn=%d error=%v", gameID, turnNumber, err)
	}
	s.persistEvent("turn_completed", eventRefs{Game: game, TurnNumber: turnNumber}, EventPayload{
		GameID:   gameID,
		TurnID:   turnID,
		PlayerID: playerID,
	})
	log.Printf("turn completed game_id=%s turn=%d player_id=%d", gameID, turnNumber, playerID)

	s.afterTerminalTurn(game, "turn-completed")
	return nil
}

// SkipTurn is the administrative override: an offered turn is released back
// to the pool, a pending turn is skipped, as if its timer had fired.
func (s *Service) SkipTurn(gameID string, turnNumber int) error {
	var turnID, prior string
	game, err := s.store.UpdateGame(gameID, func(v *GameView) error {
		turn := v.Game.turnByNumber(turnNumber)
		if turn == nil {
			return fmt.Errorf("turn %d in %s: %w", turnNumber, gameID, ErrNotFound)
		}
		prior = turn.Status
		turnID = turn.ID
		switch turn.Status {
		case turnOffered:
			return applyTransition(v, turn, turnAvailable, s.sched.Now(), transitionArgs{})
		case turnPending:
			if err := applyTransition(v, turn, turnSkipped, s.sched.Now(), transitionArgs{}); err != nil {
				return err
			}
			markCompletionLocked(v)
			return nil
		default:
			return invalidTransition(turn.Status, turnSkipped)
		}
	})
	if err != nil {
		return err
	}

	s.sched.Cancel(claimJobID(turnID))
	s.sched.Cancel(submissionJobID(turnID))
	if err := s.persistTurn(game, turnNumber); err != nil {
		log.Printf("persist skipped turn failed game_id=%s turn=%d error=%v", gameID, turnNumber, err)
	}
	s.persistEvent("turn_skipped", eventRefs{Game: game, TurnNumber: turnNumber}, EventPayload{
		GameID: gameID,
		TurnID: turnID,
		Reason: "admin-skip",
	})
	log.Printf("turn skipped by admin game_id=%s turn=%d prior_status=%s", gameID, turnNumber, prior)

	s.afterTerminalTurn(game, "admin-skip")
	return nil
}

// handleClaimTimeout fires when an offer goes unclaimed. A turn that has
// already moved past offered is a normal race with a player action; the
// handler backs off silently.
func (s *Service) handleClaimTimeout(gameID, turnID string) {
	var lapsedPlayer int
	var turnNumber int
	game, err := s.store.UpdateGame(gameID, func(v *GameView) error {
		turn := v.Game.turnByID(turnID)
		if turn == nil {
			return fmt.Errorf("turn %s: %w", turnID, ErrNotFound)
		}
		if turn.Status != turnOffered {
			return nil
		}
		lapsedPlayer = turn.PlayerID
		turnNumber = turn.Number
		return applyTransition(v, turn, turnAvailable, s.sched.Now(), transitionArgs{})
	})
	if err != nil {
		log.Printf("claim timeout handling failed game_id=%s turn_id=%s error=%v", gameID, turnID, err)
		return
	}
	if lapsedPlayer == 0 {
		return
	}

	if err := s.persistTurn(game, turnNumber); err != nil {
		log.Printf("persist lapsed offer failed game_id=%s turn_id=%s error=%v", gameID, turnID, err)
	}
	s.persistEvent("offer_lapsed", eventRefs{Game: game, TurnNumber: turnNumber}, EventPayload{
		GameID:   gameID,
		TurnID:   turnID,
		PlayerID: lapsedPlayer,
	})
	log.Printf("offer lapsed game_id=%s turn_id=%s player_id=%d", gameID, turnID, lapsedPlayer)

	if _, err := s.OfferNextTurn(gameID, "claim-timeout"); err != nil {
		log.Printf("re-offer after claim timeout failed game_id=%s error=%v", gameID, err)
	}
}

// handleSubmissionTimeout fires when a claimed turn is never submitted.
func (s *Service) handleSubmissionTimeout(gameID, turnID string) {
	var skippedPlayer int
	var turnNumber int
	game, err := s.store.UpdateGame(gameID, func(v *GameView) error {
		turn := v.Game.turnByID(turnID)
		if turn == nil {
			return fmt.Errorf("turn %s: %w", turnID, ErrNotFound)
		}
		if turn.Status != turnPending {
			return nil
		}
		skippedPlayer = turn.PlayerID
		turnNumber = turn.Number
		if err := applyTransition(v, turn, turnSkipped, s.sched.Now(), transitionArgs{}); err != nil {
			return err
		}
		markCompletionLocked(v)
		return nil
	})
	if err != nil {
		log.Printf("submission timeout handling failed game_id=%s turn_id=%s error=%v", gameID, turnID, err)
		return
	}
	if skippedPlayer == 0 {
		return
	}

	if err := s.persistTurn(game, turnNumber); err != nil {
		log.Printf("persist skipped turn failed game_id=%s turn_id=%s error=%v", gameID, turnID, err)
	}
	s.persistEvent("turn_skipped", eventRefs{Game: game, TurnNumber: turnNumber}, EventPayload{
		GameID:   gameID,
		TurnID:   turnID,
		PlayerID: skippedPlayer,
		Reason:   "submission-timeout",
	})
	log.Printf("turn skipped game_id=%s turn_id=%s player_id=%d", gameID, turnID, skippedPlayer)

	s.afterTerminalTurn(game, "submission-timeout")
}

// afterTerminalTurn runs the bookkeeping shared by every terminal turn
// transition: persist completion results, continue the relay in the same
// game, and re-try any sibling game whose offer was blocked by the
// single-pending-turn rule.
func (s *Service) afterTerminalTurn(game *Game, reason string) {
	view, ok := s.store.GameView(game.ID)
	if !ok {
		return
	}
	if view.Game.Status == gameCompleted {
		if err := s.persistGame(view.Season, game); err != nil {
			log.Printf("persist completed game failed game_id=%s error=%v", game.ID, err)
		}
		s.persistEvent("game_completed", eventRefs{Game: game}, EventPayload{GameID: game.ID})
		log.Printf("game completed game_id=%s", game.ID)
	} else {
		if _, err := s.OfferNextTurn(game.ID, reason); err != nil {
			log.Printf("re-offer failed game_id=%s error=%v", game.ID, err)
		}
	}

	if view.Season == nil {
		return
	}
	if view.Season.Status == seasonCompleted {
		if err := s.persistSeason(view.Season); err != nil {
			log.Printf("persist completed season failed season_id=%s error=%v", view.Season.ID, err)
		}
		s.persistEvent("season_completed", eventRefs{Season: view.Season}, EventPayload{SeasonID: view.Season.ID})
		log.Printf("season completed season_id=%s", view.Season.ID)
		return
	}
	for _, sibling := range view.SeasonGames {
		if sibling.ID == game.ID || sibling.Status != gameActive {
			continue
		}
		if turn := nextAvailableTurn(sibling); turn == nil {
			continue
		}
		if _, err := s.OfferNextTurn(sibling.ID, reason+"-retry"); err != nil {
			log.Printf("sibling re-offer failed game_id=%s error=%v", sibling.ID, err)
		}
	}
}

// markCompletionLocked re-checks completion after a terminal transition.
// Runs with the store lock held (inside an update closure).
func markCompletionLocked(v *GameView) {
	if !gameComplete(v.Roster, v.Game) {
		return
	}
	v.Game.Status = gameCompleted
	if v.Season != nil && seasonComplete(v.Season) {
		v.Season.Status = seasonCompleted
	}
}

// nextAvailableTurn returns the lowest-numbered available turn, or nil when
// the relay has no more work to hand out.
func nextAvailableTurn(game *Game) *Turn {
	var next *Turn
	for i := range game.Turns {
		turn := &game.Turns[i]
		if turn.Status != turnAvailable {
			continue
		}
		if next == nil || turn.Number < next.Number {
			next = turn
		}
	}
	return next
}

// previousActor returns the player whose output this turn consumes: the
// holder of the preceding turn in the chain, 0 for the first turn.
func previousActor(game *Game, turn *Turn) int {
	if turn.Number <= 1 {
		return 0
	}
	prev := game.turnByNumber(turn.Number - 1)
	if prev == nil {
		return 0
	}
	return prev.PlayerID
}

// IsNoEligiblePlayers reports whether err is the selector's structured
// failure. Exposed for command-surface callers.
func IsNoEligiblePlayers(err error) bool {
	return errors.Is(err, ErrNoEligiblePlayers)
}

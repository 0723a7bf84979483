package relay

import "sort"

// SelectionInput is a read-only snapshot of everything the selector may
// consider: the game being offered, every game in the season (including the
// target game), the season roster, the turn type on offer, and the player
// who produced the output this turn consumes (0 for the first turn).
type SelectionInput struct {
	Game             *Game
	SeasonGames      []*Game
	Roster           []Player
	TurnType         string
	PreviousPlayerID int
	// LastHolderID is the player whose offer for this turn lapsed, if any.
	// Re-offering to somebody else is preferred but not required.
	LastHolderID int
}

// SelectNextPlayer picks the player who should receive the next turn. It is
// a pure function of its input: identical snapshots always yield the
// identical player id, which is what makes retries idempotent.
//
// Hard rules narrow the candidate set unconditionally and may exhaust it;
// soft rules only narrow it when at least one candidate survives.
func SelectNextPlayer(input SelectionInput) (int, error) {
	candidates := make([]int, 0, len(input.Roster))
	for _, player := range input.Roster {
		if player.Banned {
			continue
		}
		if hasTurnInGame(input.Game, player.ID) {
			continue
		}
		candidates = append(candidates, player.ID)
	}

	// Hard rule: one pending turn per player across the whole season.
	filtered := candidates[:0:0]
	for _, id := range candidates {
		if hasPendingTurn(input.SeasonGames, id) {
			continue
		}
		filtered = append(filtered, id)
	}
	if len(filtered) == 0 {
		return 0, ErrNoEligiblePlayers
	}
	candidates = filtered

	if input.LastHolderID != 0 {
		candidates = applySoftFilter(candidates, func(id int) int {
			if id == input.LastHolderID {
				return 1
			}
			return 0
		})
	}
	candidates = applySoftFilter(candidates, func(id int) int {
		return typeBalance(input.SeasonGames, id, input.TurnType)
	})
	if input.PreviousPlayerID != 0 {
		candidates = applySoftFilter(candidates, func(id int) int {
			if followedBefore(input.SeasonGames, input.Game.ID, input.PreviousPlayerID, id, input.TurnType) {
				return 1
			}
			return 0
		})
	}
	candidates = applySoftFilter(candidates, func(id int) int {
		return countTurnsOfType(input.SeasonGames, id, input.TurnType)
	})
	candidates = applySoftFilter(candidates, func(id int) int {
		return countInFlightTurns(input.SeasonGames, id)
	})

	sort.Ints(candidates)
	return candidates[0], nil
}

// applySoftFilter keeps the candidates with the lowest score. If the filter
// would leave nothing, the incoming set passes through unchanged.
func applySoftFilter(candidates []int, score func(playerID int) int) []int {
	if len(candidates) == 0 {
		return candidates
	}
	best := score(candidates[0])
	for _, id := range candidates[1:] {
		if value := score(id); value < best {
			best = value
		}
	}
	kept := make([]int, 0, len(candidates))
	for _, id := range candidates {
		if score(id) == best {
			kept = append(kept, id)
		}
	}
	if len(kept) == 0 {
		return candidates
	}
	return kept
}

// hasTurnInGame reports whether the player already holds a turn in the game
// in any status other than available.
func hasTurnInGame(game *Game, playerID int) bool {
	if game == nil {
		return false
	}
	for i := range game.Turns {
		turn := &game.Turns[i]
		if turn.PlayerID == playerID && turn.Status != turnAvailable {
			return true
		}
	}
	return false
}

func hasPendingTurn(games []*Game, playerID int) bool {
	for _, game := range games {
		for i := range game.Turns {
			turn := &game.Turns[i]
			if turn.PlayerID == playerID && turn.Status == turnPending {
				return true
			}
		}
	}
	return false
}

// typeBalance is the count of the player's turns of the requested type
// minus the count of their turns of any other type. The most negative
// player is the most due for this type.
func typeBalance(games []*Game, playerID int, turnType string) int {
	balance := 0
	for _, game := range games {
		for i := range game.Turns {
			turn := &game.Turns[i]
			if turn.PlayerID != playerID || turn.Status == turnAvailable {
				continue
			}
			if turn.Type == turnType {
				balance++
			} else {
				balance--
			}
		}
	}
	return balance
}

func countTurnsOfType(games []*Game, playerID int, turnType string) int {
	count := 0
	for _, game := range games {
		for i := range game.Turns {
			turn := &game.Turns[i]
			if turn.PlayerID == playerID && turn.Status != turnAvailable && turn.Type == turnType {
				count++
			}
		}
	}
	return count
}

func countInFlightTurns(games []*Game, playerID int) int {
	count := 0
	for _, game := range games {
		for i := range game.Turns {
			turn := &game.Turns[i]
			if turn.PlayerID == playerID && (turn.Status == turnOffered || turn.Status == turnPending) {
				count++
			}
		}
	}
	return count
}

// followedBefore reports whether, in another game of the season, the
// candidate already took a turn of the same type immediately after the
// given player. Preferring fresh pairings keeps the relay chains varied.
func followedBefore(games []*Game, currentGameID string, previousPlayerID, candidateID int, turnType string) bool {
	for _, game := range games {
		if game.ID == currentGameID {
			continue
		}
		for i := 1; i < len(game.Turns); i++ {
			turn := &game.Turns[i]
			before := &game.Turns[i-1]
			if before.PlayerID == previousPlayerID && turn.PlayerID == candidateID && turn.Type == turnType && turn.Status != turnAvailable {
				return true
			}
		}
	}
	return false
}

// violatesMustRules is the defense-in-depth re-check applied when a turn
// enters the offered state.
func violatesMustRules(v *GameView, playerID int) bool {
	for _, player := range v.Roster {
		if player.ID == playerID {
			if player.Banned {
				return true
			}
			return hasTurnInGame(v.Game, playerID) || hasPendingTurn(v.SeasonGames, playerID)
		}
	}
	return true
}

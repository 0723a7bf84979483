package relay

// gameComplete reports whether every roster member holds a terminal
// (completed or skipped) turn in the game. Each member plays at most once
// per game, so this is equivalent to the whole relay chain having resolved.
// Banned members who never received a turn do not count: their turn can
// never be assigned, and without this the game would stall forever. A turn
// still in flight blocks completion regardless of who holds it.
// Pure function of the snapshot; safe to call redundantly.
func gameComplete(roster []Player, game *Game) bool {
	if game == nil {
		return false
	}
	for i := range game.Turns {
		status := game.Turns[i].Status
		if status == turnOffered || status == turnPending {
			return false
		}
	}
	counted := 0
	for _, player := range roster {
		if player.Banned && !hasTerminalTurn(game, player.ID) {
			continue
		}
		counted++
		if !hasTerminalTurn(game, player.ID) {
			return false
		}
	}
	return counted > 0
}

func hasTerminalTurn(game *Game, playerID int) bool {
	for i := range game.Turns {
		turn := &game.Turns[i]
		if turn.PlayerID == playerID && terminalTurnStatus(turn.Status) {
			return true
		}
	}
	return false
}

// seasonComplete reports whether every game of the season has completed.
func seasonComplete(season *Season) bool {
	if season == nil || len(season.Games) == 0 {
		return false
	}
	for _, game := range season.Games {
		if game.Status != gameCompleted {
			return false
		}
	}
	return true
}

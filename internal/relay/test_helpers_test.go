package relay

import (
	"fmt"
	"testing"
	"time"

	"sketch-relay/internal/config"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

var testBase = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc := New(nil, config.Default())
	svc.UseClock(fixedClock{now: testBase})
	t.Cleanup(svc.Shutdown)
	return svc
}

func registerPlayers(t *testing.T, svc *Service, count int) []int {
	t.Helper()
	ids := make([]int, 0, count)
	for i := 1; i <= count; i++ {
		player, err := svc.RegisterPlayer(fmt.Sprintf("U%03d", i), fmt.Sprintf("Player %d", i))
		if err != nil {
			t.Fatalf("register player %d: %v", i, err)
		}
		ids = append(ids, player.ID)
	}
	return ids
}

// startSeason registers count players and runs a season through to active.
func startSeason(t *testing.T, svc *Service, count int, cfg SeasonConfig) (string, []int) {
	t.Helper()
	players := registerPlayers(t, svc, count)
	if cfg.MinPlayers == 0 {
		cfg.MinPlayers = 2
	}
	if cfg.MaxPlayers == 0 {
		cfg.MaxPlayers = count + 1
	}
	season, err := svc.CreateSeason(cfg)
	if err != nil {
		t.Fatalf("create season: %v", err)
	}
	if err := svc.OpenSeason(season.ID); err != nil {
		t.Fatalf("open season: %v", err)
	}
	for _, playerID := range players {
		if err := svc.JoinSeason(season.ID, playerID); err != nil {
			t.Fatalf("join season player %d: %v", playerID, err)
		}
	}
	if err := svc.ActivateSeason(season.ID); err != nil {
		t.Fatalf("activate season: %v", err)
	}
	return season.ID, players
}

func offeredTurn(t *testing.T, svc *Service, gameID string) *Turn {
	t.Helper()
	game, ok := svc.store.GetGame(gameID)
	if !ok {
		t.Fatalf("game %s not found", gameID)
	}
	for i := range game.Turns {
		if game.Turns[i].Status == turnOffered {
			return &game.Turns[i]
		}
	}
	return nil
}

func claimAndSubmit(t *testing.T, svc *Service, gameID string) int {
	t.Helper()
	turn := offeredTurn(t, svc, gameID)
	if turn == nil {
		t.Fatalf("no offered turn in %s", gameID)
	}
	playerID := turn.PlayerID
	if err := svc.ClaimTurn(gameID, turn.Number, playerID); err != nil {
		t.Fatalf("claim turn %d in %s: %v", turn.Number, gameID, err)
	}
	text, image := "", ""
	if turn.Type == turnTypeWriting {
		text = fmt.Sprintf("caption by %d", playerID)
	} else {
		image = fmt.Sprintf("https://img.example/%s-%d.png", gameID, turn.Number)
	}
	if err := svc.SubmitTurn(gameID, turn.Number, playerID, text, image); err != nil {
		t.Fatalf("submit turn %d in %s: %v", turn.Number, gameID, err)
	}
	return playerID
}

// makeTurn builds a turn snapshot for selector inputs.
func makeTurn(gameID string, number int, turnType, status string, playerID int) Turn {
	return Turn{
		ID:       fmt.Sprintf("%s-turn-%d", gameID, number),
		GameID:   gameID,
		Number:   number,
		Type:     turnType,
		Status:   status,
		PlayerID: playerID,
	}
}

func makeRoster(ids ...int) []Player {
	roster := make([]Player, 0, len(ids))
	for _, id := range ids {
		roster = append(roster, Player{ID: id, ChatRef: fmt.Sprintf("U%03d", id)})
	}
	return roster
}

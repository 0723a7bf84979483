package relay

import (
	"errors"
	"testing"
)

func TestEnsurePlayerReusesChatRef(t *testing.T) {
	store := NewStore()
	first, created := store.EnsurePlayer("U001", "Ada")
	if !created {
		t.Fatal("first registration should create")
	}
	again, created := store.EnsurePlayer("U001", "Ada L")
	if created {
		t.Fatal("second registration should reuse")
	}
	if again.ID != first.ID {
		t.Fatalf("ids diverged: %d vs %d", first.ID, again.ID)
	}
	if again.Name != "Ada L" {
		t.Fatalf("rename not applied: %s", again.Name)
	}
}

func TestUpdatePlayerUnknown(t *testing.T) {
	store := NewStore()
	_, err := store.UpdatePlayer(42, func(p *Player) error { return nil })
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestUpdateGameErrorLeavesStateVisible(t *testing.T) {
	store := NewStore()
	store.AddGame(func(id string) *Game {
		return buildGame(id, []string{turnTypeWriting}, 2)
	})
	boom := errors.New("boom")
	_, err := store.UpdateGame("game-1", func(v *GameView) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("closure error not propagated: %v", err)
	}
}

func TestGameViewForSeasonGame(t *testing.T) {
	store := NewStore()
	a, _ := store.EnsurePlayer("U001", "A")
	b, _ := store.EnsurePlayer("U002", "B")
	season := store.CreateSeason("code", SeasonConfig{MinPlayers: 2, MaxPlayers: 4})
	season.Members = []Member{{PlayerID: a.ID}, {PlayerID: b.ID}}
	game, err := store.AddSeasonGame(season.ID, func(id string) *Game {
		return buildGame(id, []string{turnTypeWriting, turnTypeDrawing}, 2)
	})
	if err != nil {
		t.Fatalf("add season game: %v", err)
	}

	view, ok := store.GameView(game.ID)
	if !ok {
		t.Fatal("view not found")
	}
	if view.Season == nil || view.Season.ID != season.ID {
		t.Fatalf("season not attached: %+v", view.Season)
	}
	if len(view.Roster) != 2 {
		t.Fatalf("roster size %d", len(view.Roster))
	}
	if len(view.SeasonGames) != 1 || view.SeasonGames[0].ID != game.ID {
		t.Fatalf("season games %v", view.SeasonGames)
	}
}

func TestGameViewForStandaloneGame(t *testing.T) {
	store := NewStore()
	a, _ := store.EnsurePlayer("U001", "A")
	b, _ := store.EnsurePlayer("U002", "B")
	game := store.AddGame(func(id string) *Game {
		g := buildGame(id, []string{turnTypeWriting}, 2)
		g.Roster = []int{a.ID, b.ID}
		return g
	})

	view, ok := store.GameView(game.ID)
	if !ok {
		t.Fatal("view not found")
	}
	if view.Season != nil {
		t.Fatal("standalone game has no season")
	}
	if len(view.Roster) != 2 {
		t.Fatalf("roster size %d", len(view.Roster))
	}
	if len(view.SeasonGames) != 1 {
		t.Fatalf("standalone view should see only itself, got %d games", len(view.SeasonGames))
	}
}

func TestRestoreBumpsCounters(t *testing.T) {
	store := NewStore()
	store.RestorePlayer(&Player{ID: 7, ChatRef: "U007"})
	player, created := store.EnsurePlayer("U008", "next")
	if !created || player.ID != 8 {
		t.Fatalf("player counter not bumped, got id %d", player.ID)
	}

	season := &Season{ID: "season-5", Status: seasonActive}
	season.Games = []*Game{{ID: "game-9", SeasonID: season.ID, Status: gameActive}}
	if err := store.RestoreSeason(season); err != nil {
		t.Fatalf("restore season: %v", err)
	}
	if err := store.RestoreSeason(season); err == nil {
		t.Fatal("double restore should fail")
	}
	next := store.CreateSeason("code", SeasonConfig{MinPlayers: 2, MaxPlayers: 4})
	if next.ID != "season-6" {
		t.Fatalf("season counter not bumped, got %s", next.ID)
	}
	game := store.AddGame(func(id string) *Game {
		return buildGame(id, []string{turnTypeWriting}, 1)
	})
	if game.ID != "game-10" {
		t.Fatalf("game counter not bumped, got %s", game.ID)
	}
}

func TestListSummariesOrdered(t *testing.T) {
	store := NewStore()
	for i := 0; i < 3; i++ {
		store.AddGame(func(id string) *Game {
			return buildGame(id, []string{turnTypeWriting}, 1)
		})
	}
	games := store.ListGameSummaries()
	if len(games) != 3 {
		t.Fatalf("expected 3 games, got %d", len(games))
	}
	want := []string{"game-1", "game-2", "game-3"}
	for i, summary := range games {
		if summary.ID != want[i] {
			t.Fatalf("summary %d = %s, want %s", i, summary.ID, want[i])
		}
	}
}

func TestFindSeasonByCode(t *testing.T) {
	store := NewStore()
	created := store.CreateSeason("join-me", SeasonConfig{MinPlayers: 2, MaxPlayers: 4})
	found, ok := store.FindSeasonByCode("join-me")
	if !ok || found.ID != created.ID {
		t.Fatalf("lookup by code failed: %v %v", found, ok)
	}
	if _, ok := store.FindSeasonByCode("nope"); ok {
		t.Fatal("unknown code should miss")
	}
}

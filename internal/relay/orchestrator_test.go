package relay

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingNotifier struct {
	mu    sync.Mutex
	notes []Notification
}

func (r *recordingNotifier) Notify(n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
	return nil
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notes)
}

func TestOfferClaimSubmitFlow(t *testing.T) {
	svc := newTestService(t)
	notifier := &recordingNotifier{}
	svc.UseNotifier(notifier)
	players := registerPlayers(t, svc, 2)

	game, err := svc.CreateGame(players)
	if err != nil {
		t.Fatalf("create game: %v", err)
	}

	turn := offeredTurn(t, svc, game.ID)
	if turn == nil {
		t.Fatal("game creation should offer its first turn")
	}
	if turn.Number != 1 || turn.Type != turnTypeWriting {
		t.Fatalf("unexpected first offer: %+v", turn)
	}
	wantDeadline := testBase.Add(60 * time.Minute)
	if !turn.ClaimDeadline.Equal(wantDeadline) {
		t.Fatalf("claim deadline %v, want %v", turn.ClaimDeadline, wantDeadline)
	}
	if !svc.sched.Pending(claimJobID(turn.ID)) {
		t.Fatal("claim timer should be armed for the offered turn")
	}
	if notifier.count() != 1 {
		t.Fatalf("expected 1 offer notification, got %d", notifier.count())
	}

	first := turn.PlayerID
	if err := svc.ClaimTurn(game.ID, 1, first); err != nil {
		t.Fatalf("claim: %v", err)
	}
	claimed, _ := svc.store.GetGame(game.ID)
	got := claimed.turnByNumber(1)
	if got.Status != turnPending {
		t.Fatalf("claimed turn status %s", got.Status)
	}
	if !got.SubmitDeadline.Equal(testBase.Add(720 * time.Minute)) {
		t.Fatalf("writing submission deadline %v", got.SubmitDeadline)
	}
	if svc.sched.Pending(claimJobID(got.ID)) {
		t.Fatal("claim timer should be cancelled after claim")
	}
	if !svc.sched.Pending(submissionJobID(got.ID)) {
		t.Fatal("submission timer should be armed after claim")
	}

	if err := svc.SubmitTurn(game.ID, 1, first, "a heron stealing chips", ""); err != nil {
		t.Fatalf("submit: %v", err)
	}
	after, _ := svc.store.GetGame(game.ID)
	if after.turnByNumber(1).Status != turnCompleted {
		t.Fatalf("submitted turn status %s", after.turnByNumber(1).Status)
	}

	// Completing turn 1 should have offered turn 2 to the other player.
	next := offeredTurn(t, svc, game.ID)
	if next == nil || next.Number != 2 {
		t.Fatalf("turn 2 should be offered, got %+v", next)
	}
	if next.PlayerID == first {
		t.Fatalf("turn 2 offered to the same player %d", first)
	}
	if next.Type != turnTypeDrawing {
		t.Fatalf("turn 2 type %s", next.Type)
	}

	claimAndSubmit(t, svc, game.ID)
	done, _ := svc.store.GetGame(game.ID)
	if done.Status != gameCompleted {
		t.Fatalf("game status %s after all turns resolved", done.Status)
	}
}

func TestClaimByWrongPlayer(t *testing.T) {
	svc := newTestService(t)
	players := registerPlayers(t, svc, 2)
	game, err := svc.CreateGame(players)
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	turn := offeredTurn(t, svc, game.ID)
	other := players[0]
	if other == turn.PlayerID {
		other = players[1]
	}
	err = svc.ClaimTurn(game.ID, turn.Number, other)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not-found for wrong claimant, got %v", err)
	}
	fresh, _ := svc.store.GetGame(game.ID)
	if fresh.turnByNumber(turn.Number).Status != turnOffered {
		t.Fatal("rejected claim must leave the offer standing")
	}
}

func TestClaimUnofferedTurn(t *testing.T) {
	svc := newTestService(t)
	players := registerPlayers(t, svc, 2)
	game, err := svc.CreateGame(players)
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	// Turn 2 is still available.
	err = svc.ClaimTurn(game.ID, 2, players[0])
	if !IsInvalidTransition(err) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestSubmitByWrongPlayer(t *testing.T) {
	svc := newTestService(t)
	players := registerPlayers(t, svc, 2)
	game, err := svc.CreateGame(players)
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	turn := offeredTurn(t, svc, game.ID)
	holder := turn.PlayerID
	if err := svc.ClaimTurn(game.ID, turn.Number, holder); err != nil {
		t.Fatalf("claim: %v", err)
	}
	other := players[0]
	if other == holder {
		other = players[1]
	}
	err = svc.SubmitTurn(game.ID, turn.Number, other, "imposter caption", "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not-found for wrong submitter, got %v", err)
	}
}

func TestSubmitRejectsMismatchedContent(t *testing.T) {
	svc := newTestService(t)
	players := registerPlayers(t, svc, 2)
	game, err := svc.CreateGame(players)
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	turn := offeredTurn(t, svc, game.ID)
	holder := turn.PlayerID
	if err := svc.ClaimTurn(game.ID, turn.Number, holder); err != nil {
		t.Fatalf("claim: %v", err)
	}
	err = svc.SubmitTurn(game.ID, turn.Number, holder, "", "https://img.example/wrong.png")
	var contentErr *InvalidContentError
	if !errors.As(err, &contentErr) {
		t.Fatalf("writing turn with image should fail content validation, got %v", err)
	}
	fresh, _ := svc.store.GetGame(game.ID)
	if fresh.turnByNumber(turn.Number).Status != turnPending {
		t.Fatal("rejected submission must leave the turn pending")
	}
}

func TestClaimTimeoutRevertsAndReoffers(t *testing.T) {
	svc := newTestService(t)
	players := registerPlayers(t, svc, 3)
	game, err := svc.CreateGame(players)
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	turn := offeredTurn(t, svc, game.ID)
	lapsed := turn.PlayerID

	svc.handleClaimTimeout(game.ID, turn.ID)

	reoffered := offeredTurn(t, svc, game.ID)
	if reoffered == nil || reoffered.Number != turn.Number {
		t.Fatalf("turn should be re-offered, got %+v", reoffered)
	}
	if reoffered.PlayerID == lapsed {
		t.Fatalf("re-offer went back to the lapsed holder %d", lapsed)
	}
	if reoffered.LastHolderID != lapsed {
		t.Fatalf("lapsed holder not recorded: %+v", reoffered)
	}
}

func TestClaimTimeoutAfterClaimIsNoOp(t *testing.T) {
	svc := newTestService(t)
	players := registerPlayers(t, svc, 2)
	game, err := svc.CreateGame(players)
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	turn := offeredTurn(t, svc, game.ID)
	holder := turn.PlayerID
	if err := svc.ClaimTurn(game.ID, turn.Number, holder); err != nil {
		t.Fatalf("claim: %v", err)
	}

	// Stale timer firing after the player already claimed.
	svc.handleClaimTimeout(game.ID, turn.ID)

	fresh, _ := svc.store.GetGame(game.ID)
	got := fresh.turnByNumber(turn.Number)
	if got.Status != turnPending || got.PlayerID != holder {
		t.Fatalf("stale claim timeout mutated the turn: %+v", got)
	}
}

func TestSubmissionTimeoutSkipsAndContinues(t *testing.T) {
	svc := newTestService(t)
	players := registerPlayers(t, svc, 3)
	game, err := svc.CreateGame(players)
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	turn := offeredTurn(t, svc, game.ID)
	holder := turn.PlayerID
	if err := svc.ClaimTurn(game.ID, turn.Number, holder); err != nil {
		t.Fatalf("claim: %v", err)
	}

	svc.handleSubmissionTimeout(game.ID, turn.ID)

	fresh, _ := svc.store.GetGame(game.ID)
	got := fresh.turnByNumber(turn.Number)
	if got.Status != turnSkipped {
		t.Fatalf("turn status %s after submission timeout", got.Status)
	}
	next := offeredTurn(t, svc, game.ID)
	if next == nil || next.Number != turn.Number+1 {
		t.Fatalf("relay should continue past the skipped turn, got %+v", next)
	}

	// A second stale fire changes nothing.
	svc.handleSubmissionTimeout(game.ID, turn.ID)
	again, _ := svc.store.GetGame(game.ID)
	if again.turnByNumber(turn.Number).Status != turnSkipped {
		t.Fatal("repeated submission timeout mutated the turn")
	}
}

func TestAdminSkipOfferedTurn(t *testing.T) {
	svc := newTestService(t)
	players := registerPlayers(t, svc, 3)
	game, err := svc.CreateGame(players)
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	turn := offeredTurn(t, svc, game.ID)
	holder := turn.PlayerID
	if err := svc.SkipTurn(game.ID, turn.Number); err != nil {
		t.Fatalf("skip: %v", err)
	}
	reoffered := offeredTurn(t, svc, game.ID)
	if reoffered == nil || reoffered.Number != turn.Number {
		t.Fatalf("released turn should be re-offered, got %+v", reoffered)
	}
	if reoffered.PlayerID == holder {
		t.Fatalf("re-offer after admin skip went back to %d", holder)
	}
}

func TestAdminSkipPendingTurn(t *testing.T) {
	svc := newTestService(t)
	players := registerPlayers(t, svc, 2)
	game, err := svc.CreateGame(players)
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	turn := offeredTurn(t, svc, game.ID)
	if err := svc.ClaimTurn(game.ID, turn.Number, turn.PlayerID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := svc.SkipTurn(game.ID, turn.Number); err != nil {
		t.Fatalf("skip: %v", err)
	}
	fresh, _ := svc.store.GetGame(game.ID)
	if fresh.turnByNumber(turn.Number).Status != turnSkipped {
		t.Fatal("pending turn should be skipped by admin override")
	}
	if next := offeredTurn(t, svc, game.ID); next == nil || next.Number != turn.Number+1 {
		t.Fatalf("relay should continue, got %+v", next)
	}
}

func TestAdminSkipResolvedTurnRejected(t *testing.T) {
	svc := newTestService(t)
	players := registerPlayers(t, svc, 2)
	game, err := svc.CreateGame(players)
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	claimAndSubmit(t, svc, game.ID)
	err = svc.SkipTurn(game.ID, 1)
	if !IsInvalidTransition(err) {
		t.Fatalf("skipping a completed turn should fail, got %v", err)
	}
}

func TestCompletedGameNeverReoffers(t *testing.T) {
	svc := newTestService(t)
	players := registerPlayers(t, svc, 2)
	game, err := svc.CreateGame(players)
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	claimAndSubmit(t, svc, game.ID)
	claimAndSubmit(t, svc, game.ID)

	done, _ := svc.store.GetGame(game.ID)
	if done.Status != gameCompleted {
		t.Fatalf("game status %s", done.Status)
	}
	offered, err := svc.OfferNextTurn(game.ID, "manual")
	if err != nil {
		t.Fatalf("offer on completed game: %v", err)
	}
	if offered {
		t.Fatal("completed game handed out a turn")
	}
	fresh, _ := svc.store.GetGame(game.ID)
	for i := range fresh.Turns {
		if !terminalTurnStatus(fresh.Turns[i].Status) {
			t.Fatalf("turn %d left terminal state: %s", fresh.Turns[i].Number, fresh.Turns[i].Status)
		}
	}
}

func TestBanBeforeFinalTurnCompletesGame(t *testing.T) {
	svc := newTestService(t)
	players := registerPlayers(t, svc, 3)
	game, err := svc.CreateGame(players)
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	if err := svc.SetPlayerBanned(players[2], true); err != nil {
		t.Fatalf("ban: %v", err)
	}

	claimAndSubmit(t, svc, game.ID)
	claimAndSubmit(t, svc, game.ID)

	done, _ := svc.store.GetGame(game.ID)
	if done.Status != gameCompleted {
		t.Fatalf("game with only banned members left should complete, status %s", done.Status)
	}
	if got := done.turnByNumber(3).Status; got != turnAvailable {
		t.Fatalf("unassignable turn should stay available, got %s", got)
	}
	offered, err := svc.OfferNextTurn(game.ID, "manual")
	if err != nil {
		t.Fatalf("offer on completed game: %v", err)
	}
	if offered {
		t.Fatal("completed game handed out a turn")
	}
}

func TestBanResolvesAlreadyStalledGame(t *testing.T) {
	svc := newTestService(t)
	players := registerPlayers(t, svc, 3)
	game := svc.store.AddGame(func(id string) *Game {
		g := buildGame(id, []string{turnTypeWriting, turnTypeDrawing}, 3)
		g.Roster = append([]int(nil), players...)
		g.Turns[0].Status = turnCompleted
		g.Turns[0].PlayerID = players[0]
		g.Turns[0].TextContent = "a crab conducting an orchestra"
		g.Turns[1].Status = turnSkipped
		g.Turns[1].PlayerID = players[1]
		return g
	})

	if err := svc.SetPlayerBanned(players[2], true); err != nil {
		t.Fatalf("ban: %v", err)
	}

	done, _ := svc.store.GetGame(game.ID)
	if done.Status != gameCompleted {
		t.Fatalf("ban should resolve the stalled game, status %s", done.Status)
	}
}

func TestClaimAndSubmitRejectedWhilePaused(t *testing.T) {
	svc := newTestService(t)
	players := registerPlayers(t, svc, 2)
	game, err := svc.CreateGame(players)
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	turn := offeredTurn(t, svc, game.ID)
	if err := svc.PauseGame(game.ID); err != nil {
		t.Fatalf("pause: %v", err)
	}

	if err := svc.ClaimTurn(game.ID, turn.Number, turn.PlayerID); err == nil {
		t.Fatal("claim on a paused game should be rejected")
	}
	if svc.sched.Pending(submissionJobID(turn.ID)) {
		t.Fatal("rejected claim must not arm a submission timer")
	}
	if err := svc.SubmitTurn(game.ID, turn.Number, turn.PlayerID, "smuggled words", ""); err == nil {
		t.Fatal("submit on a paused game should be rejected")
	}

	if err := svc.ResumeGame(game.ID); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if err := svc.ClaimTurn(game.ID, turn.Number, turn.PlayerID); err != nil {
		t.Fatalf("claim after resume: %v", err)
	}
}

func TestOfferBlockedByPendingRuleResolvesLater(t *testing.T) {
	svc := newTestService(t)
	seasonID, _ := startSeason(t, svc, 2, SeasonConfig{})
	season, ok := svc.store.GetSeason(seasonID)
	if !ok {
		t.Fatalf("season %s not found", seasonID)
	}
	if len(season.Games) != 2 {
		t.Fatalf("expected 2 games, got %d", len(season.Games))
	}
	gameA, gameB := season.Games[0], season.Games[1]

	turnA := offeredTurn(t, svc, gameA.ID)
	turnB := offeredTurn(t, svc, gameB.ID)
	if turnA == nil || turnB == nil {
		t.Fatal("both games should open with an offer")
	}
	if turnA.PlayerID == turnB.PlayerID {
		t.Fatalf("initial offers went to the same player %d", turnA.PlayerID)
	}

	// Hold gameB's turn pending so its holder is ineligible elsewhere.
	holderB := turnB.PlayerID
	if err := svc.ClaimTurn(gameB.ID, turnB.Number, holderB); err != nil {
		t.Fatalf("claim in game B: %v", err)
	}

	// Resolving gameA turn 1 wants to offer gameA turn 2, but the only
	// remaining candidate holds a pending turn. The turn stays available.
	claimAndSubmit(t, svc, gameA.ID)
	stalled, _ := svc.store.GetGame(gameA.ID)
	if got := stalled.turnByNumber(2).Status; got != turnAvailable {
		t.Fatalf("blocked turn should stay available, got %s", got)
	}

	// Resolving the pending turn frees the player; the sibling retry
	// should pick the stalled offer back up.
	text, image := "", ""
	if turnB.Type == turnTypeWriting {
		text = "a llama in a lighthouse"
	} else {
		image = "https://img.example/llama.png"
	}
	if err := svc.SubmitTurn(gameB.ID, turnB.Number, holderB, text, image); err != nil {
		t.Fatalf("submit in game B: %v", err)
	}
	unstuck := offeredTurn(t, svc, gameA.ID)
	if unstuck == nil || unstuck.Number != 2 {
		t.Fatalf("stalled turn was not re-offered: %+v", unstuck)
	}
	if unstuck.PlayerID != holderB {
		t.Fatalf("turn 2 of game A should go to player %d, got %d", holderB, unstuck.PlayerID)
	}
}

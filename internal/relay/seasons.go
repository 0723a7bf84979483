package relay

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// RegisterPlayer returns the player bound to the chat reference, creating
// one on first interaction. Players are never deleted, only banned.
func (s *Service) RegisterPlayer(chatRef, name string) (Player, error) {
	chatRef = strings.TrimSpace(chatRef)
	if chatRef == "" {
		return Player{}, errors.New("chat reference is required")
	}
	player, created := s.store.EnsurePlayer(chatRef, strings.TrimSpace(name))
	if created {
		if err := s.persistPlayer(player.ID); err != nil {
			log.Printf("persist player failed player_id=%d error=%v", player.ID, err)
		}
		s.persistEvent("player_registered", eventRefs{PlayerID: player.ID}, EventPayload{PlayerID: player.ID})
		log.Printf("player registered player_id=%d chat_ref=%s", player.ID, chatRef)
	}
	return player, nil
}

func (s *Service) SetPlayerBanned(playerID int, banned bool) error {
	_, err := s.store.UpdatePlayer(playerID, func(player *Player) error {
		player.Banned = banned
		return nil
	})
	if err != nil {
		return err
	}
	if err := s.persistPlayer(playerID); err != nil {
		log.Printf("persist player failed player_id=%d error=%v", playerID, err)
	}
	event := "player_unbanned"
	if banned {
		event = "player_banned"
	}
	s.persistEvent(event, eventRefs{PlayerID: playerID}, EventPayload{PlayerID: playerID})
	log.Printf("player ban updated player_id=%d banned=%v", playerID, banned)
	if banned {
		s.completeStalledGames()
	}
	return nil
}

// completeStalledGames re-runs completion detection on every active game. A
// ban shrinks the eligible roster, which can resolve a game whose last turn
// was waiting on the banned player.
func (s *Service) completeStalledGames() {
	for _, summary := range s.store.ListGameSummaries() {
		if summary.Status != gameActive {
			continue
		}
		game, err := s.store.UpdateGame(summary.ID, func(v *GameView) error {
			markCompletionLocked(v)
			return nil
		})
		if err != nil || game.Status != gameCompleted {
			continue
		}
		s.afterTerminalTurn(game, "player-banned")
	}
}

// CreateSeason registers a season in setup. Zero-valued config fields fall
// back to the process defaults.
func (s *Service) CreateSeason(cfg SeasonConfig) (*Season, error) {
	if len(cfg.TurnPattern) == 0 {
		cfg.TurnPattern = splitPattern(s.cfg.TurnPattern)
	}
	for _, turnType := range cfg.TurnPattern {
		if turnType != turnTypeWriting && turnType != turnTypeDrawing {
			return nil, fmt.Errorf("unknown turn type %q in pattern", turnType)
		}
	}
	if cfg.MinPlayers <= 0 {
		cfg.MinPlayers = s.cfg.MinPlayersPerSeason
	}
	if cfg.MaxPlayers <= 0 {
		cfg.MaxPlayers = s.cfg.MaxPlayersPerSeason
	}
	if cfg.MinPlayers < 2 || cfg.MaxPlayers < cfg.MinPlayers {
		return nil, errors.New("invalid player bounds")
	}
	season := s.store.CreateSeason(uuid.NewString(), cfg)
	if err := s.persistSeason(season); err != nil {
		log.Printf("persist season failed season_id=%s error=%v", season.ID, err)
	}
	s.persistEvent("season_created", eventRefs{Season: season}, EventPayload{SeasonID: season.ID})
	log.Printf("season created season_id=%s code=%s", season.ID, season.Code)
	return season, nil
}

// OpenSeason opens a season for joining and arms the open-window timer.
// When the window lapses the season activates if it has enough players,
// otherwise it is terminated.
func (s *Service) OpenSeason(seasonID string) error {
	var deadline bool
	season, err := s.store.UpdateSeason(seasonID, func(season *Season) error {
		if season.Status != seasonSetup {
			return fmt.Errorf("season %s is %s, not setup", season.ID, season.Status)
		}
		season.Status = seasonOpen
		season.OpenDeadline = s.sched.Now().Add(s.openWindow(season))
		deadline = true
		return nil
	})
	if err != nil {
		return err
	}
	if deadline {
		s.sched.Schedule(seasonOpenJobID(seasonID), season.OpenDeadline, func() {
			s.handleOpenWindowLapsed(seasonID)
		})
	}
	if err := s.persistSeason(season); err != nil {
		log.Printf("persist season failed season_id=%s error=%v", seasonID, err)
	}
	s.persistEvent("season_opened", eventRefs{Season: season}, EventPayload{SeasonID: seasonID})
	log.Printf("season opened season_id=%s until=%s", seasonID, season.OpenDeadline)
	return nil
}

// JoinSeason adds a player to an open season. A player joins a season at
// most once; reaching the player cap activates the season immediately.
func (s *Service) JoinSeason(seasonID string, playerID int) error {
	player, ok := s.store.GetPlayer(playerID)
	if !ok {
		return fmt.Errorf("player %d: %w", playerID, ErrNotFound)
	}
	if player.Banned {
		return fmt.Errorf("player %d is banned", playerID)
	}
	var full bool
	var joinedAt bool
	season, err := s.store.UpdateSeason(seasonID, func(season *Season) error {
		if season.Status != seasonOpen {
			return fmt.Errorf("season %s is not open", season.ID)
		}
		for _, member := range season.Members {
			if member.PlayerID == playerID {
				return nil
			}
		}
		if len(season.Members) >= season.Config.MaxPlayers {
			return fmt.Errorf("season %s is full", season.ID)
		}
		season.Members = append(season.Members, Member{PlayerID: playerID, JoinedAt: s.sched.Now()})
		joinedAt = true
		full = len(season.Members) == season.Config.MaxPlayers
		return nil
	})
	if err != nil {
		return err
	}
	if !joinedAt {
		return nil
	}
	if err := s.persistMembership(season, playerID); err != nil {
		log.Printf("persist membership failed season_id=%s player_id=%d error=%v", seasonID, playerID, err)
	}
	s.persistEvent("season_joined", eventRefs{Season: season, PlayerID: playerID}, EventPayload{
		SeasonID: seasonID,
		PlayerID: playerID,
	})
	log.Printf("player joined season season_id=%s player_id=%d", seasonID, playerID)
	if full {
		return s.ActivateSeason(seasonID)
	}
	return nil
}

// ActivateSeason starts the relay: one game per member, one turn per member
// in each game, types cycling through the configured pattern, and the first
// turn of every game offered.
func (s *Service) ActivateSeason(seasonID string) error {
	var memberCount int
	season, err := s.store.UpdateSeason(seasonID, func(season *Season) error {
		if season.Status != seasonOpen {
			return fmt.Errorf("season %s is not open", season.ID)
		}
		if len(season.Members) < season.Config.MinPlayers {
			return fmt.Errorf("season %s needs %d players, has %d", season.ID, season.Config.MinPlayers, len(season.Members))
		}
		season.Status = seasonActive
		memberCount = len(season.Members)
		return nil
	})
	if err != nil {
		return err
	}

	s.sched.Cancel(seasonOpenJobID(seasonID))
	if err := s.persistSeason(season); err != nil {
		log.Printf("persist season failed season_id=%s error=%v", seasonID, err)
	}

	games := make([]*Game, 0, memberCount)
	for i := 0; i < memberCount; i++ {
		game, err := s.store.AddSeasonGame(seasonID, func(id string) *Game {
			return buildGame(id, season.Config.TurnPattern, memberCount)
		})
		if err != nil {
			return err
		}
		if err := s.persistGame(season, game); err != nil {
			log.Printf("persist game failed game_id=%s error=%v", game.ID, err)
		}
		games = append(games, game)
	}
	s.persistEvent("season_activated", eventRefs{Season: season}, EventPayload{
		SeasonID: seasonID,
		Count:    memberCount,
	})
	log.Printf("season activated season_id=%s members=%d games=%d", seasonID, memberCount, len(games))

	for _, game := range games {
		if _, err := s.OfferNextTurn(game.ID, "season-activated"); err != nil {
			log.Printf("initial offer failed game_id=%s error=%v", game.ID, err)
		}
	}
	return nil
}

// TerminateSeason is the administrator kill switch, legal from any status.
// Remaining games are paused and every season timer is cancelled.
func (s *Service) TerminateSeason(seasonID string) error {
	season, err := s.store.UpdateSeason(seasonID, func(season *Season) error {
		season.Status = seasonTerminated
		for _, game := range season.Games {
			if game.Status == gameActive {
				game.Status = gamePaused
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.sched.Cancel(seasonOpenJobID(seasonID))
	for _, game := range season.Games {
		s.cancelGameTimers(game)
		if err := s.persistGame(season, game); err != nil {
			log.Printf("persist game failed game_id=%s error=%v", game.ID, err)
		}
	}
	if err := s.persistSeason(season); err != nil {
		log.Printf("persist season failed season_id=%s error=%v", seasonID, err)
	}
	s.persistEvent("season_terminated", eventRefs{Season: season}, EventPayload{SeasonID: seasonID})
	log.Printf("season terminated season_id=%s", seasonID)
	return nil
}

// CreateGame starts an on-demand game outside any season. The roster is the
// invited player list; timeouts come from the process defaults.
func (s *Service) CreateGame(playerIDs []int) (*Game, error) {
	if len(playerIDs) < 2 {
		return nil, errors.New("on-demand game needs at least 2 players")
	}
	seen := make(map[int]struct{}, len(playerIDs))
	for _, id := range playerIDs {
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("player %d listed twice", id)
		}
		seen[id] = struct{}{}
		player, ok := s.store.GetPlayer(id)
		if !ok {
			return nil, fmt.Errorf("player %d: %w", id, ErrNotFound)
		}
		if player.Banned {
			return nil, fmt.Errorf("player %d is banned", id)
		}
	}
	game := s.store.AddGame(func(id string) *Game {
		g := buildGame(id, splitPattern(s.cfg.TurnPattern), len(playerIDs))
		g.Roster = append([]int(nil), playerIDs...)
		return g
	})
	if err := s.persistGame(nil, game); err != nil {
		log.Printf("persist game failed game_id=%s error=%v", game.ID, err)
	}
	s.persistEvent("game_created", eventRefs{Game: game}, EventPayload{GameID: game.ID, Count: len(playerIDs)})
	log.Printf("on-demand game created game_id=%s players=%d", game.ID, len(playerIDs))

	if _, err := s.OfferNextTurn(game.ID, "game-created"); err != nil {
		log.Printf("initial offer failed game_id=%s error=%v", game.ID, err)
	}
	return game, nil
}

// PauseGame stops the relay clock for one game without losing persisted
// deadlines; ResumeGame re-arms them, firing anything past due.
func (s *Service) PauseGame(gameID string) error {
	game, err := s.store.UpdateGame(gameID, func(v *GameView) error {
		if v.Game.Status != gameActive {
			return fmt.Errorf("game %s is %s, not active", v.Game.ID, v.Game.Status)
		}
		v.Game.Status = gamePaused
		return nil
	})
	if err != nil {
		return err
	}
	s.cancelGameTimers(game)
	if err := s.persistGame(nil, game); err != nil {
		log.Printf("persist game failed game_id=%s error=%v", gameID, err)
	}
	s.persistEvent("game_paused", eventRefs{Game: game}, EventPayload{GameID: gameID})
	log.Printf("game paused game_id=%s", gameID)
	return nil
}

func (s *Service) ResumeGame(gameID string) error {
	game, err := s.store.UpdateGame(gameID, func(v *GameView) error {
		if v.Game.Status != gamePaused {
			return fmt.Errorf("game %s is %s, not paused", v.Game.ID, v.Game.Status)
		}
		v.Game.Status = gameActive
		return nil
	})
	if err != nil {
		return err
	}
	if err := s.persistGame(nil, game); err != nil {
		log.Printf("persist game failed game_id=%s error=%v", gameID, err)
	}
	s.persistEvent("game_resumed", eventRefs{Game: game}, EventPayload{GameID: gameID})
	log.Printf("game resumed game_id=%s", gameID)
	s.rearmGameTimers(game)
	if _, err := s.OfferNextTurn(gameID, "game-resumed"); err != nil {
		log.Printf("offer after resume failed game_id=%s error=%v", gameID, err)
	}
	return nil
}

// handleOpenWindowLapsed decides a season's fate when its join window
// closes: enough players means the relay starts, too few means the season
// is terminated.
func (s *Service) handleOpenWindowLapsed(seasonID string) {
	var stillOpen bool
	var members, minPlayers int
	_, err := s.store.UpdateSeason(seasonID, func(season *Season) error {
		if season.Status != seasonOpen {
			return nil
		}
		stillOpen = true
		members = len(season.Members)
		minPlayers = season.Config.MinPlayers
		return nil
	})
	if err != nil || !stillOpen {
		return
	}
	if members >= minPlayers {
		if err := s.ActivateSeason(seasonID); err != nil {
			log.Printf("activation after open window failed season_id=%s error=%v", seasonID, err)
		}
		return
	}
	log.Printf("open window lapsed with too few players season_id=%s members=%d", seasonID, members)
	if err := s.TerminateSeason(seasonID); err != nil {
		log.Printf("termination after open window failed season_id=%s error=%v", seasonID, err)
	}
}

func (s *Service) cancelGameTimers(game *Game) {
	for i := range game.Turns {
		s.sched.Cancel(claimJobID(game.Turns[i].ID))
		s.sched.Cancel(submissionJobID(game.Turns[i].ID))
	}
}

// rearmGameTimers schedules claim/submission timers from the absolute
// deadlines persisted on the turns. Past-due deadlines fire immediately.
func (s *Service) rearmGameTimers(game *Game) {
	gameID := game.ID
	for i := range game.Turns {
		turn := game.Turns[i]
		switch turn.Status {
		case turnOffered:
			if turn.ClaimDeadline.IsZero() {
				continue
			}
			turnID := turn.ID
			s.sched.Schedule(claimJobID(turnID), turn.ClaimDeadline, func() {
				s.handleClaimTimeout(gameID, turnID)
			})
		case turnPending:
			if turn.SubmitDeadline.IsZero() {
				continue
			}
			turnID := turn.ID
			s.sched.Schedule(submissionJobID(turnID), turn.SubmitDeadline, func() {
				s.handleSubmissionTimeout(gameID, turnID)
			})
		}
	}
}

// buildGame lays out the relay chain: count turns, 1-based, types cycling
// through the pattern, each turn linked to its predecessor.
func buildGame(id string, pattern []string, count int) *Game {
	game := &Game{
		ID:     id,
		Code:   uuid.NewString(),
		Status: gameActive,
		Turns:  make([]Turn, 0, count),
	}
	for number := 1; number <= count; number++ {
		turn := Turn{
			ID:     fmt.Sprintf("%s-turn-%d", id, number),
			GameID: id,
			Number: number,
			Type:   pattern[(number-1)%len(pattern)],
			Status: turnAvailable,
		}
		if number > 1 {
			turn.PreviousTurnID = fmt.Sprintf("%s-turn-%d", id, number-1)
		}
		game.Turns = append(game.Turns, turn)
	}
	return game
}

func splitPattern(raw string) []string {
	parts := strings.Split(raw, ",")
	pattern := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(strings.ToLower(part))
		if part != "" {
			pattern = append(pattern, part)
		}
	}
	if len(pattern) == 0 {
		pattern = []string{turnTypeWriting, turnTypeDrawing}
	}
	return pattern
}

package relay

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"sketch-relay/internal/db"
)

// Restore rebuilds in-memory state from the database after a restart:
// players, every non-terminal season with its games and turns, and
// standalone games. Timers are re-derived from the persisted absolute
// deadlines rather than any in-memory state that died with the old
// process; anything past due fires immediately.
func (s *Service) Restore() error {
	if s.db == nil {
		return errNoDatabase
	}

	players, err := s.loadPlayers()
	if err != nil {
		return fmt.Errorf("load players: %w", err)
	}
	for i := range players {
		s.store.RestorePlayer(&players[i])
	}

	seasons, err := s.loadSeasons()
	if err != nil {
		return fmt.Errorf("load seasons: %w", err)
	}
	restoredGames := make([]*Game, 0)
	for _, record := range seasons {
		season, games, err := s.buildSeason(record)
		if err != nil {
			return err
		}
		if err := s.store.RestoreSeason(season); err != nil {
			return err
		}
		if season.Status == seasonOpen && !season.OpenDeadline.IsZero() {
			seasonID := season.ID
			s.sched.Schedule(seasonOpenJobID(seasonID), season.OpenDeadline, func() {
				s.handleOpenWindowLapsed(seasonID)
			})
		}
		restoredGames = append(restoredGames, games...)
		log.Printf("season restored season_id=%s status=%s games=%d", season.ID, season.Status, len(games))
	}

	standalone, err := s.loadStandaloneGames()
	if err != nil {
		return fmt.Errorf("load games: %w", err)
	}
	for _, record := range standalone {
		game, err := s.buildGameState(record)
		if err != nil {
			return err
		}
		game.Roster = parseRoster(record.Roster)
		if err := s.store.RestoreGame(game); err != nil {
			return err
		}
		restoredGames = append(restoredGames, game)
		log.Printf("game restored game_id=%s status=%s", game.ID, game.Status)
	}

	for _, game := range restoredGames {
		if game.Status != gameActive {
			continue
		}
		s.rearmGameTimers(game)
		// A relay stalled mid-offer (process died between revert and
		// re-offer, or selection kept failing) picks back up here.
		if turn := nextAvailableTurn(game); turn != nil && !hasLiveTurn(game) {
			if _, err := s.OfferNextTurn(game.ID, "restore"); err != nil {
				log.Printf("offer after restore failed game_id=%s error=%v", game.ID, err)
			}
		}
	}
	return nil
}

func hasLiveTurn(game *Game) bool {
	for i := range game.Turns {
		status := game.Turns[i].Status
		if status == turnOffered || status == turnPending {
			return true
		}
	}
	return false
}

func (s *Service) loadPlayers() ([]Player, error) {
	var records []db.Player
	if err := s.db.Order("id asc").Find(&records).Error; err != nil {
		return nil, err
	}
	players := make([]Player, 0, len(records))
	for _, record := range records {
		players = append(players, Player{
			ID:      int(record.ID),
			DBID:    record.ID,
			ChatRef: record.ChatRef,
			Name:    record.DisplayName,
			Banned:  record.Banned,
		})
	}
	return players, nil
}

func (s *Service) loadSeasons() ([]db.Season, error) {
	var records []db.Season
	err := s.db.
		Where("status IN ?", []string{seasonSetup, seasonOpen, seasonActive}).
		Order("id asc").
		Find(&records).Error
	return records, err
}

func (s *Service) loadStandaloneGames() ([]db.Game, error) {
	var records []db.Game
	err := s.db.
		Where("season_id IS NULL AND status IN ?", []string{gameActive, gamePaused}).
		Order("id asc").
		Find(&records).Error
	return records, err
}

func (s *Service) buildSeason(record db.Season) (*Season, []*Game, error) {
	season := &Season{
		ID:     fmt.Sprintf("season-%d", record.ID),
		DBID:   record.ID,
		Code:   record.Code,
		Status: record.Status,
		Config: SeasonConfig{
			TurnPattern:    splitPattern(record.TurnPattern),
			MinPlayers:     record.MinPlayers,
			MaxPlayers:     record.MaxPlayers,
			OpenMinutes:    record.OpenMinutes,
			ClaimTimeout:   record.ClaimTimeout,
			WritingTimeout: record.WritingTimeout,
			DrawingTimeout: record.DrawingTimeout,
		},
	}
	if record.OpenDeadline != nil {
		season.OpenDeadline = *record.OpenDeadline
	}

	var memberships []db.SeasonMembership
	if err := s.db.Where("season_id = ?", record.ID).Order("joined_at asc").Find(&memberships).Error; err != nil {
		return nil, nil, err
	}
	for _, membership := range memberships {
		season.Members = append(season.Members, Member{
			PlayerID: int(membership.PlayerID),
			JoinedAt: membership.JoinedAt,
		})
	}

	var games []db.Game
	if err := s.db.Where("season_id = ?", record.ID).Order("id asc").Find(&games).Error; err != nil {
		return nil, nil, err
	}
	built := make([]*Game, 0, len(games))
	for _, gameRecord := range games {
		game, err := s.buildGameState(gameRecord)
		if err != nil {
			return nil, nil, err
		}
		game.SeasonID = season.ID
		season.Games = append(season.Games, game)
		built = append(built, game)
	}
	return season, built, nil
}

func (s *Service) buildGameState(record db.Game) (*Game, error) {
	game := &Game{
		ID:     fmt.Sprintf("game-%d", record.ID),
		DBID:   record.ID,
		Code:   record.Code,
		Status: record.Status,
	}
	var turns []db.Turn
	if err := s.db.Where("game_id = ?", record.ID).Order("number asc").Find(&turns).Error; err != nil {
		return nil, err
	}
	for _, turnRecord := range turns {
		turn := Turn{
			ID:          fmt.Sprintf("%s-turn-%d", game.ID, turnRecord.Number),
			DBID:        turnRecord.ID,
			GameID:      game.ID,
			Number:      turnRecord.Number,
			Type:        turnRecord.Type,
			Status:      turnRecord.Status,
			TextContent: turnRecord.TextContent,
			ImageURL:    turnRecord.ImageURL,
		}
		if turnRecord.Number > 1 {
			turn.PreviousTurnID = fmt.Sprintf("%s-turn-%d", game.ID, turnRecord.Number-1)
		}
		if turnRecord.PlayerID != nil {
			turn.PlayerID = int(*turnRecord.PlayerID)
		}
		if turnRecord.LastHolderID != nil {
			turn.LastHolderID = int(*turnRecord.LastHolderID)
		}
		turn.OfferedAt = derefTime(turnRecord.OfferedAt)
		turn.ClaimedAt = derefTime(turnRecord.ClaimedAt)
		turn.CompletedAt = derefTime(turnRecord.CompletedAt)
		turn.SkippedAt = derefTime(turnRecord.SkippedAt)
		turn.ClaimDeadline = derefTime(turnRecord.ClaimDeadline)
		turn.SubmitDeadline = derefTime(turnRecord.SubmitDeadline)
		game.Turns = append(game.Turns, turn)
	}
	return game, nil
}

func parseRoster(raw string) []int {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	roster := make([]int, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || id <= 0 {
			continue
		}
		roster = append(roster, id)
	}
	return roster
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

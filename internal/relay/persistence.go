package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm/clause"

	"sketch-relay/internal/db"
)

// EventPayload is the JSON body of an audit event row.
type EventPayload struct {
	SeasonID string `json:"season_id,omitempty"`
	GameID   string `json:"game_id,omitempty"`
	TurnID   string `json:"turn_id,omitempty"`
	PlayerID int    `json:"player_id,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Count    int    `json:"count,omitempty"`
}

// eventRefs names the entities an event row links to.
type eventRefs struct {
	Season     *Season
	Game       *Game
	TurnNumber int
	PlayerID   int
}

func (s *Service) persistPlayer(playerID int) error {
	if s.db == nil {
		return nil
	}
	player, ok := s.store.GetPlayer(playerID)
	if !ok {
		return fmt.Errorf("player %d: %w", playerID, ErrNotFound)
	}
	if player.DBID != 0 {
		return s.db.Model(&db.Player{}).Where("id = ?", player.DBID).Updates(map[string]any{
			"display_name": player.Name,
			"banned":       player.Banned,
		}).Error
	}
	record := db.Player{
		ChatRef:     player.ChatRef,
		DisplayName: player.Name,
		Banned:      player.Banned,
	}
	if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error; err != nil {
		return err
	}
	if record.ID == 0 {
		if err := s.db.Where("chat_ref = ?", player.ChatRef).First(&record).Error; err != nil {
			return err
		}
	}
	dbID := record.ID
	_, err := s.store.UpdatePlayer(playerID, func(p *Player) error {
		p.DBID = dbID
		return nil
	})
	return err
}

func (s *Service) persistSeason(season *Season) error {
	if s.db == nil {
		return nil
	}
	var openDeadline *time.Time
	if !season.OpenDeadline.IsZero() {
		deadline := season.OpenDeadline
		openDeadline = &deadline
	}
	if season.DBID != 0 {
		return s.db.Model(&db.Season{}).Where("id = ?", season.DBID).Updates(map[string]any{
			"status":        season.Status,
			"open_deadline": openDeadline,
		}).Error
	}
	record := db.Season{
		Code:           season.Code,
		Status:         season.Status,
		TurnPattern:    strings.Join(season.Config.TurnPattern, ","),
		MinPlayers:     season.Config.MinPlayers,
		MaxPlayers:     season.Config.MaxPlayers,
		OpenMinutes:    season.Config.OpenMinutes,
		ClaimTimeout:   season.Config.ClaimTimeout,
		WritingTimeout: season.Config.WritingTimeout,
		DrawingTimeout: season.Config.DrawingTimeout,
		OpenDeadline:   openDeadline,
	}
	if err := s.db.Create(&record).Error; err != nil {
		return err
	}
	season.DBID = record.ID
	return nil
}

func (s *Service) persistMembership(season *Season, playerID int) error {
	if s.db == nil {
		return nil
	}
	player, ok := s.store.GetPlayer(playerID)
	if !ok {
		return fmt.Errorf("player %d: %w", playerID, ErrNotFound)
	}
	if player.DBID == 0 {
		if err := s.persistPlayer(playerID); err != nil {
			return err
		}
		player, _ = s.store.GetPlayer(playerID)
	}
	if season.DBID == 0 {
		if err := s.persistSeason(season); err != nil {
			return err
		}
	}
	record := db.SeasonMembership{
		SeasonID: season.DBID,
		PlayerID: player.DBID,
		JoinedAt: memberJoinedAt(season, playerID),
	}
	return s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error
}

func (s *Service) persistGame(season *Season, game *Game) error {
	if s.db == nil {
		return nil
	}
	if game.DBID != 0 {
		return s.db.Model(&db.Game{}).Where("id = ?", game.DBID).Updates(map[string]any{
			"status": game.Status,
		}).Error
	}
	record := db.Game{
		Code:   game.Code,
		Status: game.Status,
		Roster: s.rosterString(game.Roster),
	}
	if season != nil {
		if season.DBID == 0 {
			if err := s.persistSeason(season); err != nil {
				return err
			}
		}
		seasonID := season.DBID
		record.SeasonID = &seasonID
	}
	if err := s.db.Create(&record).Error; err != nil {
		return err
	}
	game.DBID = record.ID
	for i := range game.Turns {
		if err := s.persistTurn(game, game.Turns[i].Number); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) persistTurn(game *Game, number int) error {
	if s.db == nil {
		return nil
	}
	turn := game.turnByNumber(number)
	if turn == nil {
		return fmt.Errorf("turn %d in %s: %w", number, game.ID, ErrNotFound)
	}
	if game.DBID == 0 {
		// Turn rows hang off the game row; the caller persists the game
		// first on every creation path.
		return fmt.Errorf("game %s has no database id", game.ID)
	}
	var playerID *uint
	if turn.PlayerID != 0 {
		if player, ok := s.store.GetPlayer(turn.PlayerID); ok && player.DBID != 0 {
			id := player.DBID
			playerID = &id
		}
	}
	var lastHolderID *uint
	if turn.LastHolderID != 0 {
		if player, ok := s.store.GetPlayer(turn.LastHolderID); ok && player.DBID != 0 {
			id := player.DBID
			lastHolderID = &id
		}
	}
	var previousTurnID *uint
	if turn.Number > 1 {
		if prev := game.turnByNumber(turn.Number - 1); prev != nil && prev.DBID != 0 {
			id := prev.DBID
			previousTurnID = &id
		}
	}
	fields := map[string]any{
		"status":           turn.Status,
		"player_id":        playerID,
		"last_holder_id":   lastHolderID,
		"text_content":     turn.TextContent,
		"image_url":        turn.ImageURL,
		"previous_turn_id": previousTurnID,
		"offered_at":       nullableTime(turn.OfferedAt),
		"claimed_at":       nullableTime(turn.ClaimedAt),
		"completed_at":     nullableTime(turn.CompletedAt),
		"skipped_at":       nullableTime(turn.SkippedAt),
		"claim_deadline":   nullableTime(turn.ClaimDeadline),
		"submit_deadline":  nullableTime(turn.SubmitDeadline),
	}
	if turn.DBID != 0 {
		return s.db.Model(&db.Turn{}).Where("id = ?", turn.DBID).Updates(fields).Error
	}
	record := db.Turn{
		GameID:         game.DBID,
		Number:         turn.Number,
		Type:           turn.Type,
		Status:         turn.Status,
		PlayerID:       playerID,
		LastHolderID:   lastHolderID,
		TextContent:    turn.TextContent,
		ImageURL:       turn.ImageURL,
		PreviousTurnID: previousTurnID,
		OfferedAt:      nullableTime(turn.OfferedAt),
		ClaimedAt:      nullableTime(turn.ClaimedAt),
		CompletedAt:    nullableTime(turn.CompletedAt),
		SkippedAt:      nullableTime(turn.SkippedAt),
		ClaimDeadline:  nullableTime(turn.ClaimDeadline),
		SubmitDeadline: nullableTime(turn.SubmitDeadline),
	}
	if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error; err != nil {
		return err
	}
	if record.ID == 0 {
		if err := s.db.Where("game_id = ? AND number = ?", game.DBID, turn.Number).First(&record).Error; err != nil {
			return err
		}
	}
	turn.DBID = record.ID
	return nil
}

func (s *Service) persistEvent(eventType string, refs eventRefs, payload EventPayload) {
	if s.db == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("marshal event payload failed type=%s error=%v", eventType, err)
		return
	}
	record := db.Event{
		Type:      eventType,
		Payload:   datatypes.JSON(body),
		CreatedAt: s.sched.Now(),
	}
	if refs.Season != nil && refs.Season.DBID != 0 {
		id := refs.Season.DBID
		record.SeasonID = &id
	}
	if refs.Game != nil && refs.Game.DBID != 0 {
		id := refs.Game.DBID
		record.GameID = &id
	}
	if refs.Game != nil && refs.TurnNumber != 0 {
		if turn := refs.Game.turnByNumber(refs.TurnNumber); turn != nil && turn.DBID != 0 {
			id := turn.DBID
			record.TurnID = &id
		}
	}
	if refs.PlayerID != 0 {
		if player, ok := s.store.GetPlayer(refs.PlayerID); ok && player.DBID != 0 {
			id := player.DBID
			record.PlayerID = &id
		}
	}
	if err := s.db.Create(&record).Error; err != nil {
		log.Printf("persist event failed type=%s error=%v", eventType, err)
	}
}

func memberJoinedAt(season *Season, playerID int) time.Time {
	for _, member := range season.Members {
		if member.PlayerID == playerID {
			return member.JoinedAt
		}
	}
	return time.Now().UTC()
}

// rosterString serializes an on-demand roster as the players' database
// ids, which is what restore resolves against.
func (s *Service) rosterString(roster []int) string {
	if len(roster) == 0 {
		return ""
	}
	parts := make([]string, 0, len(roster))
	for _, id := range roster {
		if player, ok := s.store.GetPlayer(id); ok && player.DBID != 0 {
			parts = append(parts, fmt.Sprintf("%d", player.DBID))
		}
	}
	return strings.Join(parts, ",")
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	value := t
	return &value
}

var errNoDatabase = errors.New("database not configured")

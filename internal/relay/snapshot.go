package relay

import "time"

// TurnInfo is the part of a turn exposed to the command surface.
type TurnInfo struct {
	ID             string     `json:"id"`
	Number         int        `json:"number"`
	Type           string     `json:"type"`
	Status         string     `json:"status"`
	PlayerID       int        `json:"player_id,omitempty"`
	TextContent    string     `json:"text_content,omitempty"`
	ImageURL       string     `json:"image_url,omitempty"`
	PreviousTurnID string     `json:"previous_turn_id,omitempty"`
	ClaimDeadline  *time.Time `json:"claim_deadline,omitempty"`
	SubmitDeadline *time.Time `json:"submit_deadline,omitempty"`
}

type GameDetail struct {
	ID       string     `json:"id"`
	Code     string     `json:"code"`
	SeasonID string     `json:"season_id,omitempty"`
	Status   string     `json:"status"`
	Turns    []TurnInfo `json:"turns"`
}

type SeasonDetail struct {
	ID      string       `json:"id"`
	Code    string       `json:"code"`
	Status  string       `json:"status"`
	Members []int        `json:"members"`
	Games   []GameDetail `json:"games"`
}

func (s *Store) SeasonSnapshot(id string) (SeasonDetail, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	season, ok := s.seasons[id]
	if !ok {
		return SeasonDetail{}, false
	}
	detail := SeasonDetail{
		ID:     season.ID,
		Code:   season.Code,
		Status: season.Status,
	}
	for _, member := range season.Members {
		detail.Members = append(detail.Members, member.PlayerID)
	}
	for _, game := range season.Games {
		detail.Games = append(detail.Games, gameDetailLocked(game))
	}
	return detail, true
}

func (s *Store) GameSnapshot(id string) (GameDetail, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	game, ok := s.games[id]
	if !ok {
		return GameDetail{}, false
	}
	return gameDetailLocked(game), true
}

func gameDetailLocked(game *Game) GameDetail {
	detail := GameDetail{
		ID:       game.ID,
		Code:     game.Code,
		SeasonID: game.SeasonID,
		Status:   game.Status,
		Turns:    make([]TurnInfo, 0, len(game.Turns)),
	}
	for i := range game.Turns {
		turn := &game.Turns[i]
		detail.Turns = append(detail.Turns, TurnInfo{
			ID:             turn.ID,
			Number:         turn.Number,
			Type:           turn.Type,
			Status:         turn.Status,
			PlayerID:       turn.PlayerID,
			TextContent:    turn.TextContent,
			ImageURL:       turn.ImageURL,
			PreviousTurnID: turn.PreviousTurnID,
			ClaimDeadline:  nullableTime(turn.ClaimDeadline),
			SubmitDeadline: nullableTime(turn.SubmitDeadline),
		})
	}
	return detail
}

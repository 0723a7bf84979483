package relay

import (
	log "github.com/sirupsen/logrus"
)

type Notification struct {
	PlayerID int    `json:"player_id"`
	ChatRef  string `json:"chat_ref"`
	GameID   string `json:"game_id,omitempty"`
	TurnID   string `json:"turn_id,omitempty"`
	Message  string `json:"message"`
}

// Notifier delivers a message to a player, best effort. Delivery failures
// are logged by the caller and never roll back the state transition that
// triggered them.
type Notifier interface {
	Notify(n Notification) error
}

type logNotifier struct{}

func (logNotifier) Notify(n Notification) error {
	log.Printf("notify player_id=%d chat_ref=%s message=%q", n.PlayerID, n.ChatRef, n.Message)
	return nil
}

func (s *Service) notifyPlayer(playerID int, gameID, turnID, message string) {
	player, ok := s.store.GetPlayer(playerID)
	if !ok {
		log.Printf("notify skipped, unknown player player_id=%d", playerID)
		return
	}
	n := Notification{
		PlayerID: player.ID,
		ChatRef:  player.ChatRef,
		GameID:   gameID,
		TurnID:   turnID,
		Message:  message,
	}
	if err := s.notifier.Notify(n); err != nil {
		log.Printf("notification failed player_id=%d error=%v", playerID, err)
	}
}

package db

import (
	"time"

	"gorm.io/datatypes"
)

type Player struct {
	ID          uint      `gorm:"primaryKey"`
	ChatRef     string    `gorm:"size:64;uniqueIndex;not null"`
	DisplayName string    `gorm:"size:64;not null"`
	Banned      bool      `gorm:"not null;default:false"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
	Memberships []SeasonMembership
	Turns       []Turn
}

type Season struct {
	ID             uint      `gorm:"primaryKey"`
	Code           string    `gorm:"size:36;uniqueIndex;not null"`
	Status         string    `gorm:"size:32;not null"`
	TurnPattern    string    `gorm:"size:128;not null"`
	MinPlayers     int       `gorm:"not null;default:3"`
	MaxPlayers     int       `gorm:"not null;default:12"`
	OpenMinutes    int       `gorm:"not null;default:2880"`
	ClaimTimeout   string    `gorm:"size:16"`
	WritingTimeout string    `gorm:"size:16"`
	DrawingTimeout string    `gorm:"size:16"`
	OpenDeadline   *time.Time
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
	Memberships    []SeasonMembership
	Games          []Game
	Events         []Event
}

type SeasonMembership struct {
	ID        uint      `gorm:"primaryKey"`
	SeasonID  uint      `gorm:"index;not null;uniqueIndex:idx_memberships_season_player"`
	PlayerID  uint      `gorm:"index;not null;uniqueIndex:idx_memberships_season_player"`
	JoinedAt  time.Time `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type Game struct {
	ID        uint      `gorm:"primaryKey"`
	SeasonID  *uint     `gorm:"index"`
	Code      string    `gorm:"size:36;uniqueIndex;not null"`
	Status    string    `gorm:"size:32;not null"`
	Roster    string    `gorm:"size:512"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
	Turns     []Turn
	Events    []Event
}

type Turn struct {
	ID             uint   `gorm:"primaryKey"`
	GameID         uint   `gorm:"index;not null;uniqueIndex:idx_turns_game_number"`
	Number         int    `gorm:"not null;uniqueIndex:idx_turns_game_number"`
	Type           string `gorm:"size:16;not null"`
	Status         string `gorm:"size:16;not null"`
	PlayerID       *uint  `gorm:"index"`
	LastHolderID   *uint
	TextContent    string `gorm:"size:2048"`
	ImageURL       string `gorm:"size:1024"`
	PreviousTurnID *uint  `gorm:"index"`
	OfferedAt      *time.Time
	ClaimedAt      *time.Time
	CompletedAt    *time.Time
	SkippedAt      *time.Time
	ClaimDeadline  *time.Time
	SubmitDeadline *time.Time
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

type Event struct {
	ID        uint           `gorm:"primaryKey"`
	SeasonID  *uint          `gorm:"index"`
	GameID    *uint          `gorm:"index"`
	TurnID    *uint          `gorm:"index"`
	PlayerID  *uint          `gorm:"index"`
	Type      string         `gorm:"size:64;not null"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"not null"`
}

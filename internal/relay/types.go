package relay

import "time"

const (
	seasonSetup      = "setup"
	seasonOpen       = "open"
	seasonActive     = "active"
	seasonCompleted  = "completed"
	seasonTerminated = "terminated"
)

const (
	gameSetup     = "setup"
	gameActive    = "active"
	gameCompleted = "completed"
	gamePaused    = "paused"
)

const (
	turnAvailable = "available"
	turnOffered   = "offered"
	turnPending   = "pending"
	turnCompleted = "completed"
	turnSkipped   = "skipped"
)

const (
	turnTypeWriting = "writing"
	turnTypeDrawing = "drawing"
)

type Player struct {
	ID      int
	DBID    uint
	ChatRef string
	Name    string
	Banned  bool
}

// SeasonConfig carries the raw timeout values as entered by the season
// creator. They are parsed (with default substitution) at the moment a
// timer is armed, not before.
type SeasonConfig struct {
	TurnPattern    []string
	MinPlayers     int
	MaxPlayers     int
	OpenMinutes    int
	ClaimTimeout   string
	WritingTimeout string
	DrawingTimeout string
}

type Member struct {
	PlayerID int
	JoinedAt time.Time
}

type Season struct {
	ID           string
	DBID         uint
	Code         string
	Status       string
	Config       SeasonConfig
	Members      []Member
	Games        []*Game
	OpenDeadline time.Time
}

type Game struct {
	ID       string
	DBID     uint
	Code     string
	SeasonID string
	Status   string
	// Roster is only set for on-demand games; season games derive theirs
	// from the season membership.
	Roster []int
	Turns  []Turn
}

type Turn struct {
	ID             string
	DBID           uint
	GameID         string
	Number         int
	Type           string
	Status         string
	PlayerID       int
	LastHolderID   int
	TextContent    string
	ImageURL       string
	PreviousTurnID string
	OfferedAt      time.Time
	ClaimedAt      time.Time
	CompletedAt    time.Time
	SkippedAt      time.Time
	ClaimDeadline  time.Time
	SubmitDeadline time.Time
}

// GameView is the unit of work handed to an update closure: the game, its
// owning season (nil for on-demand games), the roster the game draws
// players from, and every sibling game in the season (including the game
// itself) for season-wide eligibility checks.
type GameView struct {
	Game        *Game
	Season      *Season
	Roster      []Player
	SeasonGames []*Game
}

type SeasonSummary struct {
	ID      string
	Code    string
	Status  string
	Members int
	Games   int
}

type GameSummary struct {
	ID        string
	Code      string
	SeasonID  string
	Status    string
	Turns     int
	Completed int
}

func (g *Game) turnByNumber(number int) *Turn {
	for i := range g.Turns {
		if g.Turns[i].Number == number {
			return &g.Turns[i]
		}
	}
	return nil
}

func (g *Game) turnByID(turnID string) *Turn {
	for i := range g.Turns {
		if g.Turns[i].ID == turnID {
			return &g.Turns[i]
		}
	}
	return nil
}

func terminalTurnStatus(status string) bool {
	return status == turnCompleted || status == turnSkipped
}

func timeNowUTC() time.Time {
	return time.Now().UTC()
}

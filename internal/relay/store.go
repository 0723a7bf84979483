package relay

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Store holds the authoritative in-memory state for every live season, game
// and player. All reads and mutations happen under a single mutex; update
// closures run with the lock held, which is what makes a conditional status
// transition atomic.
type Store struct {
	mu           sync.Mutex
	nextSeasonID int
	nextGameID   int
	nextPlayerID int
	seasons      map[string]*Season
	games        map[string]*Game
	players      map[int]*Player
	playerRefs   map[string]int
}

func NewStore() *Store {
	return &Store{
		nextSeasonID: 1,
		nextGameID:   1,
		nextPlayerID: 1,
		seasons:      make(map[string]*Season),
		games:        make(map[string]*Game),
		players:      make(map[int]*Player),
		playerRefs:   make(map[string]int),
	}
}

// EnsurePlayer returns the player registered for the chat reference,
// creating one on first interaction. The second result reports whether the
// player was created by this call.
func (s *Store) EnsurePlayer(chatRef, name string) (Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.playerRefs[chatRef]; ok {
		player := s.players[id]
		if name != "" && player.Name != name {
			player.Name = name
		}
		return *player, false
	}
	player := &Player{
		ID:      s.nextPlayerID,
		ChatRef: chatRef,
		Name:    name,
	}
	s.nextPlayerID++
	s.players[player.ID] = player
	s.playerRefs[chatRef] = player.ID
	return *player, true
}

func (s *Store) GetPlayer(id int) (Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	player, ok := s.players[id]
	if !ok {
		return Player{}, false
	}
	return *player, true
}

func (s *Store) UpdatePlayer(id int, update func(player *Player) error) (Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	player, ok := s.players[id]
	if !ok {
		return Player{}, ErrNotFound
	}
	if err := update(player); err != nil {
		return Player{}, err
	}
	return *player, nil
}

func (s *Store) CreateSeason(code string, cfg SeasonConfig) *Season {
	s.mu.Lock()
	defer s.mu.Unlock()
	season := &Season{
		ID:     fmt.Sprintf("season-%d", s.nextSeasonID),
		Code:   code,
		Status: seasonSetup,
		Config: cfg,
	}
	s.nextSeasonID++
	s.seasons[season.ID] = season
	return season
}

func (s *Store) GetSeason(id string) (*Season, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	season, ok := s.seasons[id]
	return season, ok
}

func (s *Store) FindSeasonByCode(code string) (*Season, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, season := range s.seasons {
		if season.Code == code {
			return season, true
		}
	}
	return nil, false
}

func (s *Store) UpdateSeason(id string, update func(season *Season) error) (*Season, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	season, ok := s.seasons[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := update(season); err != nil {
		return nil, err
	}
	return season, nil
}

// AddSeasonGame allocates a game id under the store lock and attaches the
// built game to the season.
func (s *Store) AddSeasonGame(seasonID string, build func(id string) *Game) (*Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	season, ok := s.seasons[seasonID]
	if !ok {
		return nil, ErrNotFound
	}
	game := build(fmt.Sprintf("game-%d", s.nextGameID))
	s.nextGameID++
	game.SeasonID = season.ID
	season.Games = append(season.Games, game)
	s.games[game.ID] = game
	return game, nil
}

// AddGame attaches a standalone (on-demand) game.
func (s *Store) AddGame(build func(id string) *Game) *Game {
	s.mu.Lock()
	defer s.mu.Unlock()
	game := build(fmt.Sprintf("game-%d", s.nextGameID))
	s.nextGameID++
	s.games[game.ID] = game
	return game
}

func (s *Store) GetGame(id string) (*Game, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	game, ok := s.games[id]
	return game, ok
}

// UpdateGame runs the closure against the game and its season context with
// the store lock held. Status checks inside the closure are therefore
// atomic with respect to every other turn mutation.
func (s *Store) UpdateGame(id string, update func(v *GameView) error) (*Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	game, ok := s.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := update(s.gameViewLocked(game)); err != nil {
		return nil, err
	}
	return game, nil
}

func (s *Store) GameView(id string) (*GameView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	game, ok := s.games[id]
	if !ok {
		return nil, false
	}
	return s.gameViewLocked(game), true
}

func (s *Store) gameViewLocked(game *Game) *GameView {
	view := &GameView{Game: game}
	if game.SeasonID != "" {
		season := s.seasons[game.SeasonID]
		view.Season = season
		if season != nil {
			view.SeasonGames = season.Games
			for _, member := range season.Members {
				if player, ok := s.players[member.PlayerID]; ok {
					view.Roster = append(view.Roster, *player)
				}
			}
			return view
		}
	}
	view.SeasonGames = []*Game{game}
	for _, playerID := range game.Roster {
		if player, ok := s.players[playerID]; ok {
			view.Roster = append(view.Roster, *player)
		}
	}
	return view
}

func (s *Store) ListSeasonSummaries() []SeasonSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]SeasonSummary, 0, len(s.seasons))
	for _, season := range s.seasons {
		list = append(list, SeasonSummary{
			ID:      season.ID,
			Code:    season.Code,
			Status:  season.Status,
			Members: len(season.Members),
			Games:   len(season.Games),
		})
	}
	sort.Slice(list, func(i, j int) bool {
		return storeSortKey(list[i].ID) < storeSortKey(list[j].ID)
	})
	return list
}

func (s *Store) ListGameSummaries() []GameSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]GameSummary, 0, len(s.games))
	for _, game := range s.games {
		completed := 0
		for i := range game.Turns {
			if terminalTurnStatus(game.Turns[i].Status) {
				completed++
			}
		}
		list = append(list, GameSummary{
			ID:        game.ID,
			Code:      game.Code,
			SeasonID:  game.SeasonID,
			Status:    game.Status,
			Turns:     len(game.Turns),
			Completed: completed,
		})
	}
	sort.Slice(list, func(i, j int) bool {
		return storeSortKey(list[i].ID) < storeSortKey(list[j].ID)
	})
	return list
}

// RestorePlayer re-registers a player loaded from the database and bumps
// the id counter past it.
func (s *Store) RestorePlayer(player *Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[player.ID] = player
	s.playerRefs[player.ChatRef] = player.ID
	if player.ID >= s.nextPlayerID {
		s.nextPlayerID = player.ID + 1
	}
}

// RestoreSeason re-registers a season (and its games) loaded from the
// database and bumps the id counters past everything it contains.
func (s *Store) RestoreSeason(season *Season) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seasons[season.ID]; ok {
		return fmt.Errorf("season %s already running", season.ID)
	}
	s.seasons[season.ID] = season
	if id := storeSortKey(season.ID); id >= s.nextSeasonID {
		s.nextSeasonID = id + 1
	}
	for _, game := range season.Games {
		s.games[game.ID] = game
		if id := storeSortKey(game.ID); id >= s.nextGameID {
			s.nextGameID = id + 1
		}
	}
	return nil
}

// RestoreGame re-registers a standalone game loaded from the database.
func (s *Store) RestoreGame(game *Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[game.ID]; ok {
		return fmt.Errorf("game %s already running", game.ID)
	}
	s.games[game.ID] = game
	if id := storeSortKey(game.ID); id >= s.nextGameID {
		s.nextGameID = id + 1
	}
	return nil
}

func storeSortKey(id string) int {
	parts := strings.Split(id, "-")
	if len(parts) < 2 {
		return 0
	}
	value, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return 0
	}
	return value
}

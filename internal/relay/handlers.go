package relay

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	log "github.com/sirupsen/logrus"

	"sketch-relay/internal/web"
)

// Handler exposes the thin command-surface adapter the external chat bot
// calls into, plus the ops status page. The core itself owns no transport
// semantics; these handlers only decode, delegate and encode.
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/", s.handleStatusPage)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Post("/api/players", s.handleRegisterPlayer)
	r.Post("/api/players/{playerID}/ban", s.handleBanPlayer(true))
	r.Post("/api/players/{playerID}/unban", s.handleBanPlayer(false))

	r.Post("/api/seasons", s.handleCreateSeason)
	r.Get("/api/seasons/{seasonID}", s.handleSeasonStatus)
	r.Post("/api/seasons/{seasonID}/open", s.handleSeasonAction((*Service).OpenSeason))
	r.Post("/api/seasons/{seasonID}/activate", s.handleSeasonAction((*Service).ActivateSeason))
	r.Post("/api/seasons/{seasonID}/terminate", s.handleSeasonAction((*Service).TerminateSeason))
	r.Post("/api/seasons/{seasonID}/join", s.handleJoinSeason)

	r.Post("/api/games", s.handleCreateGame)
	r.Get("/api/games/{gameID}", s.handleGameStatus)
	r.Post("/api/games/{gameID}/offer", s.handleOffer)
	r.Post("/api/games/{gameID}/claim", s.handleClaim)
	r.Post("/api/games/{gameID}/submit", s.handleSubmit)
	r.Post("/api/games/{gameID}/skip", s.handleSkip)
	r.Post("/api/games/{gameID}/pause", s.handleGameAction((*Service).PauseGame))
	r.Post("/api/games/{gameID}/resume", s.handleGameAction((*Service).ResumeGame))
	return r
}

func (s *Service) handleStatusPage(w http.ResponseWriter, r *http.Request) {
	seasons := s.store.ListSeasonSummaries()
	games := s.store.ListGameSummaries()
	rows := make([]web.SeasonRow, 0, len(seasons))
	for _, season := range seasons {
		rows = append(rows, web.SeasonRow{
			ID:      season.ID,
			Code:    season.Code,
			Status:  season.Status,
			Members: season.Members,
			Games:   season.Games,
		})
	}
	gameRows := make([]web.GameRow, 0, len(games))
	for _, game := range games {
		gameRows = append(gameRows, web.GameRow{
			ID:       game.ID,
			SeasonID: game.SeasonID,
			Status:   game.Status,
			Turns:    game.Turns,
			Resolved: game.Completed,
		})
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := web.Status(rows, gameRows).Render(r.Context(), w); err != nil {
		log.Printf("render status page failed error=%v", err)
	}
}

func (s *Service) handleRegisterPlayer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChatRef string `json:"chat_ref"`
		Name    string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	player, err := s.RegisterPlayer(req.ChatRef, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"player_id": player.ID,
		"chat_ref":  player.ChatRef,
		"name":      player.Name,
		"banned":    player.Banned,
	})
}

func (s *Service) handleBanPlayer(banned bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID, ok := intParam(w, r, "playerID")
		if !ok {
			return
		}
		if err := s.SetPlayerBanned(playerID, banned); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"player_id": playerID, "banned": banned})
	}
}

func (s *Service) handleCreateSeason(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TurnPattern    []string `json:"turn_pattern"`
		MinPlayers     int      `json:"min_players"`
		MaxPlayers     int      `json:"max_players"`
		OpenMinutes    int      `json:"open_minutes"`
		ClaimTimeout   string   `json:"claim_timeout_minutes"`
		WritingTimeout string   `json:"writing_timeout_minutes"`
		DrawingTimeout string   `json:"drawing_timeout_minutes"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	season, err := s.CreateSeason(SeasonConfig{
		TurnPattern:    req.TurnPattern,
		MinPlayers:     req.MinPlayers,
		MaxPlayers:     req.MaxPlayers,
		OpenMinutes:    req.OpenMinutes,
		ClaimTimeout:   req.ClaimTimeout,
		WritingTimeout: req.WritingTimeout,
		DrawingTimeout: req.DrawingTimeout,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"season_id": season.ID, "code": season.Code})
}

func (s *Service) handleSeasonAction(action func(*Service, string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		seasonID := chi.URLParam(r, "seasonID")
		if err := action(s, seasonID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"season_id": seasonID})
	}
}

func (s *Service) handleJoinSeason(w http.ResponseWriter, r *http.Request) {
	seasonID := chi.URLParam(r, "seasonID")
	var req struct {
		PlayerID int `json:"player_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.JoinSeason(seasonID, req.PlayerID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"season_id": seasonID, "player_id": req.PlayerID})
}

func (s *Service) handleSeasonStatus(w http.ResponseWriter, r *http.Request) {
	detail, ok := s.store.SeasonSnapshot(chi.URLParam(r, "seasonID"))
	if !ok {
		writeError(w, ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Service) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerIDs []int `json:"player_ids"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	game, err := s.CreateGame(req.PlayerIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"game_id": game.ID, "code": game.Code})
}

func (s *Service) handleGameStatus(w http.ResponseWriter, r *http.Request) {
	detail, ok := s.store.GameSnapshot(chi.URLParam(r, "gameID"))
	if !ok {
		writeError(w, ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Service) handleOffer(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	offered, err := s.OfferNextTurn(gameID, "command")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"game_id": gameID, "offered": offered})
}

func (s *Service) handleClaim(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	var req struct {
		TurnNumber int `json:"turn_number"`
		PlayerID   int `json:"player_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.ClaimTurn(gameID, req.TurnNumber, req.PlayerID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"game_id": gameID, "turn_number": req.TurnNumber})
}

func (s *Service) handleSubmit(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	var req struct {
		TurnNumber  int    `json:"turn_number"`
		PlayerID    int    `json:"player_id"`
		TextContent string `json:"text_content"`
		ImageURL    string `json:"image_url"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.SubmitTurn(gameID, req.TurnNumber, req.PlayerID, req.TextContent, req.ImageURL); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"game_id": gameID, "turn_number": req.TurnNumber})
}

func (s *Service) handleSkip(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	var req struct {
		TurnNumber int `json:"turn_number"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.SkipTurn(gameID, req.TurnNumber); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"game_id": gameID, "turn_number": req.TurnNumber})
}

func (s *Service) handleGameAction(action func(*Service, string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID := chi.URLParam(r, "gameID")
		if err := action(s, gameID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"game_id": gameID})
	}
}

func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("encode response failed error=%v", err)
	}
}

// writeError maps the error taxonomy onto HTTP statuses for the command
// surface: missing entities are 404, losing a state race is 409, bad
// content is 422, anything else is a 400.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	var invalidTransitionErr *InvalidTransitionError
	var invalidContentErr *InvalidContentError
	switch {
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.As(err, &invalidTransitionErr):
		status = http.StatusConflict
	case errors.As(err, &invalidContentErr):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, ErrNoEligiblePlayers):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

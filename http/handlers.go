package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"stuffhappens/auth"
	"stuffhappens/game"
	"stuffhappens/store"
)

type Handlers struct {
	authService *auth.Service
	engine      *game.Engine
	store       store.Store
}

func NewHandlers(authService *auth.Service, engine *game.Engine, store store.Store) *Handlers {
	return &Handlers{
		authService: authService,
		engine:      engine,
		store:       store,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to write JSON response: %v", err)
	}
}

// writeGameError maps engine errors onto the HTTP taxonomy. Anything not
// recognized is a storage or invariant failure: logged in full, reported
// generically.
func writeGameError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, game.ErrGameNotFound):
		status = http.StatusNotFound
	case errors.Is(err, game.ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, game.ErrAlreadyAnswered):
		status = http.StatusConflict
	case errors.Is(err, game.ErrGameEnded),
		errors.Is(err, game.ErrWrongRound),
		errors.Is(err, game.ErrTypeMismatch):
		status = http.StatusBadRequest
	default:
		log.Printf("Game operation failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// Auth handlers

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if _, err := h.authService.Register(req.Username, req.Password); err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidUsername),
			errors.Is(err, auth.ErrInvalidPassword),
			errors.Is(err, auth.ErrUserExists):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			log.Printf("Register error: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "registration failed"})
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"message": "user registered successfully"})
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	user, sessionID, err := h.authService.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		} else {
			log.Printf("Login error: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "login failed"})
		}
		return
	}

	h.authService.GetSessionManager().SetSessionCookie(w, sessionID)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"userId":   user.ID,
		"username": user.Username,
	})
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID := auth.GetSessionFromRequest(r)
	if sessionID != "" {
		h.authService.Logout(sessionID)
		h.authService.GetSessionManager().ClearSessionCookie(w)
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out successfully"})
}

func (h *Handlers) Session(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	user, err := h.store.GetUserByID(userID)
	if err != nil {
		log.Printf("Session lookup error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"userId":   user.ID,
		"username": user.Username,
	})
}

// Full-game handlers

func (h *Handlers) CreateGame(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	g, err := h.engine.CreateGame(userID, false)
	if err != nil {
		writeGameError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, g.JSON(true))
}

func (h *Handlers) BeginRound(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	gameID, round, ok := parseRoundVars(w, r)
	if !ok {
		return
	}

	result, err := h.engine.BeginRound(gameID, round, false, userID)
	if err != nil {
		writeGameError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) VerifyAnswer(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	gameID, round, ok := parseRoundVars(w, r)
	if !ok {
		return
	}

	cardIDs, ok := parseCardIDs(w, r)
	if !ok {
		return
	}

	result, err := h.engine.VerifyAnswer(gameID, round, cardIDs, false, userID)
	if err != nil {
		writeGameError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	games, err := h.engine.History(userID)
	if err != nil {
		writeGameError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"history": games})
}

// Demo handlers: anonymous, single-round games

func (h *Handlers) CreateDemoGame(w http.ResponseWriter, r *http.Request) {
	g, err := h.engine.CreateGame(0, true)
	if err != nil {
		writeGameError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, g.JSON(true))
}

func (h *Handlers) DemoBeginRound(w http.ResponseWriter, r *http.Request) {
	gameID, round, ok := parseRoundVars(w, r)
	if !ok {
		return
	}

	result, err := h.engine.BeginRound(gameID, round, true, 0)
	if err != nil {
		writeGameError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) DemoVerifyAnswer(w http.ResponseWriter, r *http.Request) {
	gameID, round, ok := parseRoundVars(w, r)
	if !ok {
		return
	}

	cardIDs, ok := parseCardIDs(w, r)
	if !ok {
		return
	}

	result, err := h.engine.VerifyAnswer(gameID, round, cardIDs, true, 0)
	if err != nil {
		writeGameError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Request parsing helpers

func parseRoundVars(w http.ResponseWriter, r *http.Request) (int64, int, bool) {
	vars := mux.Vars(r)

	gameID, err := strconv.ParseInt(vars["gameId"], 10, 64)
	if err != nil || gameID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid game id"})
		return 0, 0, false
	}

	round, err := strconv.Atoi(vars["round"])
	if err != nil || round < 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid round number"})
		return 0, 0, false
	}

	return gameID, round, true
}

// parseCardIDs reads the submitted ordering. An absent or empty array is
// valid input: it means the client timed out without an answer, which the
// engine scores as a wrong guess.
func parseCardIDs(w http.ResponseWriter, r *http.Request) ([]int64, bool) {
	var req struct {
		CardIDs []int64 `json:"cardsIds"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return nil, false
	}

	for _, id := range req.CardIDs {
		if id <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "card ids must be positive integers"})
			return nil, false
		}
	}

	return req.CardIDs, true
}

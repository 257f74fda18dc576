package game

import (
	"database/sql"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"stuffhappens/store"
)

// Engine holds the round-resolution rules. It keeps no game state of its
// own: every operation reloads the aggregate from the store and persists the
// outcome before returning.
type Engine struct {
	store           store.Store
	maxResponseTime time.Duration
	now             func() time.Time
}

func NewEngine(store store.Store, maxResponseTime time.Duration) *Engine {
	return &Engine{
		store:           store,
		maxResponseTime: maxResponseTime,
		now:             time.Now,
	}
}

func (e *Engine) loadGame(gameID int64) (*Game, error) {
	if gameID <= 0 {
		return nil, ErrGameNotFound
	}

	row, err := e.store.GetGame(gameID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrGameNotFound
	}

	records, err := e.store.GetGameRecords(gameID)
	if err != nil {
		return nil, err
	}

	return gameFromRow(row, records), nil
}

// authorize checks that the caller may act on the game: demo endpoints only
// accept demo games and need no identity, full-game endpoints require the
// owner. It never mutates state.
func (e *Engine) authorize(g *Game, isDemo bool, callerID int64) error {
	if g.IsDemo != isDemo {
		return ErrTypeMismatch
	}
	if !isDemo && (callerID <= 0 || g.OwnerID != callerID) {
		return ErrNotOwner
	}
	return nil
}

// CreateGame starts a game with a base hand of 3 random catalog cards,
// recorded at round 0 as already guessed. ownerID is ignored for demo games.
func (e *Engine) CreateGame(ownerID int64, isDemo bool) (*Game, error) {
	cards, err := e.store.GetCards()
	if err != nil {
		return nil, err
	}
	if len(cards) < BaseHandSize {
		return nil, fmt.Errorf("%w: have %d cards", ErrCatalogTooSmall, len(cards))
	}

	owner := sql.NullInt64{}
	if !isDemo {
		owner = sql.NullInt64{Int64: ownerID, Valid: true}
	}

	createdAt := e.now()
	gameID, err := e.store.CreateGame(owner, createdAt, isDemo, StartingLives)
	if err != nil {
		return nil, err
	}

	guessed := sql.NullBool{Bool: true, Valid: true}
	for _, idx := range rand.Perm(len(cards))[:BaseHandSize] {
		if _, err := e.store.CreateGameRecord(gameID, cards[idx].ID, 0, guessed, &createdAt, &createdAt); err != nil {
			return nil, err
		}
	}

	return e.loadGame(gameID)
}

// BeginRound draws a fresh card for the next round. The requested round must
// be exactly the current round plus one; out-of-order requests are rejected
// rather than corrected. The returned card omits its misery index.
func (e *Engine) BeginRound(gameID int64, round int, isDemo bool, callerID int64) (*BeginRoundResult, error) {
	g, err := e.loadGame(gameID)
	if err != nil {
		return nil, err
	}
	if err := e.authorize(g, isDemo, callerID); err != nil {
		return nil, err
	}
	if g.IsEnded {
		return nil, ErrGameEnded
	}
	if round != g.RoundNum+1 {
		return nil, fmt.Errorf("%w: in round %d, requested %d", ErrWrongRound, g.RoundNum, round)
	}

	cards, err := e.store.GetCards()
	if err != nil {
		return nil, err
	}
	used := g.UsedCardIDs()
	available := make([]*store.Card, 0, len(cards))
	for _, c := range cards {
		if !used[c.ID] {
			available = append(available, c)
		}
	}
	if len(available) == 0 {
		// The round caps make this unreachable with a full catalog.
		return nil, fmt.Errorf("%w: game %d", ErrNoCardsLeft, gameID)
	}

	drawn := available[rand.IntN(len(available))]
	requestedAt := e.now()
	if _, err := e.store.BeginRound(gameID, drawn.ID, round, requestedAt); err != nil {
		return nil, err
	}
	g.RoundNum = round

	return &BeginRoundResult{
		Game:     g.JSON(false),
		NextCard: cardFromRow(drawn).Public(),
	}, nil
}

// VerifyAnswer resolves the current round. The submission is correct only if
// it reproduces the reference ordering exactly; an empty submission or one
// arriving after the response window costs a life like any wrong answer.
// Each round resolves at most once: a second verify is rejected without
// touching lives or records.
func (e *Engine) VerifyAnswer(gameID int64, round int, cardIDs []int64, isDemo bool, callerID int64) (*VerifyResult, error) {
	respondedAt := e.now()

	g, err := e.loadGame(gameID)
	if err != nil {
		return nil, err
	}
	if err := e.authorize(g, isDemo, callerID); err != nil {
		return nil, err
	}
	if g.IsEnded {
		return nil, ErrGameEnded
	}
	if round != g.RoundNum {
		return nil, fmt.Errorf("%w: in round %d, got answer for %d", ErrWrongRound, g.RoundNum, round)
	}

	record := g.RecordForRound(round)
	if record == nil {
		return nil, fmt.Errorf("%w: game %d round %d", ErrMissingRecord, gameID, round)
	}
	if record.RespondedAt != nil {
		return nil, ErrAlreadyAnswered
	}

	timedOut := record.RequestedAt != nil && respondedAt.Sub(*record.RequestedAt) > e.maxResponseTime
	correct := false
	if !timedOut && len(cardIDs) > 0 {
		correct = equalIDs(cardIDs, g.ReferenceOrder())
	}

	if correct {
		record.WasGuessed = OutcomeCorrect
	} else {
		record.WasGuessed = OutcomeIncorrect
		g.LivesRemaining--
	}
	record.TimedOut = &timedOut
	record.RespondedAt = &respondedAt
	g.IsEnded = decideEnding(g)

	resolved, err := e.store.ResolveRound(record.ID, correct, timedOut, respondedAt, g.ID, g.RoundNum, g.IsEnded, g.LivesRemaining)
	if err != nil {
		return nil, err
	}
	if !resolved {
		// Lost the race against a concurrent verify; nothing was written.
		return nil, ErrAlreadyAnswered
	}

	result := &VerifyResult{
		GameRecord: &RecordJSON{
			Round:      record.Round,
			WasGuessed: record.WasGuessed,
		},
		IsEnded:        g.IsEnded,
		LivesRemaining: g.LivesRemaining,
	}
	// The card, misery index included, is revealed only on a correct guess.
	if correct {
		result.GameRecord.Card = record.Card
	}

	// Demo games are throwaway: once resolved, their rows are deleted. A
	// failed cleanup is logged and otherwise ignored.
	if g.IsDemo && g.IsEnded {
		if err := e.store.DeleteGame(g.ID); err != nil {
			log.Printf("Failed to delete demo game %d: %v", g.ID, err)
		}
	}

	return result, nil
}

// decideEnding is the single place the ending rules live. Demo games end
// once their only round has resolved. Full games end when lives run out or
// the hand reaches 6 correct cards (base hand included).
func decideEnding(g *Game) bool {
	if g.IsEnded {
		return true
	}
	if g.IsDemo {
		return g.RoundNum >= DemoRounds
	}
	return g.LivesRemaining <= 0 || g.CorrectCount() >= TargetCorrect
}

// History returns the caller's ended games with records and cards resolved.
func (e *Engine) History(userID int64) ([]*GameJSON, error) {
	rows, err := e.store.GetGamesByUser(userID, true)
	if err != nil {
		return nil, err
	}

	games := make([]*GameJSON, 0, len(rows))
	for _, row := range rows {
		records, err := e.store.GetGameRecords(row.ID)
		if err != nil {
			return nil, err
		}
		games = append(games, gameFromRow(row, records).JSON(true))
	}
	return games, nil
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

package game

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"stuffhappens/store"
)

// fakeStore is an in-memory store.Store for engine tests.
type fakeStore struct {
	cards   []*store.Card
	users   map[int64]*store.User
	games   map[int64]*store.Game
	records map[int64]*store.GameRecord
	nextID  int64
}

func newFakeStore(cardCount int) *fakeStore {
	fs := &fakeStore{
		users:   make(map[int64]*store.User),
		games:   make(map[int64]*store.Game),
		records: make(map[int64]*store.GameRecord),
	}
	for i := 0; i < cardCount; i++ {
		fs.cards = append(fs.cards, &store.Card{
			ID:          int64(i + 1),
			Name:        fmt.Sprintf("card %d", i+1),
			ImagePath:   fmt.Sprintf("card%d.jpg", i+1),
			MiseryIndex: float64(i+1) * 2.5,
		})
	}
	return fs
}

func (fs *fakeStore) id() int64 {
	fs.nextID++
	return fs.nextID
}

func (fs *fakeStore) CreateUser(username, passwordHash string) (int64, error) {
	id := fs.id()
	fs.users[id] = &store.User{ID: id, Username: username, PasswordHash: passwordHash}
	return id, nil
}

func (fs *fakeStore) GetUserByUsername(username string) (*store.User, error) {
	for _, u := range fs.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, nil
}

func (fs *fakeStore) GetUserByID(userID int64) (*store.User, error) {
	return fs.users[userID], nil
}

func (fs *fakeStore) GetCards() ([]*store.Card, error) {
	return fs.cards, nil
}

func (fs *fakeStore) GetCardByID(cardID int64) (*store.Card, error) {
	for _, c := range fs.cards {
		if c.ID == cardID {
			return c, nil
		}
	}
	return nil, nil
}

func (fs *fakeStore) CreateGame(ownerID sql.NullInt64, createdAt time.Time, isDemo bool, lives int) (int64, error) {
	id := fs.id()
	fs.games[id] = &store.Game{
		ID:             id,
		OwnerID:        ownerID,
		CreatedAt:      createdAt,
		IsDemo:         isDemo,
		LivesRemaining: lives,
	}
	return id, nil
}

func (fs *fakeStore) GetGame(gameID int64) (*store.Game, error) {
	g, ok := fs.games[gameID]
	if !ok {
		return nil, nil
	}
	copied := *g
	return &copied, nil
}

func (fs *fakeStore) UpdateGame(gameID int64, roundNum int, isEnded bool, livesRemaining int) error {
	g, ok := fs.games[gameID]
	if !ok {
		return fmt.Errorf("no game %d", gameID)
	}
	g.RoundNum = roundNum
	g.IsEnded = isEnded
	g.LivesRemaining = livesRemaining
	return nil
}

func (fs *fakeStore) GetGamesByUser(userID int64, ended bool) ([]*store.Game, error) {
	var games []*store.Game
	for _, g := range fs.games {
		if g.OwnerID.Valid && g.OwnerID.Int64 == userID && g.IsEnded == ended {
			copied := *g
			games = append(games, &copied)
		}
	}
	return games, nil
}

func (fs *fakeStore) DeleteGame(gameID int64) error {
	delete(fs.games, gameID)
	for id, r := range fs.records {
		if r.GameID == gameID {
			delete(fs.records, id)
		}
	}
	return nil
}

func (fs *fakeStore) CreateGameRecord(gameID, cardID int64, round int, wasGuessed sql.NullBool, requestedAt, respondedAt *time.Time) (int64, error) {
	card, _ := fs.GetCardByID(cardID)
	if card == nil {
		return 0, fmt.Errorf("no card %d", cardID)
	}
	id := fs.id()
	fs.records[id] = &store.GameRecord{
		ID:          id,
		GameID:      gameID,
		Round:       round,
		Card:        card,
		WasGuessed:  wasGuessed,
		RequestedAt: requestedAt,
		RespondedAt: respondedAt,
	}
	return id, nil
}

func (fs *fakeStore) GetGameRecords(gameID int64) ([]*store.GameRecord, error) {
	var records []*store.GameRecord
	for _, r := range fs.records {
		if r.GameID == gameID {
			copied := *r
			records = append(records, &copied)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Round != records[j].Round {
			return records[i].Round < records[j].Round
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}

func (fs *fakeStore) BeginRound(gameID, cardID int64, round int, requestedAt time.Time) (int64, error) {
	recordID, err := fs.CreateGameRecord(gameID, cardID, round, sql.NullBool{}, &requestedAt, nil)
	if err != nil {
		return 0, err
	}
	fs.games[gameID].RoundNum = round
	return recordID, nil
}

func (fs *fakeStore) ResolveRound(recordID int64, wasGuessed, timedOut bool, respondedAt time.Time, gameID int64, roundNum int, isEnded bool, livesRemaining int) (bool, error) {
	r, ok := fs.records[recordID]
	if !ok {
		return false, fmt.Errorf("no record %d", recordID)
	}
	if r.RespondedAt != nil {
		return false, nil
	}
	r.WasGuessed = sql.NullBool{Bool: wasGuessed, Valid: true}
	r.TimedOut = sql.NullBool{Bool: timedOut, Valid: true}
	r.RespondedAt = &respondedAt
	return true, fs.UpdateGame(gameID, roundNum, isEnded, livesRemaining)
}

func (fs *fakeStore) Close() error { return nil }

// Helpers

func newTestEngine(t *testing.T, cardCount int) (*Engine, *fakeStore) {
	t.Helper()
	fs := newFakeStore(cardCount)
	return NewEngine(fs, 30*time.Second), fs
}

func mustCreateGame(t *testing.T, e *Engine, ownerID int64, isDemo bool) *Game {
	t.Helper()
	g, err := e.CreateGame(ownerID, isDemo)
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	return g
}

// correctAnswer reloads the aggregate and returns the reference ordering the
// player would have to submit for the current round.
func correctAnswer(t *testing.T, e *Engine, gameID int64) []int64 {
	t.Helper()
	g, err := e.loadGame(gameID)
	if err != nil {
		t.Fatalf("loadGame failed: %v", err)
	}
	return g.ReferenceOrder()
}

func reversed(ids []int64) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[len(ids)-1-i] = id
	}
	return out
}

// Tests

func TestCreateGameSeedsBaseHand(t *testing.T) {
	e, _ := newTestEngine(t, 10)
	g := mustCreateGame(t, e, 1, false)

	if g.RoundNum != 0 {
		t.Errorf("expected roundNum 0, got %d", g.RoundNum)
	}
	if g.IsEnded {
		t.Error("new game must not be ended")
	}
	if g.LivesRemaining != StartingLives {
		t.Errorf("expected %d lives, got %d", StartingLives, g.LivesRemaining)
	}
	if len(g.Records) != BaseHandSize {
		t.Fatalf("expected %d base records, got %d", BaseHandSize, len(g.Records))
	}

	seen := make(map[int64]bool)
	for _, r := range g.Records {
		if r.Round != 0 {
			t.Errorf("base record in round %d", r.Round)
		}
		if r.WasGuessed != OutcomeCorrect {
			t.Error("base records must be created as correct")
		}
		if r.Card == nil || r.Card.MiseryIndex == 0 {
			t.Error("base record card must carry its misery index")
		}
		if seen[r.Card.ID] {
			t.Errorf("duplicate card %d in base hand", r.Card.ID)
		}
		seen[r.Card.ID] = true
	}
}

func TestCreateGameFailsOnTinyCatalog(t *testing.T) {
	e, _ := newTestEngine(t, 2)
	if _, err := e.CreateGame(1, false); !errors.Is(err, ErrCatalogTooSmall) {
		t.Fatalf("expected ErrCatalogTooSmall, got %v", err)
	}
}

func TestBeginRoundDrawsUnusedCard(t *testing.T) {
	e, _ := newTestEngine(t, 10)
	g := mustCreateGame(t, e, 1, false)

	result, err := e.BeginRound(g.ID, 1, false, 1)
	if err != nil {
		t.Fatalf("BeginRound failed: %v", err)
	}
	if result.Game.RoundNum != 1 {
		t.Errorf("expected roundNum 1, got %d", result.Game.RoundNum)
	}
	if len(result.Game.Records) != 0 {
		t.Error("begin-round response must not include records")
	}
	if result.NextCard == nil {
		t.Fatal("expected a next card")
	}
	for _, r := range g.Records {
		if r.Card.ID == result.NextCard.ID {
			t.Errorf("drew card %d already in the base hand", r.Card.ID)
		}
	}

	reloaded, err := e.loadGame(g.ID)
	if err != nil {
		t.Fatalf("loadGame failed: %v", err)
	}
	record := reloaded.RecordForRound(1)
	if record == nil {
		t.Fatal("expected a record for round 1")
	}
	if record.WasGuessed != OutcomeUnresolved {
		t.Error("fresh round record must be unresolved")
	}
	if record.RequestedAt == nil {
		t.Error("fresh round record must have requestedAt set")
	}
	if record.RespondedAt != nil {
		t.Error("fresh round record must not have respondedAt set")
	}
}

func TestBeginRoundRejectsOutOfSequence(t *testing.T) {
	e, _ := newTestEngine(t, 10)
	g := mustCreateGame(t, e, 1, false)

	if _, err := e.BeginRound(g.ID, 2, false, 1); !errors.Is(err, ErrWrongRound) {
		t.Fatalf("expected ErrWrongRound for skipping ahead, got %v", err)
	}

	if _, err := e.BeginRound(g.ID, 1, false, 1); err != nil {
		t.Fatalf("BeginRound failed: %v", err)
	}
	if _, err := e.BeginRound(g.ID, 1, false, 1); !errors.Is(err, ErrWrongRound) {
		t.Fatalf("expected ErrWrongRound for repeating a round, got %v", err)
	}
}

func TestVerifyCorrectAnswer(t *testing.T) {
	e, _ := newTestEngine(t, 10)
	g := mustCreateGame(t, e, 1, false)
	if _, err := e.BeginRound(g.ID, 1, false, 1); err != nil {
		t.Fatalf("BeginRound failed: %v", err)
	}

	answer := correctAnswer(t, e, g.ID)
	if len(answer) != BaseHandSize+1 {
		t.Fatalf("expected %d eligible cards, got %d", BaseHandSize+1, len(answer))
	}

	result, err := e.VerifyAnswer(g.ID, 1, answer, false, 1)
	if err != nil {
		t.Fatalf("VerifyAnswer failed: %v", err)
	}
	if result.GameRecord.WasGuessed != OutcomeCorrect {
		t.Error("expected a correct outcome")
	}
	if result.GameRecord.Card == nil {
		t.Fatal("correct guesses must reveal the card")
	}
	if result.GameRecord.Card.MiseryIndex == 0 {
		t.Error("revealed card must include its misery index")
	}
	if result.LivesRemaining != StartingLives {
		t.Errorf("correct guess must not cost a life, got %d", result.LivesRemaining)
	}
	if result.IsEnded {
		t.Error("game must continue after 4 of 6 cards")
	}
}

func TestVerifyIncorrectAnswerConcealsCard(t *testing.T) {
	e, _ := newTestEngine(t, 10)
	g := mustCreateGame(t, e, 1, false)
	if _, err := e.BeginRound(g.ID, 1, false, 1); err != nil {
		t.Fatalf("BeginRound failed: %v", err)
	}

	result, err := e.VerifyAnswer(g.ID, 1, reversed(correctAnswer(t, e, g.ID)), false, 1)
	if err != nil {
		t.Fatalf("VerifyAnswer failed: %v", err)
	}
	if result.GameRecord.WasGuessed != OutcomeIncorrect {
		t.Error("expected an incorrect outcome")
	}
	if result.GameRecord.Card != nil {
		t.Error("wrong guesses must not reveal the card")
	}
	if result.LivesRemaining != StartingLives-1 {
		t.Errorf("expected %d lives, got %d", StartingLives-1, result.LivesRemaining)
	}
	if result.IsEnded {
		t.Error("game must not end after a single lost life")
	}
}

func TestVerifyEmptySubmissionCostsLife(t *testing.T) {
	e, _ := newTestEngine(t, 10)
	g := mustCreateGame(t, e, 1, false)
	if _, err := e.BeginRound(g.ID, 1, false, 1); err != nil {
		t.Fatalf("BeginRound failed: %v", err)
	}

	result, err := e.VerifyAnswer(g.ID, 1, nil, false, 1)
	if err != nil {
		t.Fatalf("VerifyAnswer failed: %v", err)
	}
	if result.GameRecord.WasGuessed != OutcomeIncorrect {
		t.Error("empty submission must score as incorrect")
	}
	if result.LivesRemaining != StartingLives-1 {
		t.Errorf("expected %d lives, got %d", StartingLives-1, result.LivesRemaining)
	}

	reloaded, err := e.loadGame(g.ID)
	if err != nil {
		t.Fatalf("loadGame failed: %v", err)
	}
	record := reloaded.RecordForRound(1)
	if record.TimedOut == nil || *record.TimedOut {
		t.Error("an in-window empty submission is not a timeout")
	}
}

func TestVerifyAfterWindowIsTimeout(t *testing.T) {
	e, _ := newTestEngine(t, 10)
	base := time.Now()
	e.now = func() time.Time { return base }

	g := mustCreateGame(t, e, 1, false)
	if _, err := e.BeginRound(g.ID, 1, false, 1); err != nil {
		t.Fatalf("BeginRound failed: %v", err)
	}
	answer := correctAnswer(t, e, g.ID)

	e.now = func() time.Time { return base.Add(31 * time.Second) }
	result, err := e.VerifyAnswer(g.ID, 1, answer, false, 1)
	if err != nil {
		t.Fatalf("VerifyAnswer failed: %v", err)
	}
	// A late answer loses even when the ordering is right.
	if result.GameRecord.WasGuessed != OutcomeIncorrect {
		t.Error("late answers must not count as correct")
	}
	if result.LivesRemaining != StartingLives-1 {
		t.Errorf("expected %d lives after timeout, got %d", StartingLives-1, result.LivesRemaining)
	}

	reloaded, err := e.loadGame(g.ID)
	if err != nil {
		t.Fatalf("loadGame failed: %v", err)
	}
	record := reloaded.RecordForRound(1)
	if record.TimedOut == nil || !*record.TimedOut {
		t.Error("expected the record to be marked timed out")
	}
}

func TestVerifyTwiceIsRejected(t *testing.T) {
	e, _ := newTestEngine(t, 10)
	g := mustCreateGame(t, e, 1, false)
	if _, err := e.BeginRound(g.ID, 1, false, 1); err != nil {
		t.Fatalf("BeginRound failed: %v", err)
	}

	answer := correctAnswer(t, e, g.ID)
	if _, err := e.VerifyAnswer(g.ID, 1, answer, false, 1); err != nil {
		t.Fatalf("first VerifyAnswer failed: %v", err)
	}

	_, err := e.VerifyAnswer(g.ID, 1, answer, false, 1)
	if !errors.Is(err, ErrAlreadyAnswered) {
		t.Fatalf("expected ErrAlreadyAnswered, got %v", err)
	}

	reloaded, err := e.loadGame(g.ID)
	if err != nil {
		t.Fatalf("loadGame failed: %v", err)
	}
	if reloaded.LivesRemaining != StartingLives {
		t.Errorf("second verify must not touch lives, got %d", reloaded.LivesRemaining)
	}
}

func TestFullGameEndsAtTargetHand(t *testing.T) {
	e, _ := newTestEngine(t, 20)
	g := mustCreateGame(t, e, 1, false)

	for round := 1; round <= TargetCorrect-BaseHandSize; round++ {
		if _, err := e.BeginRound(g.ID, round, false, 1); err != nil {
			t.Fatalf("BeginRound %d failed: %v", round, err)
		}
		result, err := e.VerifyAnswer(g.ID, round, correctAnswer(t, e, g.ID), false, 1)
		if err != nil {
			t.Fatalf("VerifyAnswer %d failed: %v", round, err)
		}
		wantEnded := round == TargetCorrect-BaseHandSize
		if result.IsEnded != wantEnded {
			t.Errorf("round %d: expected isEnded=%v, got %v", round, wantEnded, result.IsEnded)
		}
	}

	if _, err := e.BeginRound(g.ID, 4, false, 1); !errors.Is(err, ErrGameEnded) {
		t.Fatalf("expected ErrGameEnded after winning, got %v", err)
	}
}

func TestFullGameEndsWhenLivesRunOut(t *testing.T) {
	e, _ := newTestEngine(t, 20)
	g := mustCreateGame(t, e, 1, false)

	for round := 1; round <= StartingLives; round++ {
		if _, err := e.BeginRound(g.ID, round, false, 1); err != nil {
			t.Fatalf("BeginRound %d failed: %v", round, err)
		}
		result, err := e.VerifyAnswer(g.ID, round, reversed(correctAnswer(t, e, g.ID)), false, 1)
		if err != nil {
			t.Fatalf("VerifyAnswer %d failed: %v", round, err)
		}
		if result.LivesRemaining != StartingLives-round {
			t.Errorf("round %d: expected %d lives, got %d", round, StartingLives-round, result.LivesRemaining)
		}
		wantEnded := round == StartingLives
		if result.IsEnded != wantEnded {
			t.Errorf("round %d: expected isEnded=%v, got %v", round, wantEnded, result.IsEnded)
		}
	}
}

func TestNoDuplicateCardsAcrossGame(t *testing.T) {
	e, _ := newTestEngine(t, 20)
	g := mustCreateGame(t, e, 1, false)

	for round := 1; round <= 3; round++ {
		if _, err := e.BeginRound(g.ID, round, false, 1); err != nil {
			t.Fatalf("BeginRound %d failed: %v", round, err)
		}
		if _, err := e.VerifyAnswer(g.ID, round, correctAnswer(t, e, g.ID), false, 1); err != nil {
			t.Fatalf("VerifyAnswer %d failed: %v", round, err)
		}
	}

	reloaded, err := e.loadGame(g.ID)
	if err != nil {
		t.Fatalf("loadGame failed: %v", err)
	}
	seen := make(map[int64]bool)
	for _, r := range reloaded.Records {
		if seen[r.Card.ID] {
			t.Errorf("card %d appears twice in game %d", r.Card.ID, g.ID)
		}
		seen[r.Card.ID] = true
	}
}

func TestDemoEndsAfterSingleRound(t *testing.T) {
	for _, correct := range []bool{true, false} {
		e, fs := newTestEngine(t, 10)
		g := mustCreateGame(t, e, 0, true)

		if _, err := e.BeginRound(g.ID, 1, true, 0); err != nil {
			t.Fatalf("BeginRound failed: %v", err)
		}
		answer := correctAnswer(t, e, g.ID)
		if !correct {
			answer = reversed(answer)
		}

		result, err := e.VerifyAnswer(g.ID, 1, answer, true, 0)
		if err != nil {
			t.Fatalf("VerifyAnswer failed: %v", err)
		}
		if !result.IsEnded {
			t.Errorf("demo game must end after one round (correct=%v)", correct)
		}
		if _, ok := fs.games[g.ID]; ok {
			t.Error("ended demo games must be deleted")
		}
	}
}

func TestAuthorization(t *testing.T) {
	e, _ := newTestEngine(t, 10)
	full := mustCreateGame(t, e, 1, false)
	demo := mustCreateGame(t, e, 0, true)

	if _, err := e.BeginRound(full.ID, 1, false, 2); !errors.Is(err, ErrNotOwner) {
		t.Errorf("expected ErrNotOwner for another user's game, got %v", err)
	}
	if _, err := e.BeginRound(full.ID, 1, false, 0); !errors.Is(err, ErrNotOwner) {
		t.Errorf("expected ErrNotOwner without an identity, got %v", err)
	}
	if _, err := e.BeginRound(full.ID, 1, true, 0); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch for full game on demo endpoint, got %v", err)
	}
	if _, err := e.BeginRound(demo.ID, 1, false, 1); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch for demo game on full endpoint, got %v", err)
	}
	if _, err := e.BeginRound(9999, 1, false, 1); !errors.Is(err, ErrGameNotFound) {
		t.Errorf("expected ErrGameNotFound, got %v", err)
	}
}

func TestHistoryListsOnlyEndedGames(t *testing.T) {
	e, _ := newTestEngine(t, 20)
	ended := mustCreateGame(t, e, 1, false)
	mustCreateGame(t, e, 1, false) // stays in progress

	for round := 1; round <= StartingLives; round++ {
		if _, err := e.BeginRound(ended.ID, round, false, 1); err != nil {
			t.Fatalf("BeginRound failed: %v", err)
		}
		if _, err := e.VerifyAnswer(ended.ID, round, nil, false, 1); err != nil {
			t.Fatalf("VerifyAnswer failed: %v", err)
		}
	}

	history, err := e.History(1)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 ended game, got %d", len(history))
	}
	if history[0].ID != ended.ID {
		t.Errorf("expected game %d in history, got %d", ended.ID, history[0].ID)
	}
	if len(history[0].Records) != BaseHandSize+StartingLives {
		t.Errorf("expected %d records, got %d", BaseHandSize+StartingLives, len(history[0].Records))
	}
	for _, r := range history[0].Records {
		if r.Card == nil {
			t.Error("history records must resolve their cards")
		}
	}
}

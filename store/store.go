package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type Store interface {
	CreateUser(username, passwordHash string) (int64, error)
	GetUserByUsername(username string) (*User, error)
	GetUserByID(userID int64) (*User, error)
	GetCards() ([]*Card, error)
	GetCardByID(cardID int64) (*Card, error)
	CreateGame(ownerID sql.NullInt64, createdAt time.Time, isDemo bool, lives int) (int64, error)
	GetGame(gameID int64) (*Game, error)
	UpdateGame(gameID int64, roundNum int, isEnded bool, livesRemaining int) error
	GetGamesByUser(userID int64, ended bool) ([]*Game, error)
	DeleteGame(gameID int64) error
	CreateGameRecord(gameID, cardID int64, round int, wasGuessed sql.NullBool, requestedAt, respondedAt *time.Time) (int64, error)
	GetGameRecords(gameID int64) ([]*GameRecord, error)
	BeginRound(gameID, cardID int64, round int, requestedAt time.Time) (int64, error)
	ResolveRound(recordID int64, wasGuessed, timedOut bool, respondedAt time.Time, gameID int64, roundNum int, isEnded bool, livesRemaining int) (bool, error)
	Close() error
}

type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    string
}

type Card struct {
	ID          int64
	Name        string
	ImagePath   string
	MiseryIndex float64
}

type Game struct {
	ID             int64
	OwnerID        sql.NullInt64
	CreatedAt      time.Time
	RoundNum       int
	IsEnded        bool
	IsDemo         bool
	LivesRemaining int
}

type GameRecord struct {
	ID          int64
	GameID      int64
	Round       int
	Card        *Card
	WasGuessed  sql.NullBool
	TimedOut    sql.NullBool
	RequestedAt *time.Time
	RespondedAt *time.Time
}

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.seedCards(); err != nil {
		return nil, fmt.Errorf("failed to seed card catalog: %w", err)
	}

	return s, nil
}

// Timestamps are stored as RFC 3339 text so values round-trip regardless of
// driver time handling.
const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return nil, fmt.Errorf("failed to parse timestamp %q: %w", s.String, err)
	}
	return &t, nil
}

func nullTimeString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullBoolInt(b sql.NullBool) sql.NullInt64 {
	if !b.Valid {
		return sql.NullInt64{}
	}
	v := int64(0)
	if b.Bool {
		v = 1
	}
	return sql.NullInt64{Int64: v, Valid: true}
}

func intNullBool(n sql.NullInt64) sql.NullBool {
	if !n.Valid {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: n.Int64 != 0, Valid: true}
}

func (s *SQLiteStore) CreateUser(username, passwordHash string) (int64, error) {
	result, err := s.db.Exec(
		"INSERT INTO users (username, password_hash) VALUES (?, ?)",
		username, passwordHash,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) GetUserByUsername(username string) (*User, error) {
	user := &User{}
	err := s.db.QueryRow(
		"SELECT id, username, password_hash, created_at FROM users WHERE username = ?",
		username,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *SQLiteStore) GetUserByID(userID int64) (*User, error) {
	user := &User{}
	err := s.db.QueryRow(
		"SELECT id, username, password_hash, created_at FROM users WHERE id = ?",
		userID,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *SQLiteStore) GetCards() ([]*Card, error) {
	rows, err := s.db.Query(
		"SELECT id, name, image_path, misery_index FROM cards ORDER BY id",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	defer rows.Close()

	var cards []*Card
	for rows.Next() {
		card := &Card{}
		if err := rows.Scan(&card.ID, &card.Name, &card.ImagePath, &card.MiseryIndex); err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

func (s *SQLiteStore) GetCardByID(cardID int64) (*Card, error) {
	card := &Card{}
	err := s.db.QueryRow(
		"SELECT id, name, image_path, misery_index FROM cards WHERE id = ?",
		cardID,
	).Scan(&card.ID, &card.Name, &card.ImagePath, &card.MiseryIndex)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	return card, nil
}

func (s *SQLiteStore) CreateGame(ownerID sql.NullInt64, createdAt time.Time, isDemo bool, lives int) (int64, error) {
	demoVal := 0
	if isDemo {
		demoVal = 1
	}
	result, err := s.db.Exec(
		"INSERT INTO games (owner_id, created_at, round_num, is_ended, is_demo, lives_remaining) VALUES (?, ?, 0, 0, ?, ?)",
		ownerID, formatTime(createdAt), demoVal, lives,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create game: %w", err)
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) GetGame(gameID int64) (*Game, error) {
	return scanGame(s.db.QueryRow(
		"SELECT id, owner_id, created_at, round_num, is_ended, is_demo, lives_remaining FROM games WHERE id = ?",
		gameID,
	))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*Game, error) {
	game := &Game{}
	var createdAt string
	var isEnded, isDemo int
	err := row.Scan(&game.ID, &game.OwnerID, &createdAt, &game.RoundNum, &isEnded, &isDemo, &game.LivesRemaining)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan game: %w", err)
	}
	created, err := parseTime(sql.NullString{String: createdAt, Valid: true})
	if err != nil {
		return nil, err
	}
	game.CreatedAt = *created
	game.IsEnded = isEnded == 1
	game.IsDemo = isDemo == 1
	return game, nil
}

func (s *SQLiteStore) UpdateGame(gameID int64, roundNum int, isEnded bool, livesRemaining int) error {
	endedVal := 0
	if isEnded {
		endedVal = 1
	}
	_, err := s.db.Exec(
		"UPDATE games SET round_num = ?, is_ended = ?, lives_remaining = ? WHERE id = ?",
		roundNum, endedVal, livesRemaining, gameID,
	)
	if err != nil {
		return fmt.Errorf("failed to update game: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetGamesByUser(userID int64, ended bool) ([]*Game, error) {
	endedVal := 0
	if ended {
		endedVal = 1
	}
	rows, err := s.db.Query(
		"SELECT id, owner_id, created_at, round_num, is_ended, is_demo, lives_remaining FROM games WHERE owner_id = ? AND is_ended = ? ORDER BY created_at DESC",
		userID, endedVal,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	var games []*Game
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, game)
	}
	return games, rows.Err()
}

// DeleteGame removes a game and its records. Used only for demo cleanup.
func (s *SQLiteStore) DeleteGame(gameID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM game_records WHERE game_id = ?", gameID); err != nil {
		return fmt.Errorf("failed to delete game records: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM games WHERE id = ?", gameID); err != nil {
		return fmt.Errorf("failed to delete game: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CreateGameRecord(gameID, cardID int64, round int, wasGuessed sql.NullBool, requestedAt, respondedAt *time.Time) (int64, error) {
	result, err := s.db.Exec(
		"INSERT INTO game_records (game_id, card_id, round, was_guessed, requested_at, responded_at) VALUES (?, ?, ?, ?, ?, ?)",
		gameID, cardID, round, nullBoolInt(wasGuessed), nullTimeString(requestedAt), nullTimeString(respondedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create game record: %w", err)
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) GetGameRecords(gameID int64) ([]*GameRecord, error) {
	rows, err := s.db.Query(`
		SELECT r.id, r.game_id, r.round, r.was_guessed, r.timed_out, r.requested_at, r.responded_at,
		       c.id, c.name, c.image_path, c.misery_index
		FROM game_records r
		JOIN cards c ON r.card_id = c.id
		WHERE r.game_id = ?
		ORDER BY r.round, r.id
	`, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game records: %w", err)
	}
	defer rows.Close()

	var records []*GameRecord
	for rows.Next() {
		record := &GameRecord{Card: &Card{}}
		var wasGuessed, timedOut sql.NullInt64
		var requestedAt, respondedAt sql.NullString
		if err := rows.Scan(
			&record.ID, &record.GameID, &record.Round, &wasGuessed, &timedOut, &requestedAt, &respondedAt,
			&record.Card.ID, &record.Card.Name, &record.Card.ImagePath, &record.Card.MiseryIndex,
		); err != nil {
			return nil, fmt.Errorf("failed to scan game record: %w", err)
		}
		record.WasGuessed = intNullBool(wasGuessed)
		record.TimedOut = intNullBool(timedOut)
		if record.RequestedAt, err = parseTime(requestedAt); err != nil {
			return nil, err
		}
		if record.RespondedAt, err = parseTime(respondedAt); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// BeginRound inserts the unresolved record for a round and advances the
// game's round counter in a single transaction.
func (s *SQLiteStore) BeginRound(gameID, cardID int64, round int, requestedAt time.Time) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		"INSERT INTO game_records (game_id, card_id, round, requested_at) VALUES (?, ?, ?, ?)",
		gameID, cardID, round, formatTime(requestedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create round record: %w", err)
	}
	recordID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read record id: %w", err)
	}

	if _, err := tx.Exec("UPDATE games SET round_num = ? WHERE id = ?", round, gameID); err != nil {
		return 0, fmt.Errorf("failed to advance round: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return recordID, nil
}

// ResolveRound marks a round record answered and writes the resulting game
// state in one transaction. The responded_at IS NULL guard makes the update
// a no-op when the record was already resolved; in that case it reports
// false and leaves the game untouched.
func (s *SQLiteStore) ResolveRound(recordID int64, wasGuessed, timedOut bool, respondedAt time.Time, gameID int64, roundNum int, isEnded bool, livesRemaining int) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	guessedVal, timedOutVal, endedVal := 0, 0, 0
	if wasGuessed {
		guessedVal = 1
	}
	if timedOut {
		timedOutVal = 1
	}
	if isEnded {
		endedVal = 1
	}

	result, err := tx.Exec(
		"UPDATE game_records SET was_guessed = ?, timed_out = ?, responded_at = ? WHERE id = ? AND responded_at IS NULL",
		guessedVal, timedOutVal, formatTime(respondedAt), recordID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to resolve round record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if _, err := tx.Exec(
		"UPDATE games SET round_num = ?, is_ended = ?, lives_remaining = ? WHERE id = ?",
		roundNum, endedVal, livesRemaining, gameID,
	); err != nil {
		return false, fmt.Errorf("failed to update game: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return true, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

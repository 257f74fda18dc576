package store

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS cards (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    image_path TEXT NOT NULL,
    misery_index REAL UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS games (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    owner_id INTEGER,
    created_at TEXT NOT NULL,
    round_num INTEGER NOT NULL DEFAULT 0,
    is_ended INTEGER NOT NULL DEFAULT 0,
    is_demo INTEGER NOT NULL DEFAULT 0,
    lives_remaining INTEGER NOT NULL DEFAULT 3,
    FOREIGN KEY (owner_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS game_records (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    game_id INTEGER NOT NULL,
    card_id INTEGER NOT NULL,
    round INTEGER NOT NULL,
    was_guessed INTEGER,
    timed_out INTEGER,
    requested_at TEXT,
    responded_at TEXT,
    FOREIGN KEY (game_id) REFERENCES games(id),
    FOREIGN KEY (card_id) REFERENCES cards(id)
);

CREATE INDEX IF NOT EXISTS idx_games_owner ON games(owner_id, is_ended);
CREATE INDEX IF NOT EXISTS idx_game_records_game_id ON game_records(game_id);

-- Round 0 holds the three base-hand records; every later round holds one.
CREATE UNIQUE INDEX IF NOT EXISTS idx_game_records_game_round
    ON game_records(game_id, round) WHERE round > 0;
`

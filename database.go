package main

import (
	"database/sql"
	"errors"
	"log"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// RoundRow is a persisted round aggregate
type RoundRow struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
	Duration  float64   `json:"duration"`
	Players   int       `json:"players"`
	Shots     int       `json:"shots"`
	Hits      int       `json:"hits"`
	Kills     int       `json:"kills"`
	WinnerID  string    `json:"winnerId,omitempty"`
}

// EventRow is a persisted analytics event
type EventRow struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	PlayerID  string `json:"playerId,omitempty"`
	RoundID   string `json:"roundId,omitempty"`
	Data      string `json:"data,omitempty"`
	CreatedAt string `json:"createdAt"`
}

// OpenDB opens (or creates) the SQLite database
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite serializes writers anyway; one connection also keeps :memory: databases shared
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS analytics_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type TEXT NOT NULL,
		player_id TEXT,
		round_id TEXT,
		data TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS rounds (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		ended_at TEXT NOT NULL,
		duration REAL NOT NULL DEFAULT 0,
		players INTEGER NOT NULL DEFAULT 0,
		shots INTEGER NOT NULL DEFAULT 0,
		hits INTEGER NOT NULL DEFAULT 0,
		kills INTEGER NOT NULL DEFAULT 0,
		winner_id TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_events_type_time ON analytics_events(event_type, created_at);
	CREATE INDEX IF NOT EXISTS idx_rounds_ended ON rounds(ended_at);
	`
	_, err := db.conn.Exec(schema)
	if err != nil {
		log.Printf("DB migration error: %v", err)
	}
	return err
}

// GetSetting returns a stored setting, or "" if it is not set
func (db *DB) GetSetting(key string) (string, error) {
	var v string
	err := db.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

// RecordRound stores the aggregate of a finished round. Re-recording the
// same round id is a no-op.
func (db *DB) RecordRound(s RoundSummary) error {
	t := s.Totals()
	_, err := db.conn.Exec(`
		INSERT OR IGNORE INTO rounds (id, started_at, ended_at, duration, players, shots, hits, kills, winner_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.RoundID,
		s.StartedAt.UTC().Format(time.RFC3339Nano),
		s.EndedAt.UTC().Format(time.RFC3339Nano),
		s.Duration, len(s.Players), t.Shots, t.Hits, t.Kills, s.WinnerID,
	)
	return err
}

// RecentRounds returns the most recently finished rounds, newest first
func (db *DB) RecentRounds(limit int) ([]RoundRow, error) {
	rows, err := db.conn.Query(`
		SELECT id, started_at, ended_at, duration, players, shots, hits, kills, winner_id
		FROM rounds ORDER BY ended_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []RoundRow{}
	for rows.Next() {
		var r RoundRow
		var started, ended string
		if err := rows.Scan(&r.ID, &started, &ended, &r.Duration, &r.Players, &r.Shots, &r.Hits, &r.Kills, &r.WinnerID); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		r.EndedAt, _ = time.Parse(time.RFC3339Nano, ended)
		result = append(result, r)
	}
	return result, rows.Err()
}

// RecentEvents returns the latest analytics events, optionally of one type
func (db *DB) RecentEvents(eventType string, limit int) ([]EventRow, error) {
	rows, err := db.conn.Query(`
		SELECT id, event_type, COALESCE(player_id, ''), COALESCE(round_id, ''), COALESCE(data, ''), created_at
		FROM analytics_events
		WHERE ? = '' OR event_type = ?
		ORDER BY id DESC LIMIT ?`, eventType, eventType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []EventRow{}
	for rows.Next() {
		var e EventRow
		if err := rows.Scan(&e.ID, &e.Type, &e.PlayerID, &e.RoundID, &e.Data, &e.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

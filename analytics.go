package main

import (
	"database/sql"
	"log"
	"sync"
	"time"
)

// Event types for analytics tracking
const (
	EvtSessionJoin   = "session_join"
	EvtSessionLeave  = "session_leave"
	EvtPhaseChange   = "phase_change"
	EvtMusketFire    = "musket_fire"
	EvtPlayerHit     = "player_hit"
	EvtPlayerDeath   = "player_death"
	EvtPlayerRespawn = "player_respawn"
	EvtRoundEnd      = "round_end"
)

// AnalyticsEvent represents a single trackable event
type AnalyticsEvent struct {
	Type      string
	PlayerID  string
	RoundID   string
	Data      string // JSON metadata (optional)
	Timestamp time.Time
}

// Analytics persists events and round aggregates with batched background
// writes. A nil *Analytics discards everything.
type Analytics struct {
	db     *DB
	events chan AnalyticsEvent
	rounds chan RoundSummary
	stop   chan struct{}
	wg     sync.WaitGroup
}

// NewAnalytics creates and starts the analytics background writer
func NewAnalytics(db *DB) *Analytics {
	a := &Analytics{
		db:     db,
		events: make(chan AnalyticsEvent, 1024),
		rounds: make(chan RoundSummary, 16),
		stop:   make(chan struct{}),
	}
	a.wg.Add(1)
	go a.writer()
	return a
}

// Track enqueues an event for async persistence (non-blocking)
func (a *Analytics) Track(evt AnalyticsEvent) {
	if a == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	select {
	case a.events <- evt:
	default:
		// full; drop rather than block the round loop
	}
}

// PublishRound enqueues a round aggregate for persistence (non-blocking)
func (a *Analytics) PublishRound(s RoundSummary) {
	if a == nil {
		return
	}
	select {
	case a.rounds <- s:
	default:
		log.Printf("analytics: round queue full, dropping round %s", s.RoundID)
	}
}

// Stop flushes pending writes and shuts down the writer
func (a *Analytics) Stop() {
	if a == nil {
		return
	}
	close(a.stop)
	a.wg.Wait()
}

func (a *Analytics) writer() {
	defer a.wg.Done()

	batch := make([]AnalyticsEvent, 0, 64)
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case evt := <-a.events:
			batch = append(batch, evt)
			if len(batch) >= 50 {
				a.flush(batch)
				batch = batch[:0]
			}
		case s := <-a.rounds:
			a.saveRound(s)
		case <-ticker.C:
			if len(batch) > 0 {
				a.flush(batch)
				batch = batch[:0]
			}
		case <-a.stop:
		drain:
			for {
				select {
				case evt := <-a.events:
					batch = append(batch, evt)
				case s := <-a.rounds:
					a.saveRound(s)
				default:
					break drain
				}
			}
			a.flush(batch)
			return
		}
	}
}

func (a *Analytics) saveRound(s RoundSummary) {
	if a.db == nil {
		return
	}
	if err := a.db.RecordRound(s); err != nil {
		log.Printf("analytics: record round %s: %v", s.RoundID, err)
	}
}

// flush writes a batch of events to the database
func (a *Analytics) flush(events []AnalyticsEvent) {
	if a.db == nil || len(events) == 0 {
		return
	}
	tx, err := a.db.conn.Begin()
	if err != nil {
		log.Printf("analytics: begin tx error: %v", err)
		return
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO analytics_events (event_type, player_id, round_id, data, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		log.Printf("analytics: prepare error: %v", err)
		return
	}
	defer stmt.Close()

	for _, evt := range events {
		pid := sql.NullString{String: evt.PlayerID, Valid: evt.PlayerID != ""}
		rid := sql.NullString{String: evt.RoundID, Valid: evt.RoundID != ""}
		data := sql.NullString{String: evt.Data, Valid: evt.Data != ""}
		if _, err := stmt.Exec(evt.Type, pid, rid, data, evt.Timestamp.UTC().Format(time.RFC3339)); err != nil {
			log.Printf("analytics: insert error: %v", err)
		}
	}
	if err := tx.Commit(); err != nil {
		log.Printf("analytics: commit error: %v", err)
	}
}

// EventCounts returns counts of each event type for the last N days
func (a *Analytics) EventCounts(days int) (map[string]int, error) {
	if a == nil || a.db == nil {
		return map[string]int{}, nil
	}
	rows, err := a.db.conn.Query(`
		SELECT event_type, COUNT(*) FROM analytics_events
		WHERE created_at >= date('now', '-' || ? || ' days')
		GROUP BY event_type ORDER BY COUNT(*) DESC
	`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var evtType string
		var count int
		if err := rows.Scan(&evtType, &count); err != nil {
			continue
		}
		result[evtType] = count
	}
	return result, rows.Err()
}

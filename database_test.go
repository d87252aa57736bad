package main

import (
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSettings(t *testing.T) {
	db := openTestDB(t)
	v, err := db.GetSetting("missing")
	if err != nil || v != "" {
		t.Errorf("missing setting should be empty, got %q, %v", v, err)
	}
	if err := db.SetSetting("k", "one"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetSetting("k", "two"); err != nil {
		t.Fatal(err)
	}
	if v, _ := db.GetSetting("k"); v != "two" {
		t.Errorf("expected overwritten value, got %q", v)
	}
}

func testSummary(id string, ended time.Time) RoundSummary {
	return RoundSummary{
		RoundID:   id,
		ServerID:  "srv",
		StartedAt: ended.Add(-180 * time.Second),
		EndedAt:   ended,
		Duration:  180,
		WinnerID:  "a",
		Players: []PlayerRoundResult{
			{ID: "a", RoundStats: RoundStats{Kills: 2, Shots: 6, Hits: 4}},
			{ID: "b", RoundStats: RoundStats{Deaths: 2, Shots: 3, Hits: 1}},
		},
	}
}

func TestRecordRound(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	if err := db.RecordRound(testSummary("r1", base)); err != nil {
		t.Fatal(err)
	}
	if err := db.RecordRound(testSummary("r2", base.Add(time.Hour))); err != nil {
		t.Fatal(err)
	}
	if err := db.RecordRound(testSummary("r1", base)); err != nil {
		t.Fatalf("re-recording a round should be ignored: %v", err)
	}

	rounds, err := db.RecentRounds(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rounds) != 2 {
		t.Fatalf("expected 2 rounds, got %d", len(rounds))
	}
	if rounds[0].ID != "r2" {
		t.Errorf("newest round should come first, got %s", rounds[0].ID)
	}
	r := rounds[1]
	if r.Players != 2 || r.Shots != 9 || r.Hits != 5 || r.Kills != 2 || r.WinnerID != "a" {
		t.Errorf("unexpected aggregate %+v", r)
	}
	if !r.EndedAt.Equal(base) {
		t.Errorf("expected end %v, got %v", base, r.EndedAt)
	}
}

func TestAnalyticsFlushOnStop(t *testing.T) {
	db := openTestDB(t)
	a := NewAnalytics(db)
	now := time.Now()
	a.Track(AnalyticsEvent{Type: EvtSessionJoin, PlayerID: "p1", Timestamp: now})
	a.Track(AnalyticsEvent{Type: EvtMusketFire, PlayerID: "p1", RoundID: "r1", Timestamp: now})
	a.Track(AnalyticsEvent{Type: EvtMusketFire, PlayerID: "p2", RoundID: "r1", Timestamp: now})
	a.PublishRound(testSummary("r1", now))
	a.Stop()

	counts, err := a.EventCounts(1)
	if err != nil {
		t.Fatal(err)
	}
	if counts[EvtMusketFire] != 2 || counts[EvtSessionJoin] != 1 {
		t.Errorf("unexpected counts %v", counts)
	}

	events, err := db.RecentEvents(EvtMusketFire, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || events[0].PlayerID != "p2" || events[0].RoundID != "r1" {
		t.Errorf("unexpected events %+v", events)
	}
	all, _ := db.RecentEvents("", 10)
	if len(all) != 3 {
		t.Errorf("expected 3 events without a filter, got %d", len(all))
	}

	rounds, _ := db.RecentRounds(5)
	if len(rounds) != 1 {
		t.Errorf("expected the published round to be stored, got %d", len(rounds))
	}
}

func TestNilAnalyticsIsSafe(t *testing.T) {
	var a *Analytics
	a.Track(AnalyticsEvent{Type: EvtRoundEnd})
	a.PublishRound(RoundSummary{})
	a.Stop()
	if counts, err := a.EventCounts(1); err != nil || len(counts) != 0 {
		t.Errorf("expected empty counts, got %v %v", counts, err)
	}
}

package main

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/streadway/amqp"
)

type fakeChannel struct {
	mu   sync.Mutex
	keys []string
	msgs []amqp.Publishing
}

func (f *fakeChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	f.msgs = append(f.msgs, msg)
	return nil
}

func TestResultPublisher(t *testing.T) {
	ch := &fakeChannel{}
	p := newResultPublisher(ch, "results")
	ended := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	p.PublishRound(testSummary("r9", ended))
	p.Close()

	ch.mu.Lock()
	defer ch.mu.Unlock()
	if len(ch.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(ch.msgs))
	}
	if ch.keys[0] != "results" {
		t.Errorf("expected routing key results, got %s", ch.keys[0])
	}
	msg := ch.msgs[0]
	if msg.ContentType != "application/json" || msg.DeliveryMode != amqp.Persistent || msg.MessageId != "r9" {
		t.Errorf("unexpected publishing %+v", msg)
	}
	var body RoundResult
	if err := json.Unmarshal(msg.Body, &body); err != nil {
		t.Fatal(err)
	}
	if body.RoundID != "r9" || body.WinnerID != "a" || len(body.Players) != 2 || body.Timestamp != ended.Unix() {
		t.Errorf("unexpected body %+v", body)
	}
}

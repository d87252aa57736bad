package main

import (
	"encoding/json"
	"log"
	"time"

	"github.com/streadway/amqp"
)

// publishTimeout bounds the wait for a queued summary on Close
const publishTimeout = 5 * time.Second

// amqpPublisher is the subset of *amqp.Channel used for publishing
type amqpPublisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// RoundResult is the message body published for every finished round
type RoundResult struct {
	RoundID   string              `json:"round_id"`
	ServerID  string              `json:"server_id"`
	WinnerID  string              `json:"winner_id,omitempty"`
	Duration  float64             `json:"duration"`
	Players   []PlayerRoundResult `json:"players"`
	Timestamp int64               `json:"timestamp"`
}

// ResultPublisher sends round results to a durable AMQP queue from its own
// goroutine so the round loop never waits on the broker.
type ResultPublisher struct {
	conn    *amqp.Connection
	channel amqpPublisher
	queue   string
	out     chan RoundSummary
	done    chan struct{}
}

// DialResultPublisher connects to the broker and declares the queue
func DialResultPublisher(url, queue string) (*ResultPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}
	p := newResultPublisher(ch, queue)
	p.conn = conn
	return p, nil
}

func newResultPublisher(ch amqpPublisher, queue string) *ResultPublisher {
	p := &ResultPublisher{
		channel: ch,
		queue:   queue,
		out:     make(chan RoundSummary, 16),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// PublishRound queues a summary for publishing (non-blocking)
func (p *ResultPublisher) PublishRound(s RoundSummary) {
	select {
	case p.out <- s:
	default:
		log.Printf("mq: queue full, dropping round %s", s.RoundID)
	}
}

func (p *ResultPublisher) run() {
	defer close(p.done)
	for s := range p.out {
		if err := p.publish(s); err != nil {
			log.Printf("mq: publish round %s: %v", s.RoundID, err)
		}
	}
}

func (p *ResultPublisher) publish(s RoundSummary) error {
	body, err := json.Marshal(RoundResult{
		RoundID:   s.RoundID,
		ServerID:  s.ServerID,
		WinnerID:  s.WinnerID,
		Duration:  s.Duration,
		Players:   s.Players,
		Timestamp: s.EndedAt.Unix(),
	})
	if err != nil {
		return err
	}
	return p.channel.Publish("", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    s.RoundID,
		Timestamp:    s.EndedAt,
		Body:         body,
	})
}

// Close drains queued results and closes the connection. No PublishRound
// calls may happen after Close.
func (p *ResultPublisher) Close() {
	close(p.out)
	select {
	case <-p.done:
	case <-time.After(publishTimeout):
		log.Printf("mq: timed out flushing round results")
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

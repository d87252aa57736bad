package main

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	presenceKeyPrefix = "winter3d:server:"
	presenceTTL       = 30 * time.Second
	presenceRefresh   = 10 * time.Second
)

// Presence keeps a Redis hash describing this server alive while it runs.
// Updates are latest-wins; a slow Redis never delays the round loop.
type Presence struct {
	rdb     *redis.Client
	key     string
	updates chan ServerStatus
	stop    chan struct{}
	done    chan struct{}
}

// NewPresence connects to Redis and starts the refresher
func NewPresence(cfg RedisConfig, serverID string) (*Presence, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close()
		return nil, err
	}

	p := &Presence{
		rdb:     rdb,
		key:     presenceKeyPrefix + serverID,
		updates: make(chan ServerStatus, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go p.run()
	return p, nil
}

// UpdatePresence replaces any pending status with st
func (p *Presence) UpdatePresence(st ServerStatus) {
	for {
		select {
		case p.updates <- st:
			return
		default:
		}
		select {
		case <-p.updates:
		default:
		}
	}
}

func (p *Presence) run() {
	defer close(p.done)
	ticker := time.NewTicker(presenceRefresh)
	defer ticker.Stop()

	var last ServerStatus
	have := false
	for {
		select {
		case st := <-p.updates:
			last, have = st, true
		case <-ticker.C:
			if !have {
				continue
			}
		case <-p.stop:
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := p.rdb.Del(ctx, p.key).Err(); err != nil {
				log.Printf("presence: remove %s: %v", p.key, err)
			}
			cancel()
			return
		}
		if err := p.write(last); err != nil {
			log.Printf("presence: write %s: %v", p.key, err)
		}
	}
}

func (p *Presence) write(st ServerStatus) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	pipe := p.rdb.Pipeline()
	pipe.HSet(ctx, p.key, presenceFields(st))
	pipe.Expire(ctx, p.key, presenceTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Close removes the presence record and disconnects
func (p *Presence) Close() {
	close(p.stop)
	<-p.done
	p.rdb.Close()
}

func presenceFields(st ServerStatus) map[string]interface{} {
	return map[string]interface{}{
		"server_id":        st.ServerID,
		"phase":            st.Phase.String(),
		"phase_started_at": strconv.FormatInt(st.PhaseStartedAt, 10),
		"players":          st.Players,
		"alive":            st.Alive,
		"round_id":         st.RoundID,
		"updated_at":       strconv.FormatInt(st.UpdatedAt, 10),
	}
}

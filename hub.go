package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	maxConnsPerIP = 5
	maxTotalConns = 1000
)

var ErrHubStopped = errors.New("hub stopped")

// RoundSink receives finished round summaries. Implementations must not block.
type RoundSink interface {
	PublishRound(RoundSummary)
}

// PresenceSink mirrors the server status somewhere external. Implementations must not block.
type PresenceSink interface {
	UpdatePresence(ServerStatus)
}

// HubDeps are the optional collaborators of a Hub
type HubDeps struct {
	Analytics *Analytics
	Rounds    []RoundSink
	Presence  PresenceSink
	Health    *HealthServer
	Rand      *rand.Rand
	Now       func() time.Time
}

// SessionInfo describes a connected client for operators
type SessionInfo struct {
	PlayerState
	RemoteAddr  string `json:"remoteAddr"`
	Binary      bool   `json:"binarySnapshots"`
	ConnectedAt int64  `json:"connectedAt"`
}

// joinCmd and leaveCmd travel on the same inbox as player commands so
// each connection's join, messages and departure are applied in order.
type joinCmd struct {
	client *Client
}

type leaveCmd struct {
	client *Client
}

type inputCmd struct {
	playerID string
	input    PlayerInput
}

type actionCmd struct {
	playerID string
	action   PlayerAction
}

type queryCmd struct {
	fn func()
}

// Hub owns the game and every client connection. Run is the only goroutine
// that touches either; everything else talks to it through channels.
type Hub struct {
	cfg     *Config
	game    *Game
	clients map[string]*Client

	inbox chan interface{}
	done  chan struct{}

	analytics *Analytics
	rounds    []RoundSink
	presence  PresenceSink
	health    *HealthServer
	now       func() time.Time

	lastPhase   Phase
	lastPlayers int

	// Connection limiting (mutex-protected, accessed from HTTP handlers)
	connMu     sync.Mutex
	ipConns    map[string]int
	totalConns int
}

// NewHub creates a Hub and its game
func NewHub(cfg *Config, deps HubDeps) *Hub {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	rng := deps.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15))
	}
	return &Hub{
		cfg:       cfg,
		game:      NewGame(cfg, rng, now()),
		clients:   make(map[string]*Client),
		inbox:     make(chan interface{}, 1024),
		done:      make(chan struct{}),
		analytics: deps.Analytics,
		rounds:    deps.Rounds,
		presence:  deps.Presence,
		health:    deps.Health,
		now:       now,
		ipConns:   make(map[string]int),
	}
}

func (h *Hub) CanAccept(ip string) bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.totalConns >= maxTotalConns {
		return false
	}
	if h.ipConns[ip] >= maxConnsPerIP {
		return false
	}
	return true
}

func (h *Hub) TrackConnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]++
	h.totalConns++
}

func (h *Hub) TrackDisconnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]--
	if h.ipConns[ip] <= 0 {
		delete(h.ipConns, ip)
	}
	h.totalConns--
}

// TotalConns returns the tracked connection count
func (h *Hub) TotalConns() int {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	return h.totalConns
}

// Run drives the tick loop and applies client commands until ctx is done
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.Server.TickInterval())
	defer ticker.Stop()

	h.health.SetServing(true)
	defer h.health.SetServing(false)
	h.syncPresence(true)
	log.Printf("hub: round loop running at %d Hz", h.cfg.Server.TickRate)

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			log.Printf("hub: stopped")
			return

		case cmd := <-h.inbox:
			h.handleCommand(cmd)

		case <-ticker.C:
			h.guard("tick", func() { h.apply(h.game.Tick(h.now())) })
		}
	}
}

// shutdown disconnects every client, marks the hub stopped and then
// releases clients whose join was queued but never applied.
func (h *Hub) shutdown() {
	for _, c := range h.clients {
		h.disconnect(c)
	}
	close(h.done)
	for {
		select {
		case cmd := <-h.inbox:
			if j, ok := cmd.(joinCmd); ok {
				j.client.closeSend()
			}
		default:
			return
		}
	}
}

func (h *Hub) handleCommand(cmd interface{}) {
	switch m := cmd.(type) {
	case joinCmd:
		h.guard(m.client.id, func() { h.join(m.client) })
	case leaveCmd:
		h.guard(m.client.id, func() { h.disconnect(m.client) })
	case inputCmd:
		h.guard(m.playerID, func() { h.game.HandleInput(m.playerID, m.input) })
	case actionCmd:
		h.guard(m.playerID, func() { h.apply(h.game.HandleAction(m.playerID, m.action, h.now())) })
	case queryCmd:
		h.guard("query", m.fn)
	default:
		log.Printf("hub: unknown command %T", cmd)
	}
}

func (h *Hub) join(c *Client) {
	if _, taken := h.clients[c.id]; taken {
		log.Printf("hub: duplicate client id %s, dropping connection", c.id)
		c.closeSend()
		return
	}
	h.clients[c.id] = c
	h.apply(h.game.Join(c.id, h.now()))
}

// disconnect removes a client and its session. Closing send makes the
// write pump send a close frame and drop the connection.
func (h *Hub) disconnect(c *Client) {
	if cur, ok := h.clients[c.id]; !ok || cur != c {
		return
	}
	delete(h.clients, c.id)
	c.closeSend()
	h.apply(h.game.Leave(c.id, h.now()))
}

// guard keeps a panic in one command from taking down the loop
func (h *Hub) guard(who string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("hub: recovered panic handling %s: %v", who, r)
		}
	}()
	fn()
}

// apply delivers messages and hands events and summaries to their sinks
func (h *Hub) apply(fx Effects) {
	for _, out := range fx.Out {
		h.deliver(out)
	}
	for _, evt := range fx.Events {
		h.analytics.Track(evt)
	}
	for _, s := range fx.Rounds {
		for _, sink := range h.rounds {
			sink.PublishRound(s)
		}
	}
	h.syncPresence(false)
}

func (h *Hub) deliver(out Outbound) {
	data, err := json.Marshal(out.Env)
	if err != nil {
		log.Printf("hub: encode %s: %v", out.Env.T, err)
		return
	}

	// msgpack snapshots are encoded at most once per tick
	var packed []byte
	snapshot := out.Env.T == MsgGameStateUpdate
	send := func(c *Client) {
		if snapshot && c.binary {
			if packed == nil {
				if packed, err = msgpack.Marshal(out.Env.Data); err != nil {
					log.Printf("hub: msgpack snapshot: %v", err)
					return
				}
			}
			c.SendBinary(packed)
			return
		}
		c.SendRaw(data)
	}

	switch out.Audience {
	case AudienceOne:
		if c, ok := h.clients[out.PlayerID]; ok {
			send(c)
		}
	case AudienceOthers:
		for id, c := range h.clients {
			if id != out.PlayerID {
				send(c)
			}
		}
	default:
		for _, c := range h.clients {
			send(c)
		}
	}
}

// syncPresence pushes the status when the phase or headcount changed
func (h *Hub) syncPresence(force bool) {
	if h.presence == nil {
		return
	}
	phase, players := h.game.Phase(), h.game.PlayerCount()
	if !force && phase == h.lastPhase && players == h.lastPlayers {
		return
	}
	h.lastPhase, h.lastPlayers = phase, players
	h.presence.UpdatePresence(h.game.Status(h.now()))
}

// Register queues a freshly upgraded client's join. It returns false if
// the hub has stopped, in which case the client's send queue is closed.
func (h *Hub) Register(c *Client) bool {
	// a join queued after shutdown drained the inbox is never applied
	if !h.submit(joinCmd{client: c}) || h.stopped() {
		c.closeSend()
		return false
	}
	return true
}

func (h *Hub) stopped() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Unregister reports that a client's connection has gone away
func (h *Hub) Unregister(c *Client) {
	h.submit(leaveCmd{client: c})
}

// submit queues a player command for the loop
func (h *Hub) submit(cmd interface{}) bool {
	if h.stopped() {
		return false
	}
	select {
	case h.inbox <- cmd:
		return true
	case <-h.done:
		return false
	}
}

// query runs fn on the loop goroutine and waits for it to finish
func (h *Hub) query(fn func()) error {
	finished := make(chan struct{})
	if !h.submit(queryCmd{fn: func() {
		defer close(finished)
		fn()
	}}) {
		return ErrHubStopped
	}
	select {
	case <-finished:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

// Status returns the current server summary
func (h *Hub) Status() (ServerStatus, error) {
	var st ServerStatus
	err := h.query(func() { st = h.game.Status(h.now()) })
	return st, err
}

// Sessions lists connected clients with their public state
func (h *Hub) Sessions() ([]SessionInfo, error) {
	var list []SessionInfo
	err := h.query(func() {
		list = make([]SessionInfo, 0, len(h.clients))
		for _, st := range h.game.Snapshot() {
			info := SessionInfo{PlayerState: st}
			if c, ok := h.clients[st.ID]; ok {
				info.RemoteAddr = c.remoteAddr
				info.Binary = c.binary
				info.ConnectedAt = c.connectedAt.UnixMilli()
			}
			list = append(list, info)
		}
	})
	return list, err
}

// Kick disconnects a session through the normal departure path
func (h *Hub) Kick(id string) (bool, error) {
	var found bool
	err := h.query(func() {
		c, ok := h.clients[id]
		if !ok {
			return
		}
		found = true
		log.Printf("hub: kicking %s (%s)", id, c.remoteAddr)
		h.disconnect(c)
	})
	return found, err
}

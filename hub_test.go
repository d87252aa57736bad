package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"
)

type wireMsg struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d"`
}

type fakeRoundSink struct {
	got chan RoundSummary
}

func (f *fakeRoundSink) PublishRound(s RoundSummary) {
	select {
	case f.got <- s:
	default:
	}
}

type fakePresence struct {
	mu   sync.Mutex
	last ServerStatus
	n    int
}

func (f *fakePresence) UpdatePresence(st ServerStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = st
	f.n++
}

func (f *fakePresence) snapshot() (ServerStatus, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last, f.n
}

// fastConfig starts a round as soon as one player is present
func fastConfig() *Config {
	cfg := DefaultConfig()
	cfg.Round.MinPlayersToStart = 1
	cfg.Round.Countdown = 0
	return cfg
}

func startHub(t *testing.T, cfg *Config, deps HubDeps) *Hub {
	t.Helper()
	deps.Rand = rand.New(rand.NewPCG(4, 2))
	h := NewHub(cfg, deps)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h
}

func fakeClient(h *Hub, id string) *Client {
	return &Client{hub: h, id: id, send: make(chan []byte, sendBufSize), remoteAddr: "test", connectedAt: time.Now()}
}

// waitForSend reads c's outbound queue until a text message of type typ arrives
func waitForSend(t *testing.T, c *Client, typ string) json.RawMessage {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case raw, ok := <-c.send:
			if !ok {
				t.Fatalf("send channel closed while waiting for %s", typ)
			}
			if len(raw) > 0 && raw[0] == 0xFF {
				continue
			}
			var m wireMsg
			if json.Unmarshal(raw, &m) != nil {
				continue
			}
			if m.T == typ {
				return m.D
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

// waitClosed drains c's outbound queue until the hub closes it
func waitClosed(t *testing.T, c *Client) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case _, ok := <-c.send:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("send queue of %s was never closed", c.id)
		}
	}
}

func TestHubRegisterSendsInitialize(t *testing.T) {
	h := startHub(t, DefaultConfig(), HubDeps{})
	c := fakeClient(h, "p1")
	if !h.Register(c) {
		t.Fatal("register failed")
	}

	raw := waitForSend(t, c, MsgInitializePlayer)
	var init InitializePlayerMsg
	if err := json.Unmarshal(raw, &init); err != nil {
		t.Fatal(err)
	}
	if init.ID != "p1" || init.InitialState.Health != MaxHealth {
		t.Errorf("unexpected init %+v", init)
	}

	raw = waitForSend(t, c, MsgGamePhaseUpdate)
	var up PhaseUpdateMsg
	json.Unmarshal(raw, &up)
	if up.Phase != PhaseWaitingForPlayers {
		t.Errorf("expected WAITING, got %s", up.Phase)
	}

	st, err := h.Status()
	if err != nil {
		t.Fatal(err)
	}
	if st.Players != 1 {
		t.Errorf("expected 1 player, got %d", st.Players)
	}
}

func TestHubFireReachesEveryone(t *testing.T) {
	h := startHub(t, fastConfig(), HubDeps{})
	a, b := fakeClient(h, "a"), fakeClient(h, "b")
	h.Register(a)
	h.Register(b)

	// wait until the round is running before shooting
	deadline := time.Now().Add(3 * time.Second)
	for {
		st, _ := h.Status()
		if st.Phase == PhaseInProgress {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("round never started, phase %s", st.Phase)
		}
		time.Sleep(10 * time.Millisecond)
	}

	h.submit(actionCmd{playerID: "a", action: PlayerAction{Action: InputFire, Direction: Vec3{Z: 1}}})
	for _, c := range []*Client{a, b} {
		raw := waitForSend(t, c, MsgGameEffect)
		var eff GameEffectMsg
		json.Unmarshal(raw, &eff)
		if eff.ShooterID != "a" || eff.Type != EffectMusketFire {
			t.Errorf("%s got unexpected effect %+v", c.id, eff)
		}
	}
}

func TestHubKick(t *testing.T) {
	h := startHub(t, DefaultConfig(), HubDeps{})
	a, b := fakeClient(h, "a"), fakeClient(h, "b")
	h.Register(a)
	h.Register(b)
	waitForSend(t, b, MsgInitializePlayer)

	found, err := h.Kick("a")
	if err != nil || !found {
		t.Fatalf("expected kick to find a, got %v %v", found, err)
	}
	raw := waitForSend(t, b, MsgPlayerLeft)
	var left PlayerLeftMsg
	json.Unmarshal(raw, &left)
	if left.ID != "a" {
		t.Errorf("expected playerLeft a, got %+v", left)
	}

	deadline := time.After(3 * time.Second)
	for closed := false; !closed; {
		select {
		case _, ok := <-a.send:
			closed = !ok
		case <-deadline:
			t.Fatal("kicked client's queue was not closed")
		}
	}

	if found, _ := h.Kick("a"); found {
		t.Error("second kick should find nothing")
	}
	// a late unregister from the read pump is harmless
	h.Unregister(a)
	if st, _ := h.Status(); st.Players != 1 {
		t.Errorf("expected 1 player left, got %d", st.Players)
	}
}

func TestHubSessions(t *testing.T) {
	h := startHub(t, DefaultConfig(), HubDeps{})
	c := fakeClient(h, "p1")
	c.binary = true
	h.Register(c)

	list, err := h.Sessions()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != "p1" || !list[0].Binary || list[0].RemoteAddr != "test" {
		t.Errorf("unexpected sessions %+v", list)
	}
}

func TestHubRoundSummaryReachesSinks(t *testing.T) {
	cfg := fastConfig()
	cfg.Round.Duration = 0.2
	sink := &fakeRoundSink{got: make(chan RoundSummary, 1)}
	presence := &fakePresence{}
	h := startHub(t, cfg, HubDeps{Rounds: []RoundSink{sink}, Presence: presence})
	h.Register(fakeClient(h, "solo"))

	select {
	case s := <-sink.got:
		if len(s.Players) != 1 || s.Players[0].ID != "solo" {
			t.Errorf("unexpected summary %+v", s)
		}
		if s.ServerID != cfg.Server.ID {
			t.Errorf("summary should carry server id %s, got %s", cfg.Server.ID, s.ServerID)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no round summary published")
	}

	if _, n := presence.snapshot(); n < 2 {
		t.Errorf("expected presence updates on phase changes, got %d", n)
	}
}

func TestHubStoppedQueriesFail(t *testing.T) {
	h := NewHub(DefaultConfig(), HubDeps{})
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	cancel()
	<-h.done

	if _, err := h.Status(); err != ErrHubStopped {
		t.Errorf("expected ErrHubStopped, got %v", err)
	}
	if h.Register(fakeClient(h, "late")) {
		t.Error("register after stop should fail")
	}
}

func TestHubConnectionLimits(t *testing.T) {
	h := NewHub(DefaultConfig(), HubDeps{})
	for i := 0; i < maxConnsPerIP; i++ {
		if !h.CanAccept("1.2.3.4") {
			t.Fatalf("connection %d should be accepted", i)
		}
		h.TrackConnect("1.2.3.4")
	}
	if h.CanAccept("1.2.3.4") {
		t.Error("per-IP limit not enforced")
	}
	if !h.CanAccept("5.6.7.8") {
		t.Error("other addresses should still be accepted")
	}
	h.TrackDisconnect("1.2.3.4")
	if !h.CanAccept("1.2.3.4") {
		t.Error("disconnect should free a slot")
	}
	if h.TotalConns() != maxConnsPerIP-1 {
		t.Errorf("expected %d tracked, got %d", maxConnsPerIP-1, h.TotalConns())
	}
}

func TestHubConnectThenImmediateDisconnect(t *testing.T) {
	h := NewHub(DefaultConfig(), HubDeps{})
	var gone []*Client
	for i := 0; i < 100; i++ {
		c := fakeClient(h, fmt.Sprintf("c%d", i))
		if !h.Register(c) {
			t.Fatalf("register %s failed", c.id)
		}
		h.Unregister(c)
		gone = append(gone, c)
	}
	stay := fakeClient(h, "stay")
	h.Register(stay)

	// everything above is queued before the loop starts
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.done
	})

	list, err := h.Sessions()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != "stay" {
		t.Fatalf("expected only the remaining session, got %+v", list)
	}
	for _, c := range gone {
		waitClosed(t, c)
	}
}

func TestHubCommandAfterRegisterSeesJoin(t *testing.T) {
	h := NewHub(DefaultConfig(), HubDeps{})
	h.Register(fakeClient(h, "p1"))
	joined := make(chan bool, 1)
	h.submit(queryCmd{fn: func() { joined <- h.game.Player("p1") != nil }})

	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.done
	})

	select {
	case ok := <-joined:
		if !ok {
			t.Error("command queued after register ran before the join")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("command never ran")
	}
}

func TestHubReleasesJoinQueuedAtShutdown(t *testing.T) {
	h := NewHub(DefaultConfig(), HubDeps{})
	c := fakeClient(h, "queued")
	h.Register(c)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	go h.Run(ctx)
	<-h.done

	// joined and then disconnected, or dropped unjoined: the queue closes either way
	waitClosed(t, c)

	late := fakeClient(h, "late")
	if h.Register(late) {
		t.Error("register after stop should fail")
	}
	waitClosed(t, late)
}

func TestHubSurvivesPanickingCommand(t *testing.T) {
	h := startHub(t, DefaultConfig(), HubDeps{})
	c := fakeClient(h, "p1")
	h.Register(c)
	waitForSend(t, c, MsgInitializePlayer)

	if err := h.query(func() { panic("boom") }); err != nil {
		t.Fatalf("query: %v", err)
	}

	before, err := h.Status()
	if err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for {
		st, err := h.Status()
		if err != nil {
			t.Fatal(err)
		}
		if st.Tick > before.Tick && st.Players == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("loop stopped ticking after a panic: %+v", st)
		}
		time.Sleep(10 * time.Millisecond)
	}
	waitForSend(t, c, MsgGameStateUpdate)
}

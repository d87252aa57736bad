package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML config file")
	hashPassword := flag.String("hash-password", "", "Print a bcrypt hash for admin.password_hash and exit")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := HashPassword(*hashPassword)
		if err != nil {
			log.Fatalf("hash password: %v", err)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var db *DB
	var analytics *Analytics
	if cfg.DB.Path != "" {
		db, err = OpenDB(cfg.DB.Path)
		if err != nil {
			log.Fatalf("open database %s: %v", cfg.DB.Path, err)
		}
		defer db.Close()
		analytics = NewAnalytics(db)
		log.Printf("Persisting events and rounds to %s", cfg.DB.Path)
	}

	deps := HubDeps{Analytics: analytics}
	if analytics != nil {
		deps.Rounds = append(deps.Rounds, analytics)
	}

	var publisher *ResultPublisher
	if cfg.MQ.URL != "" {
		publisher, err = DialResultPublisher(cfg.MQ.URL, cfg.MQ.Queue)
		if err != nil {
			log.Printf("mq: disabled, connect failed: %v", err)
		} else {
			deps.Rounds = append(deps.Rounds, publisher)
			log.Printf("Publishing round results to queue %s", cfg.MQ.Queue)
		}
	}

	var presence *Presence
	if cfg.Redis.Addr != "" {
		presence, err = NewPresence(cfg.Redis, cfg.Server.ID)
		if err != nil {
			log.Printf("presence: disabled, redis connect failed: %v", err)
		} else {
			deps.Presence = presence
		}
	}

	var health *HealthServer
	if cfg.GRPC.Addr != "" {
		health, err = StartHealth(cfg.GRPC.Addr)
		if err != nil {
			log.Fatalf("health: %v", err)
		}
		deps.Health = health
	}

	auth := NewAuth(cfg.Admin, db)
	if !auth.Enabled() {
		log.Printf("Admin API disabled: admin.password_hash is not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := NewHub(cfg, deps)
	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(hubDone)
	}()

	server := &http.Server{Addr: cfg.Server.Addr, Handler: SetupRoutes(cfg, hub, auth, db, analytics)}

	go func() {
		log.Printf("Server %s starting on %s", cfg.Server.ID, cfg.Server.Addr)
		if cfg.Server.ClientDir != "" {
			log.Printf("Serving client files from %s", cfg.Server.ClientDir)
		}
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Printf("ListenAndServe: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		server.Close()
	}
	<-hubDone

	// sinks close after the loop so no summary is published into a closed queue
	if publisher != nil {
		publisher.Close()
	}
	if presence != nil {
		presence.Close()
	}
	health.Stop()
	analytics.Stop()
}

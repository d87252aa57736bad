package main

import (
	"errors"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func newUpgrader(allowAnyOrigin bool) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if allowAnyOrigin {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true // Non-browser clients don't send Origin
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			return u.Host == r.Host
		},
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// SetupRoutes configures HTTP routes. db and analytics may be nil.
func SetupRoutes(cfg *Config, hub *Hub, auth *Auth, db *DB, analytics *Analytics) *gin.Engine {
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), cors())
	if cfg.Server.Debug {
		r.Use(gin.Logger())
	}

	upgrader := newUpgrader(cfg.Server.AllowAnyOrigin)
	r.GET("/ws", func(c *gin.Context) {
		ip := c.ClientIP()
		if !hub.CanAccept(ip) {
			c.String(http.StatusServiceUnavailable, "too many connections")
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("upgrade error: %v", err)
			return
		}

		hub.TrackConnect(ip)

		client := NewClient(hub, conn, ip, c.Query("codec") == "msgpack")
		if !hub.Register(client) {
			hub.TrackDisconnect(ip)
			conn.Close()
			return
		}

		go client.WritePump()
		go client.ReadPump()
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	api := r.Group("/api")
	api.GET("/status", func(c *gin.Context) {
		st, err := hub.Status()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, st)
	})
	api.GET("/schema", func(c *gin.Context) {
		c.JSON(http.StatusOK, ProtocolSchema())
	})
	api.GET("/qr.png", qrHandler(cfg.Server.PublicURL))

	api.POST("/admin/login", func(c *gin.Context) {
		var req struct {
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		token, err := auth.Login(req.Password, c.ClientIP())
		switch {
		case errors.Is(err, ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
		case errors.Is(err, ErrAdminDisabled):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case err != nil:
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusOK, gin.H{"token": token})
		}
	})

	admin := api.Group("/admin", auth.RequireAdmin())
	admin.GET("/sessions", func(c *gin.Context) {
		list, err := hub.Sessions()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, list)
	})
	admin.POST("/kick/:id", func(c *gin.Context) {
		found, err := hub.Kick(c.Param("id"))
		switch {
		case err != nil:
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		case !found:
			c.JSON(http.StatusNotFound, gin.H{"error": "no such session"})
		default:
			c.JSON(http.StatusOK, gin.H{"kicked": c.Param("id")})
		}
	})
	admin.GET("/rounds", func(c *gin.Context) {
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "persistence disabled"})
			return
		}
		rounds, err := db.RecentRounds(queryInt(c, "limit", 20, 200))
		if err != nil {
			log.Printf("api: rounds: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, rounds)
	})
	admin.GET("/events", func(c *gin.Context) {
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "persistence disabled"})
			return
		}
		events, err := db.RecentEvents(c.Query("type"), queryInt(c, "limit", 100, 1000))
		if err != nil {
			log.Printf("api: events: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		counts, err := analytics.EventCounts(queryInt(c, "days", 1, 365))
		if err != nil {
			log.Printf("api: event counts: %v", err)
		}
		c.JSON(http.StatusOK, gin.H{"events": events, "counts": counts})
	})

	if cfg.Server.ClientDir != "" {
		files := http.FileServer(http.Dir(cfg.Server.ClientDir))
		r.NoRoute(func(c *gin.Context) {
			// no-cache so browsers always revalidate
			c.Header("Cache-Control", "no-cache")
			files.ServeHTTP(c.Writer, c.Request)
		})
	}

	return r
}

// queryInt reads a positive integer query parameter, capped at max
func queryInt(c *gin.Context, name string, def, max int) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

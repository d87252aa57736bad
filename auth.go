package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost       = 12
	loginRateWindow  = 60 * time.Second
	maxLoginAttempts = 10
	adminSubject     = "admin"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrRateLimited        = errors.New("too many login attempts, try again later")
	ErrInvalidCredentials = errors.New("invalid password")
	ErrAdminDisabled      = errors.New("admin login is not configured")
)

// Auth guards the operator endpoints with a bcrypt password and HS256 tokens
type Auth struct {
	passHash  []byte
	jwtSecret []byte
	ttl       time.Duration

	// Rate limiting for login attempts (IP -> attempts)
	rateMu  sync.Mutex
	rateMap map[string]*rateEntry
}

type rateEntry struct {
	Count   int
	ResetAt time.Time
}

// NewAuth creates the admin authenticator. db may be nil.
func NewAuth(cfg AdminConfig, db *DB) *Auth {
	ttl := time.Duration(cfg.TokenTTL) * time.Hour
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		secret = loadOrCreateSecret(db)
	}
	return &Auth{
		passHash:  []byte(cfg.PasswordHash),
		jwtSecret: secret,
		ttl:       ttl,
		rateMap:   make(map[string]*rateEntry),
	}
}

// loadOrCreateSecret loads the JWT secret from the database, or generates
// and persists a new one if none exists.
func loadOrCreateSecret(db *DB) []byte {
	if db != nil {
		h, err := db.GetSetting("jwt_secret")
		if err != nil {
			log.Printf("auth: reading JWT secret: %v", err)
		}
		if b, err := hex.DecodeString(h); err == nil && len(b) == 32 {
			return b
		}
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic("failed to generate JWT secret: " + err.Error())
	}
	if db != nil {
		if err := db.SetSetting("jwt_secret", hex.EncodeToString(secret)); err != nil {
			log.Printf("warning: could not persist JWT secret: %v", err)
		}
	}
	return secret
}

// HashPassword produces a hash suitable for admin.password_hash
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Enabled reports whether an admin password has been configured
func (a *Auth) Enabled() bool {
	return len(a.passHash) > 0
}

// Login checks the admin password and returns a signed token
func (a *Auth) Login(password, ip string) (string, error) {
	if !a.Enabled() {
		return "", ErrAdminDisabled
	}
	if !a.checkRate(ip) {
		return "", ErrRateLimited
	}
	if err := bcrypt.CompareHashAndPassword(a.passHash, []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return a.generateToken()
}

// ValidateToken verifies signature, algorithm, expiry and subject
func (a *Auth) ValidateToken(tokenStr string) error {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return ErrUnauthorized
	}
	if sub, _ := claims["sub"].(string); sub != adminSubject {
		return ErrUnauthorized
	}
	return nil
}

func (a *Auth) generateToken() (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": adminSubject,
		"exp": now.Add(a.ttl).Unix(),
		"iat": now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

func (a *Auth) checkRate(ip string) bool {
	a.rateMu.Lock()
	defer a.rateMu.Unlock()

	now := time.Now()
	entry, ok := a.rateMap[ip]
	if !ok || now.After(entry.ResetAt) {
		a.rateMap[ip] = &rateEntry{Count: 1, ResetAt: now.Add(loginRateWindow)}
		return true
	}
	entry.Count++
	return entry.Count <= maxLoginAttempts
}

// RequireAdmin rejects requests without a valid bearer token
func (a *Auth) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || a.ValidateToken(tok) != nil {
			c.AbortWithStatusJSON(401, gin.H{"error": ErrUnauthorized.Error()})
			return
		}
		c.Next()
	}
}

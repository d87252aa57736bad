package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full server configuration. Values come from defaults, then
// an optional YAML file, then WINTER3D_* environment variables.
type Config struct {
	Server     ServerConfig `mapstructure:"server"`
	Game       GameConfig   `mapstructure:"game"`
	Round      RoundConfig  `mapstructure:"round"`
	SpawnZones []SpawnZone  `mapstructure:"spawn_zones"`
	DB         DBConfig     `mapstructure:"db"`
	Admin      AdminConfig  `mapstructure:"admin"`
	MQ         MQConfig     `mapstructure:"mq"`
	Redis      RedisConfig  `mapstructure:"redis"`
	GRPC       GRPCConfig   `mapstructure:"grpc"`
}

type ServerConfig struct {
	ID             string `mapstructure:"id"`
	Addr           string `mapstructure:"addr"`
	ClientDir      string `mapstructure:"client_dir"`
	PublicURL      string `mapstructure:"public_url"`
	TickRate       int    `mapstructure:"tick_rate"`
	AllowAnyOrigin bool   `mapstructure:"allow_any_origin"`
	Debug          bool   `mapstructure:"debug"`
}

// TickInterval is the period of the simulation ticker
func (s ServerConfig) TickInterval() time.Duration {
	return time.Second / time.Duration(s.TickRate)
}

// GameConfig holds arena and combat constants
type GameConfig struct {
	MapHalfSize      float64 `mapstructure:"map_half_size"`
	CollisionRadius  float64 `mapstructure:"collision_radius"`
	MoveSpeed        float64 `mapstructure:"move_speed"`
	Gravity          float64 `mapstructure:"gravity"`
	JumpSpeed        float64 `mapstructure:"jump_speed"`
	EyeHeight        float64 `mapstructure:"eye_height"`
	BodyCenterHeight float64 `mapstructure:"body_center_height"`
	Damage           int     `mapstructure:"damage"`
}

// RoundConfig holds phase timings, in seconds
type RoundConfig struct {
	MinPlayersToStart int     `mapstructure:"min_players_to_start"`
	Countdown         float64 `mapstructure:"countdown"`
	Duration          float64 `mapstructure:"duration"`
	EndDisplay        float64 `mapstructure:"end_display"`
	PostRoundStats    float64 `mapstructure:"post_round_stats"`
	RespawnDelay      float64 `mapstructure:"respawn_delay"`
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func (r RoundConfig) CountdownDuration() time.Duration      { return seconds(r.Countdown) }
func (r RoundConfig) RoundDuration() time.Duration          { return seconds(r.Duration) }
func (r RoundConfig) EndDisplayDuration() time.Duration     { return seconds(r.EndDisplay) }
func (r RoundConfig) PostRoundStatsDuration() time.Duration { return seconds(r.PostRoundStats) }
func (r RoundConfig) RespawnDelayDuration() time.Duration   { return seconds(r.RespawnDelay) }

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type AdminConfig struct {
	PasswordHash string `mapstructure:"password_hash"`
	JWTSecret    string `mapstructure:"jwt_secret"`
	TokenTTL     int    `mapstructure:"token_ttl_hours"`
}

type MQConfig struct {
	URL   string `mapstructure:"url"`
	Queue string `mapstructure:"queue"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type GRPCConfig struct {
	Addr string `mapstructure:"addr"`
}

// DefaultSpawnZones is the arena layout used when no zones are configured
func DefaultSpawnZones() []SpawnZone {
	return []SpawnZone{
		{Name: "north", X: 0, Z: 60, Radius: 10},
		{Name: "south", X: 0, Z: -60, Radius: 10},
		{Name: "east", X: 60, Z: 0, Radius: 10},
		{Name: "west", X: -60, Z: 0, Radius: 10},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.id", "")
	v.SetDefault("server.addr", ":3000")
	v.SetDefault("server.client_dir", "")
	v.SetDefault("server.public_url", "")
	v.SetDefault("server.tick_rate", 30)
	v.SetDefault("server.allow_any_origin", false)
	v.SetDefault("server.debug", false)

	v.SetDefault("game.map_half_size", 100.0)
	v.SetDefault("game.collision_radius", 0.5)
	v.SetDefault("game.move_speed", 5.0)
	v.SetDefault("game.gravity", -25.0)
	v.SetDefault("game.jump_speed", 15.0)
	v.SetDefault("game.eye_height", 1.5)
	v.SetDefault("game.body_center_height", 1.0)
	v.SetDefault("game.damage", 35)

	v.SetDefault("round.min_players_to_start", 2)
	v.SetDefault("round.countdown", 10.0)
	v.SetDefault("round.duration", 180.0)
	v.SetDefault("round.end_display", 5.0)
	v.SetDefault("round.post_round_stats", 10.0)
	v.SetDefault("round.respawn_delay", 5.0)

	zones := make([]map[string]interface{}, 0, 4)
	for _, z := range DefaultSpawnZones() {
		zones = append(zones, map[string]interface{}{"name": z.Name, "x": z.X, "z": z.Z, "radius": z.Radius})
	}
	v.SetDefault("spawn_zones", zones)

	v.SetDefault("db.path", "winter3d.db")
	v.SetDefault("admin.password_hash", "")
	v.SetDefault("admin.jwt_secret", "")
	v.SetDefault("admin.token_ttl_hours", 12)
	v.SetDefault("mq.url", "")
	v.SetDefault("mq.queue", "winter3d.round_results")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("grpc.addr", "")
}

// LoadConfig reads .env (if present), the YAML file at path (if present) and
// the environment. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("config: .env not loaded: %v", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("WINTER3D")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
			log.Printf("config: %s not found, using defaults", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the simulation cannot run with and fills in the
// fallback spawn zone and server id.
func (c *Config) Validate() error {
	if c.Server.TickRate <= 0 {
		return fmt.Errorf("server.tick_rate must be positive, got %d", c.Server.TickRate)
	}
	if c.Game.MapHalfSize <= c.Game.CollisionRadius {
		return fmt.Errorf("game.map_half_size (%g) must exceed game.collision_radius (%g)", c.Game.MapHalfSize, c.Game.CollisionRadius)
	}
	if c.Game.CollisionRadius <= 0 {
		return fmt.Errorf("game.collision_radius must be positive")
	}
	if c.Game.Damage < 0 {
		return fmt.Errorf("game.damage must not be negative")
	}
	if c.Round.MinPlayersToStart < 1 {
		return fmt.Errorf("round.min_players_to_start must be at least 1")
	}
	for name, d := range map[string]float64{
		"round.countdown":        c.Round.Countdown,
		"round.duration":         c.Round.Duration,
		"round.end_display":      c.Round.EndDisplay,
		"round.post_round_stats": c.Round.PostRoundStats,
		"round.respawn_delay":    c.Round.RespawnDelay,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	for _, z := range c.SpawnZones {
		if z.Radius < 0 {
			return fmt.Errorf("spawn zone %q has negative radius", z.Name)
		}
	}
	if len(c.SpawnZones) == 0 {
		log.Printf("config: no spawn zones configured, using %q at the origin", FallbackSpawnZone.Name)
		c.SpawnZones = []SpawnZone{FallbackSpawnZone}
	}
	if c.Server.ID == "" {
		c.Server.ID = GenerateID()
	}
	return nil
}

// DefaultConfig returns the built-in configuration without touching files or
// the environment.
func DefaultConfig() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(err)
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	return &cfg
}

// Package config loads the HCL server configuration.
package config

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/holdem-engine/internal/game"
	"github.com/lox/holdem-engine/internal/store"
	"github.com/lox/holdem-engine/internal/table"
)

// Config is the complete server configuration.
type Config struct {
	Server ServerSettings `hcl:"server,block"`
	Store  *StoreSettings `hcl:"store,block"`
	Tables []TableConfig  `hcl:"table,block"`
	Bots   []BotConfig    `hcl:"bot,block"`
}

// ServerSettings holds process-wide settings, including the timers every table
// runs with.
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
	LogFile  string `hcl:"log_file,optional"`

	TurnTimeout        string `hcl:"turn_timeout,optional"`
	AutoStart          *bool  `hcl:"auto_start,optional"`
	SitOutAfterMissed  *int   `hcl:"sit_out_after_missed,optional"`
	PauseAfterTimeouts int    `hcl:"pause_after_timeouts,optional"`
	AutoCloseAfter     string `hcl:"auto_close_after,optional"`
	RunItTwiceWindow   string `hcl:"run_it_twice_window,optional"`
	// Seed makes shuffles reproducible. Zero draws a secure random stream.
	Seed int64 `hcl:"seed,optional"`
}

// StoreSettings selects where games and hole cards live.
type StoreSettings struct {
	Backend       string `hcl:"backend,optional"`
	RedisAddr     string `hcl:"redis_addr,optional"`
	RedisPassword string `hcl:"redis_password,optional"`
	RedisDB       int    `hcl:"redis_db,optional"`
	Prefix        string `hcl:"prefix,optional"`
	TTL           string `hcl:"ttl,optional"`
}

// TableConfig defines a table created at startup.
type TableConfig struct {
	Name        string `hcl:"name,label"`
	MaxPlayers  int    `hcl:"max_players,optional"`
	SmallBlind  int    `hcl:"small_blind"`
	BigBlind    int    `hcl:"big_blind"`
	BuyInMin    int    `hcl:"buy_in_min,optional"`
	BuyInMax    int    `hcl:"buy_in_max,optional"`
	StrictCheck bool   `hcl:"strict_check,optional"`
}

// BotConfig seats a server-side bot at one or more tables.
type BotConfig struct {
	Name     string   `hcl:"name,label"`
	Strategy string   `hcl:"strategy"`
	Tables   []string `hcl:"tables,optional"`
	// BuyIn of zero buys in for the table maximum.
	BuyIn int `hcl:"buy_in,optional"`
}

// Store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Strategies lists the bot strategies a config may name.
var Strategies = []string{"call", "random", "aggressive"}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	cfg := &Config{
		Tables: []TableConfig{{
			Name:       "main",
			SmallBlind: 1,
			BigBlind:   2,
		}},
		Bots: []BotConfig{{
			Name:     "bot1",
			Strategy: "call",
		}},
	}
	cfg.applyDefaults()
	return cfg
}

// Load reads filename. A missing file yields DefaultConfig.
func Load(filename string) (*Config, error) {
	src, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, err
	}
	return Parse(src, filename)
}

// Parse decodes HCL source and applies defaults.
func Parse(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var cfg Config
	diags = gohcl.DecodeBody(file.Body, nil, &cfg)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	s := &c.Server
	if s.Address == "" {
		s.Address = "localhost"
	}
	if s.Port == 0 {
		s.Port = 8080
	}
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	if s.TurnTimeout == "" {
		s.TurnTimeout = "30s"
	}
	if s.AutoStart == nil {
		on := true
		s.AutoStart = &on
	}
	if s.SitOutAfterMissed == nil {
		n := table.DefaultConfig().SitOutAfterMissed
		s.SitOutAfterMissed = &n
	}

	if c.Store == nil {
		c.Store = &StoreSettings{}
	}
	if c.Store.Backend == "" {
		c.Store.Backend = BackendMemory
	}
	if c.Store.Backend == BackendRedis && c.Store.RedisAddr == "" {
		c.Store.RedisAddr = "localhost:6379"
	}

	for i := range c.Tables {
		t := &c.Tables[i]
		if t.MaxPlayers == 0 {
			t.MaxPlayers = 6
		}
		if t.BuyInMin == 0 {
			t.BuyInMin = t.BigBlind * 50 // 50 big blinds minimum
		}
		if t.BuyInMax == 0 {
			t.BuyInMax = t.BigBlind * 500
		}
	}

	for i := range c.Bots {
		b := &c.Bots[i]
		if b.Strategy == "" {
			b.Strategy = "call"
		}
		if len(b.Tables) == 0 {
			for _, t := range c.Tables {
				b.Tables = append(b.Tables, t.Name)
			}
		}
	}
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if _, err := c.TableService(); err != nil {
		return err
	}
	if _, err := c.RedisOptions(); err != nil {
		return err
	}
	switch c.Store.Backend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	if len(c.Tables) == 0 {
		return fmt.Errorf("at least one table must be configured")
	}
	names := make(map[string]bool, len(c.Tables))
	for _, t := range c.Tables {
		if names[t.Name] {
			return fmt.Errorf("table %s: defined twice", t.Name)
		}
		names[t.Name] = true
		if err := t.Meta().Validate(); err != nil {
			return fmt.Errorf("table %s: %w", t.Name, err)
		}
	}

	for _, b := range c.Bots {
		if !slices.Contains(Strategies, b.Strategy) {
			return fmt.Errorf("bot %s: invalid strategy %s", b.Name, b.Strategy)
		}
		if b.BuyIn < 0 {
			return fmt.Errorf("bot %s: buy-in must be positive", b.Name)
		}
		for _, name := range b.Tables {
			if !names[name] {
				return fmt.Errorf("bot %s: unknown table %s", b.Name, name)
			}
		}
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// TableByName returns the named table, or nil.
func (c *Config) TableByName(name string) *TableConfig {
	for i := range c.Tables {
		if c.Tables[i].Name == name {
			return &c.Tables[i]
		}
	}
	return nil
}

// TableService converts the server timers into a table.Config.
func (c *Config) TableService() (table.Config, error) {
	s := c.Server
	cfg := table.Config{
		PauseAfterTimeouts: s.PauseAfterTimeouts,
	}
	if s.AutoStart != nil {
		cfg.AutoStart = *s.AutoStart
	}
	if s.SitOutAfterMissed != nil {
		cfg.SitOutAfterMissed = *s.SitOutAfterMissed
	}

	for _, d := range []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"turn_timeout", s.TurnTimeout, &cfg.TurnTimeout},
		{"auto_close_after", s.AutoCloseAfter, &cfg.AutoCloseAfter},
		{"run_it_twice_window", s.RunItTwiceWindow, &cfg.RunItTwiceWindow},
	} {
		if d.value == "" {
			continue
		}
		v, err := time.ParseDuration(d.value)
		if err != nil || v < 0 {
			return table.Config{}, fmt.Errorf("server %s: invalid duration %q", d.name, d.value)
		}
		*d.dst = v
	}
	if cfg.SitOutAfterMissed < 0 || cfg.PauseAfterTimeouts < 0 {
		return table.Config{}, fmt.Errorf("server: timeout thresholds must not be negative")
	}
	return cfg, nil
}

// RedisOptions returns the redis store settings.
func (c *Config) RedisOptions() (store.RedisOptions, error) {
	s := c.Store
	opts := store.RedisOptions{
		Addr:     s.RedisAddr,
		Password: s.RedisPassword,
		DB:       s.RedisDB,
		Prefix:   s.Prefix,
	}
	if s.TTL != "" {
		ttl, err := time.ParseDuration(s.TTL)
		if err != nil {
			return store.RedisOptions{}, fmt.Errorf("store ttl: invalid duration %q", s.TTL)
		}
		opts.TTL = ttl
	}
	return opts, nil
}

// Meta returns the table rules.
func (t TableConfig) Meta() game.Meta {
	return game.Meta{
		MaxPlayers:  t.MaxPlayers,
		Blinds:      game.Blinds{Small: t.SmallBlind, Big: t.BigBlind},
		MinBuyIn:    t.BuyInMin,
		MaxBuyIn:    t.BuyInMax,
		StrictCheck: t.StrictCheck,
	}
}

// BotsFor returns the bots configured for a table.
func (c *Config) BotsFor(tableName string) []BotConfig {
	var bots []BotConfig
	for _, b := range c.Bots {
		if slices.Contains(b.Tables, tableName) {
			bots = append(bots, b)
		}
	}
	return bots
}

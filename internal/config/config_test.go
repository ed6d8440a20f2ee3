package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/holdem-engine/internal/game"
)

func TestDefaultConfigIsValid(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "localhost:8080", cfg.Addr())
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, []string{"main"}, cfg.Bots[0].Tables)
	assert.Equal(t, 100, cfg.Tables[0].BuyInMin)
	assert.Equal(t, 1000, cfg.Tables[0].BuyInMax)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.hcl"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestParse(t *testing.T) {
	t.Parallel()
	src := `
server {
  port                 = 9000
  turn_timeout         = "10s"
  auto_start           = false
  sit_out_after_missed = 0
  pause_after_timeouts = 4
  run_it_twice_window  = "3s"
}

store {
  backend    = "redis"
  prefix     = "test"
  ttl        = "1h"
}

table "nl10" {
  small_blind  = 5
  big_blind    = 10
  strict_check = true
}

bot "shark" {
  strategy = "aggressive"
  buy_in   = 500
}
`
	cfg, err := Parse([]byte(src), "test.hcl")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	svc, err := cfg.TableService()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, svc.TurnTimeout)
	assert.False(t, svc.AutoStart)
	assert.Equal(t, 0, svc.SitOutAfterMissed)
	assert.Equal(t, 4, svc.PauseAfterTimeouts)
	assert.Equal(t, 3*time.Second, svc.RunItTwiceWindow)
	assert.Zero(t, svc.AutoCloseAfter)

	redis, err := cfg.RedisOptions()
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", redis.Addr)
	assert.Equal(t, "test", redis.Prefix)
	assert.Equal(t, time.Hour, redis.TTL)

	assert.Equal(t, game.Meta{
		MaxPlayers:  6,
		Blinds:      game.Blinds{Small: 5, Big: 10},
		MinBuyIn:    500,
		MaxBuyIn:    5000,
		StrictCheck: true,
	}, cfg.TableByName("nl10").Meta())
	assert.Nil(t, cfg.TableByName("missing"))
	assert.Len(t, cfg.BotsFor("nl10"), 1)
}

func TestExampleConfig(t *testing.T) {
	t.Parallel()
	cfg, err := Load(filepath.Join("..", "..", "holdem.hcl"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.Tables, 2)
	assert.Len(t, cfg.BotsFor("main"), 2)
	assert.Len(t, cfg.BotsFor("high-stakes"), 1)
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"bad duration", func(c *Config) { c.Server.TurnTimeout = "soon" }},
		{"negative duration", func(c *Config) { c.Server.AutoCloseAfter = "-1m" }},
		{"unknown backend", func(c *Config) { c.Store.Backend = "etcd" }},
		{"bad ttl", func(c *Config) { c.Store.TTL = "forever" }},
		{"no tables", func(c *Config) { c.Tables = nil; c.Bots = nil }},
		{"duplicate table", func(c *Config) { c.Tables = append(c.Tables, c.Tables[0]) }},
		{"blinds", func(c *Config) { c.Tables[0].BigBlind = 0 }},
		{"seats", func(c *Config) { c.Tables[0].MaxPlayers = 11 }},
		{"buy-in range", func(c *Config) { c.Tables[0].BuyInMax = 50 }},
		{"strategy", func(c *Config) { c.Bots[0].Strategy = "chart" }},
		{"bot table", func(c *Config) { c.Bots[0].Tables = []string{"nowhere"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

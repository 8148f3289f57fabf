package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/feltserver/felt/internal/game"
)

// Config is the full server configuration, decoded from HCL.
type Config struct {
	Server      ServerSettings    `hcl:"server,block"`
	Tables      []TableBlock      `hcl:"table,block"`
	Timers      *TimerBlock       `hcl:"timers,block"`
	Runout      *RunoutBlock      `hcl:"runout,block"`
	Reconnect   *ReconnectBlock   `hcl:"reconnect,block"`
	Broadcast   *BroadcastBlock   `hcl:"broadcast,block"`
	Persistence *PersistenceBlock `hcl:"persistence,block"`
}

// ServerSettings contains process-level configuration.
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

// TableBlock defines one poker table.
type TableBlock struct {
	Name         string `hcl:"name,label"`
	Variant      string `hcl:"variant,optional"`
	BettingMode  string `hcl:"betting_mode,optional"`
	SmallBlind   int    `hcl:"small_blind"`
	BigBlind     int    `hcl:"big_blind"`
	MaxSeats     int    `hcl:"max_seats,optional"`
	RITUnanimous bool   `hcl:"rit_unanimous,optional"`
	RITDecider   string `hcl:"rit_decider,optional"`
	AutoStart    bool   `hcl:"auto_start,optional"`
}

// TimerBlock configures the turn timer and time bank. Values are
// duration strings ("15s", "30m").
type TimerBlock struct {
	DefaultDuration   string `hcl:"default_duration,optional"`
	WarningThreshold  string `hcl:"warning_threshold,optional"`
	TimeBankInitial   string `hcl:"time_bank_initial,optional"`
	TimeBankMax       string `hcl:"time_bank_max,optional"`
	ReplenishAmount   string `hcl:"time_bank_replenish_amount,optional"`
	ReplenishInterval string `hcl:"time_bank_replenish_interval,optional"`
}

// RunoutBlock configures the all-in auto-runout.
type RunoutBlock struct {
	RevealGap string `hcl:"reveal_gap,optional"`
}

// ReconnectBlock configures disconnect recovery.
type ReconnectBlock struct {
	GraceTimeout   string `hcl:"grace_timeout,optional"`
	MaxHistorySize int    `hcl:"max_history_size,optional"`
	TokenSecret    string `hcl:"token_secret,optional"`
}

// BroadcastBlock configures state delivery.
type BroadcastBlock struct {
	MaxUpdatesPerSecond int `hcl:"max_updates_per_second,optional"`
}

// PersistenceBlock configures the snapshot store.
type PersistenceBlock struct {
	Path string `hcl:"path,optional"`
}

// TimerConfig is the parsed form of TimerBlock.
type TimerConfig struct {
	DefaultDuration   time.Duration
	WarningThreshold  time.Duration
	TimeBankInitial   time.Duration
	TimeBankMax       time.Duration
	ReplenishAmount   time.Duration
	ReplenishInterval time.Duration
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerSettings{
			Address:  "localhost",
			Port:     8090,
			LogLevel: "info",
		},
		Tables: []TableBlock{{
			Name:       "main",
			Variant:    string(game.Holdem),
			SmallBlind: 1,
			BigBlind:   2,
			AutoStart:  true,
		}},
	}
}

// LoadConfig loads configuration from an HCL file, falling back to
// defaults when the file does not exist.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		cfg := DefaultConfig()
		return cfg, cfg.applyDefaults()
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing %s: %s", filename, diags.Error())
	}
	var cfg Config
	if diags := gohcl.DecodeBody(file.Body, nil, &cfg); diags.HasErrors() {
		return nil, fmt.Errorf("decoding %s: %s", filename, diags.Error())
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	if c.Server.Address == "" {
		c.Server.Address = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8090
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	for i := range c.Tables {
		t := &c.Tables[i]
		if t.Variant == "" {
			t.Variant = string(game.Holdem)
		}
		if t.BettingMode == "" {
			t.BettingMode = string(game.NoLimit)
		}
		if t.MaxSeats == 0 {
			t.MaxSeats = 9
		}
	}
	if c.Timers == nil {
		c.Timers = &TimerBlock{}
	}
	setIfEmpty(&c.Timers.DefaultDuration, "15s")
	setIfEmpty(&c.Timers.WarningThreshold, "5s")
	setIfEmpty(&c.Timers.TimeBankInitial, "60s")
	setIfEmpty(&c.Timers.TimeBankMax, "120s")
	setIfEmpty(&c.Timers.ReplenishAmount, "15s")
	setIfEmpty(&c.Timers.ReplenishInterval, "30m")
	if c.Runout == nil {
		c.Runout = &RunoutBlock{}
	}
	setIfEmpty(&c.Runout.RevealGap, "5s")
	if c.Reconnect == nil {
		c.Reconnect = &ReconnectBlock{}
	}
	setIfEmpty(&c.Reconnect.GraceTimeout, "30s")
	if c.Reconnect.MaxHistorySize == 0 {
		c.Reconnect.MaxHistorySize = 100
	}
	if c.Broadcast == nil {
		c.Broadcast = &BroadcastBlock{}
	}
	if c.Broadcast.MaxUpdatesPerSecond == 0 {
		c.Broadcast.MaxUpdatesPerSecond = 20
	}
	if c.Persistence == nil {
		c.Persistence = &PersistenceBlock{}
	}
	setIfEmpty(&c.Persistence.Path, "felt.db")
	return c.Validate()
}

func setIfEmpty(s *string, def string) {
	if *s == "" {
		*s = def
	}
}

// Validate checks the configuration for contradictions before the
// server starts.
func (c *Config) Validate() error {
	for _, t := range c.Tables {
		if t.Name == "" {
			return fmt.Errorf("table without a name")
		}
		if _, err := game.ParseVariant(t.Variant); err != nil {
			return fmt.Errorf("table %s: %w", t.Name, err)
		}
		if _, err := game.ParseBettingMode(t.BettingMode); err != nil {
			return fmt.Errorf("table %s: %w", t.Name, err)
		}
		if t.SmallBlind <= 0 || t.BigBlind < t.SmallBlind {
			return fmt.Errorf("table %s: invalid blinds %d/%d", t.Name, t.SmallBlind, t.BigBlind)
		}
	}
	if _, err := c.TimerConfig(); err != nil {
		return err
	}
	if _, err := c.RevealGap(); err != nil {
		return err
	}
	if _, err := c.GraceTimeout(); err != nil {
		return err
	}
	if c.Reconnect.MaxHistorySize < 1 {
		return fmt.Errorf("reconnect max_history_size must be positive")
	}
	if c.Broadcast.MaxUpdatesPerSecond < 1 {
		return fmt.Errorf("broadcast max_updates_per_second must be positive")
	}
	return nil
}

// TimerConfig parses the timer durations.
func (c *Config) TimerConfig() (TimerConfig, error) {
	var out TimerConfig
	for _, f := range []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"default_duration", c.Timers.DefaultDuration, &out.DefaultDuration},
		{"warning_threshold", c.Timers.WarningThreshold, &out.WarningThreshold},
		{"time_bank_initial", c.Timers.TimeBankInitial, &out.TimeBankInitial},
		{"time_bank_max", c.Timers.TimeBankMax, &out.TimeBankMax},
		{"time_bank_replenish_amount", c.Timers.ReplenishAmount, &out.ReplenishAmount},
		{"time_bank_replenish_interval", c.Timers.ReplenishInterval, &out.ReplenishInterval},
	} {
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return out, fmt.Errorf("timers.%s: %w", f.name, err)
		}
		*f.dst = d
	}
	if out.WarningThreshold >= out.DefaultDuration {
		return out, fmt.Errorf("timers.warning_threshold must be below default_duration")
	}
	return out, nil
}

// RevealGap parses the auto-runout reveal cadence.
func (c *Config) RevealGap() (time.Duration, error) {
	d, err := time.ParseDuration(c.Runout.RevealGap)
	if err != nil {
		return 0, fmt.Errorf("runout.reveal_gap: %w", err)
	}
	return d, nil
}

// GraceTimeout parses the disconnect grace window.
func (c *Config) GraceTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Reconnect.GraceTimeout)
	if err != nil {
		return 0, fmt.Errorf("reconnect.grace_timeout: %w", err)
	}
	return d, nil
}

// GameConfig converts a table block into an engine configuration.
func (t TableBlock) GameConfig() game.Config {
	return game.Config{
		ID:           t.Name,
		Variant:      game.Variant(t.Variant),
		Mode:         game.BettingMode(t.BettingMode),
		SmallBlind:   t.SmallBlind,
		BigBlind:     t.BigBlind,
		MaxSeats:     t.MaxSeats,
		RITUnanimous: t.RITUnanimous,
		RITDecider:   game.RITDeciderConvention(t.RITDecider),
	}
}

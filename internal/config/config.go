package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"crashround/internal/bots"
	"crashround/internal/game"
	"crashround/internal/recorder"
	"crashround/internal/session"

	_ "github.com/joho/godotenv/autoload"
	"gopkg.in/yaml.v3"
)

const (
	MIN_TICK_INTERVAL = 16 * time.Millisecond
	MAX_TICK_INTERVAL = 50 * time.Millisecond
)

type Config struct {
	Port     int            `yaml:"port"`
	Game     GameConfig     `yaml:"game"`
	Recorder RecorderConfig `yaml:"recorder"`
	Bots     BotsConfig     `yaml:"bots"`
	Archive  bool           `yaml:"archive"`
	Mirror   bool           `yaml:"mirror"`
}

type GameConfig struct {
	StartingBalance float64       `yaml:"starting_balance"`
	WaitingDelay    time.Duration `yaml:"waiting_delay"`
	CountdownMin    time.Duration `yaml:"countdown_min"`
	CountdownMax    time.Duration `yaml:"countdown_max"`
	CrashDelay      time.Duration `yaml:"crash_delay"`
	TickInterval    time.Duration `yaml:"tick_interval"`
	HouseEdge       float64       `yaml:"house_edge"`
	BetPolicy       string        `yaml:"bet_policy"`
	ClientSeed      string        `yaml:"client_seed"`
}

type RecorderConfig struct {
	FeedRetention    int `yaml:"feed_retention"`
	HistoryRetention int `yaml:"history_retention"`
}

type BotsConfig struct {
	Enabled bool `yaml:"enabled"`
	Min     int  `yaml:"min"`
	Max     int  `yaml:"max"`
}

func Default() Config {
	return Config{
		Port: 8080,
		Game: GameConfig{
			StartingBalance: game.STARTING_BALANCE,
			WaitingDelay:    game.WAITING_DELAY,
			CountdownMin:    game.COUNTDOWN_MIN,
			CountdownMax:    game.COUNTDOWN_MAX,
			CrashDelay:      game.CRASH_DELAY,
			TickInterval:    game.TICK_INTERVAL,
			HouseEdge:       game.HOUSE_EDGE,
			BetPolicy:       string(game.BetPolicyCountdownOnly),
		},
		Recorder: RecorderConfig{
			FeedRetention:    recorder.DEFAULT_FEED_RETENTION,
			HistoryRetention: recorder.DEFAULT_HISTORY_RETENTION,
		},
		Bots: BotsConfig{
			Enabled: true,
			Min:     bots.MIN_BOTS,
			Max:     bots.MAX_BOTS,
		},
		Archive: true,
		Mirror:  true,
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CRASH_CONFIG_FILE if set, then individual environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("CRASH_CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
		log.Printf("[CONFIG] Loaded %s", path)
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var errs []error
	c.Port = envInt("PORT", c.Port, &errs)
	c.Game.StartingBalance = envFloat("CRASH_STARTING_BALANCE", c.Game.StartingBalance, &errs)
	c.Game.WaitingDelay = envDuration("CRASH_WAITING_DELAY", c.Game.WaitingDelay, &errs)
	c.Game.CountdownMin = envDuration("CRASH_COUNTDOWN_MIN", c.Game.CountdownMin, &errs)
	c.Game.CountdownMax = envDuration("CRASH_COUNTDOWN_MAX", c.Game.CountdownMax, &errs)
	c.Game.CrashDelay = envDuration("CRASH_CRASH_DELAY", c.Game.CrashDelay, &errs)
	c.Game.TickInterval = envDuration("CRASH_TICK_INTERVAL", c.Game.TickInterval, &errs)
	c.Game.HouseEdge = envFloat("CRASH_HOUSE_EDGE", c.Game.HouseEdge, &errs)
	c.Game.BetPolicy = envString("CRASH_BET_POLICY", c.Game.BetPolicy)
	c.Game.ClientSeed = envString("CRASH_CLIENT_SEED", c.Game.ClientSeed)
	c.Recorder.FeedRetention = envInt("CRASH_FEED_RETENTION", c.Recorder.FeedRetention, &errs)
	c.Recorder.HistoryRetention = envInt("CRASH_HISTORY_RETENTION", c.Recorder.HistoryRetention, &errs)
	c.Bots.Enabled = envBool("CRASH_BOTS_ENABLED", c.Bots.Enabled, &errs)
	c.Archive = envBool("CRASH_ARCHIVE_ENABLED", c.Archive, &errs)
	c.Mirror = envBool("CRASH_MIRROR_ENABLED", c.Mirror, &errs)
	return errors.Join(errs...)
}

func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	g := c.Game
	if g.StartingBalance < 0 {
		errs = append(errs, errors.New("starting balance must not be negative"))
	}
	if g.WaitingDelay < 0 || g.CrashDelay < 0 {
		errs = append(errs, errors.New("phase delays must not be negative"))
	}
	if g.CountdownMin <= 0 || g.CountdownMax < g.CountdownMin {
		errs = append(errs, fmt.Errorf("countdown window %v..%v is invalid", g.CountdownMin, g.CountdownMax))
	}
	if g.TickInterval < MIN_TICK_INTERVAL || g.TickInterval > MAX_TICK_INTERVAL {
		errs = append(errs, fmt.Errorf("tick interval %v outside %v..%v", g.TickInterval, MIN_TICK_INTERVAL, MAX_TICK_INTERVAL))
	}
	if g.HouseEdge <= 0 || g.HouseEdge >= 0.5 {
		errs = append(errs, fmt.Errorf("house edge %v outside (0, 0.5)", g.HouseEdge))
	}
	switch game.BetPolicy(g.BetPolicy) {
	case game.BetPolicyCountdownOnly, game.BetPolicyAllowActive:
	default:
		errs = append(errs, fmt.Errorf("unknown bet policy %q", g.BetPolicy))
	}
	if c.Recorder.FeedRetention <= 0 || c.Recorder.HistoryRetention <= 0 {
		errs = append(errs, errors.New("retention must be positive"))
	}
	if c.Bots.Enabled && (c.Bots.Min <= 0 || c.Bots.Max < c.Bots.Min) {
		errs = append(errs, fmt.Errorf("bot count %d..%d is invalid", c.Bots.Min, c.Bots.Max))
	}
	return errors.Join(errs...)
}

// SessionOptions maps the configuration onto the engine and its consumers.
func (c Config) SessionOptions() session.Options {
	opts := game.DefaultOptions()
	opts.StartingBalance = c.Game.StartingBalance
	opts.WaitingDelay = c.Game.WaitingDelay
	opts.CountdownMin = c.Game.CountdownMin
	opts.CountdownMax = c.Game.CountdownMax
	opts.CrashDelay = c.Game.CrashDelay
	opts.TickInterval = c.Game.TickInterval
	opts.BetPolicy = game.BetPolicy(c.Game.BetPolicy)
	opts.Source = &game.SeededSource{HouseEdge: c.Game.HouseEdge, ClientSeed: c.Game.ClientSeed}

	out := session.Options{
		Game: opts,
		Recorder: recorder.Options{
			FeedRetention:    c.Recorder.FeedRetention,
			HistoryRetention: c.Recorder.HistoryRetention,
		},
	}
	if c.Bots.Enabled {
		botOpts := bots.DefaultOptions()
		botOpts.MinBots = c.Bots.Min
		botOpts.MaxBots = c.Bots.Max
		out.Bots = &botOpts
	}
	return out
}

func envString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func envInt(key string, defaultVal int, errs *[]error) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultVal
	}
	return n
}

func envFloat(key string, defaultVal float64, errs *[]error) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultVal
	}
	return f
}

func envDuration(key string, defaultVal time.Duration, errs *[]error) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultVal
	}
	return d
}

func envBool(key string, defaultVal bool, errs *[]error) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultVal
	}
	return b
}

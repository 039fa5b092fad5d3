package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"SlaEscrow/internal/calculator"
	"SlaEscrow/internal/model"
	"SlaEscrow/internal/validation"
)

// Feed kinds.
const (
	FeedHTTP       = "http"
	FeedPrometheus = "prometheus"
	FeedStatic     = "static"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreFile   = "file"
	StoreMemory = "memory"
)

// FeedConfig declares one SLI source.
type FeedConfig struct {
	Source string `yaml:"source"`
	Kind   string `yaml:"kind"`
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
	// Query is the PromQL expression of a prometheus feed.
	Query string `yaml:"query"`
	// Value is the fixed SLI of a static feed.
	Value string `yaml:"value"`
}

// GovernanceConfig holds governance parameters as written in YAML.
// Rates are decimal strings.
type GovernanceConfig struct {
	ProtocolRewardRate string `yaml:"protocol_reward_rate"`
	DeployerRewardRate string `yaml:"deployer_reward_rate"`
	ValidatorReward    uint64 `yaml:"validator_reward"`
	ProtocolReward     uint64 `yaml:"protocol_reward"`
	BurnAmount         uint64 `yaml:"burn_amount"`
	DepositByPeriod    uint64 `yaml:"deposit_by_period"`
	MaxLeverage        string `yaml:"max_leverage"`
	MinPeriodLength    int64  `yaml:"min_period_length"`
	MinStartDelay      int64  `yaml:"min_start_delay"`
	MaxPeriods         uint32 `yaml:"max_periods"`
	ProtocolAccount    string `yaml:"protocol_account"`
}

// Balance seeds the in-process ledger at startup.
type Balance struct {
	Token   string `yaml:"token"`
	Account string `yaml:"account"`
	Amount  uint64 `yaml:"amount"`
}

// Config holds all application configuration.
type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Database struct {
		Store       string `yaml:"store"`
		SQLitePath  string `yaml:"sqlite_path"`
		StateFile   string `yaml:"state_file"`
		HistoryPath string `yaml:"history_path"`
	} `yaml:"database"`
	Redis struct {
		URL     string        `yaml:"url"`
		LockTTL time.Duration `yaml:"lock_ttl"`
	} `yaml:"redis"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Feeds    []FeedConfig `yaml:"feeds"`
	Schedule struct {
		ValidateCron string `yaml:"validate_cron"`
		ReportCron   string `yaml:"report_cron"`
	} `yaml:"schedule"`
	Validation struct {
		Precision     uint64        `yaml:"precision"`
		MaxFeedAge    time.Duration `yaml:"max_feed_age"`
		MaxConfidence string        `yaml:"max_confidence"`
		Order         string        `yaml:"order"`
		RequireFinal  bool          `yaml:"require_final"`
	} `yaml:"validation"`
	Governance GovernanceConfig `yaml:"governance"`
	Registry   struct {
		Capacity int `yaml:"capacity"`
	} `yaml:"registry"`
	Ledger struct {
		Genesis []Balance `yaml:"genesis"`
	} `yaml:"ledger"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Load reads envFile into the environment if it exists, then config from a
// YAML file, then applies environment variable overrides.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("HISTORY_PATH"); v != "" {
		cfg.Database.HistoryPath = v
	}
	if v := os.Getenv("CRON_VALIDATE"); v != "" {
		cfg.Schedule.ValidateCron = v
	}
	if v := os.Getenv("VALIDATION_ORDER"); v != "" {
		cfg.Validation.Order = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("REGISTRY_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Registry.Capacity = n
		}
	}

	// Defaults
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Database.Store == "" {
		cfg.Database.Store = StoreSQLite
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/sla_escrow.db"
	}
	if cfg.Database.StateFile == "" {
		cfg.Database.StateFile = "data/agreements.json"
	}
	if cfg.Database.HistoryPath == "" {
		cfg.Database.HistoryPath = "data/sla_history.db"
	}
	if cfg.Redis.LockTTL == 0 {
		cfg.Redis.LockTTL = 30 * time.Second
	}
	if cfg.Schedule.ValidateCron == "" {
		cfg.Schedule.ValidateCron = "0 */5 * * * *"
	}
	if cfg.Schedule.ReportCron == "" {
		cfg.Schedule.ReportCron = "0 0 9 * * *"
	}
	if cfg.Validation.Precision == 0 {
		cfg.Validation.Precision = 10000
	}
	if cfg.Validation.MaxFeedAge == 0 {
		cfg.Validation.MaxFeedAge = 10 * time.Minute
	}
	if cfg.Validation.Order == "" {
		cfg.Validation.Order = string(validation.OrderAny)
	}
	if cfg.Governance.ProtocolRewardRate == "" {
		cfg.Governance.ProtocolRewardRate = "0"
	}
	if cfg.Governance.DeployerRewardRate == "" {
		cfg.Governance.DeployerRewardRate = "0"
	}
	if cfg.Governance.MaxLeverage == "" {
		cfg.Governance.MaxLeverage = "10"
	}
	if cfg.Governance.ProtocolAccount == "" {
		cfg.Governance.ProtocolAccount = "protocol"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	for i := range cfg.Feeds {
		if cfg.Feeds[i].Kind == "" {
			cfg.Feeds[i].Kind = FeedHTTP
		}
	}

	return cfg, nil
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	switch c.Database.Store {
	case StoreSQLite, StoreFile, StoreMemory:
	default:
		return fmt.Errorf("database.store must be one of sqlite, file, memory")
	}
	if c.Redis.URL != "" && c.Database.Store == StoreMemory {
		return fmt.Errorf("redis.url shares locks between daemons and needs a persistent database.store")
	}
	if len(c.Feeds) == 0 {
		return fmt.Errorf("at least one feed is required")
	}
	seen := make(map[string]bool, len(c.Feeds))
	for _, f := range c.Feeds {
		if f.Source == "" {
			return fmt.Errorf("feeds: source is required")
		}
		if seen[f.Source] {
			return fmt.Errorf("feeds: duplicate source %q", f.Source)
		}
		seen[f.Source] = true
		switch f.Kind {
		case FeedHTTP:
			if f.URL == "" {
				return fmt.Errorf("feed %s: url is required", f.Source)
			}
		case FeedPrometheus:
			if f.URL == "" || f.Query == "" {
				return fmt.Errorf("feed %s: url and query are required", f.Source)
			}
		case FeedStatic:
			if _, err := calculator.ParseDec(f.Value); err != nil {
				return fmt.Errorf("feed %s: %w", f.Source, err)
			}
		default:
			return fmt.Errorf("feed %s: unknown kind %q", f.Source, f.Kind)
		}
	}
	if _, err := c.ValidationConfig(); err != nil {
		return err
	}
	gov, err := c.GovernanceParams()
	if err != nil {
		return err
	}
	return gov.Validate()
}

// ValidationConfig converts the validation section.
func (c *Config) ValidationConfig() (validation.Config, error) {
	order, err := validation.ParseOrder(c.Validation.Order)
	if err != nil {
		return validation.Config{}, err
	}
	if c.Validation.Precision == 0 || c.Validation.Precision%100 != 0 {
		return validation.Config{}, model.ErrInvalidPrecision.Wrapf("precision %d", c.Validation.Precision)
	}
	out := validation.Config{
		Precision:  c.Validation.Precision,
		MaxFeedAge: c.Validation.MaxFeedAge,
		Order:      order,
	}
	if c.Validation.MaxConfidence != "" {
		if out.MaxConfidence, err = calculator.ParseDec(c.Validation.MaxConfidence); err != nil {
			return validation.Config{}, fmt.Errorf("validation.max_confidence: %w", err)
		}
	}
	return out, nil
}

// GovernanceParams converts the governance section.
func (c *Config) GovernanceParams() (model.Governance, error) {
	g := c.Governance
	protocolRate, err := calculator.ParseDec(g.ProtocolRewardRate)
	if err != nil {
		return model.Governance{}, fmt.Errorf("governance.protocol_reward_rate: %w", err)
	}
	deployerRate, err := calculator.ParseDec(g.DeployerRewardRate)
	if err != nil {
		return model.Governance{}, fmt.Errorf("governance.deployer_reward_rate: %w", err)
	}
	maxLeverage, err := calculator.ParseDec(g.MaxLeverage)
	if err != nil {
		return model.Governance{}, fmt.Errorf("governance.max_leverage: %w", err)
	}
	return model.Governance{
		ProtocolRewardRate: protocolRate,
		DeployerRewardRate: deployerRate,
		ValidatorReward:    g.ValidatorReward,
		ProtocolReward:     g.ProtocolReward,
		BurnAmount:         g.BurnAmount,
		DepositByPeriod:    g.DepositByPeriod,
		MaxLeverage:        maxLeverage,
		MinPeriodLength:    g.MinPeriodLength,
		MinStartDelay:      g.MinStartDelay,
		MaxPeriods:         g.MaxPeriods,
	}, nil
}

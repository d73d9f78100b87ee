package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// Config holds all application configuration.
type Config struct {
	Monitor struct {
		Interval    time.Duration `yaml:"interval"`
		CallTimeout time.Duration `yaml:"call_timeout"`
		Concurrency int           `yaml:"concurrency"`
		Timezone    string        `yaml:"timezone"`
	} `yaml:"monitor"`
	Universe struct {
		URL  string `yaml:"url"`
		File string `yaml:"file"`
	} `yaml:"universe"`
	DataSource struct {
		NSEBaseURL   string `yaml:"nse_base_url"`
		YahooBaseURL string `yaml:"yahoo_base_url"`
		Suffix       string `yaml:"suffix"`
		CachePath    string `yaml:"cache_path"`
	} `yaml:"data_source"`
	Store struct {
		Backend string `yaml:"backend"`
		Path    string `yaml:"path"`
		Redis   struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Key      string `yaml:"key"`
		} `yaml:"redis"`
	} `yaml:"store"`
	Email struct {
		Host           string   `yaml:"host"`
		Port           int      `yaml:"port"`
		Username       string   `yaml:"username"`
		Password       string   `yaml:"password"`
		From           string   `yaml:"from"`
		Recipients     []string `yaml:"recipients"`
		RecipientsFile string   `yaml:"recipients_file"`
	} `yaml:"email"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Web struct {
		Addr string `yaml:"addr"`
	} `yaml:"web"`
	Log struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		OutputFile string `yaml:"output_file"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
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
	if v := os.Getenv("MONITOR_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parse MONITOR_INTERVAL: %w", err)
		}
		cfg.Monitor.Interval = d
	}
	if v := os.Getenv("SMTP_USERNAME"); v != "" {
		cfg.Email.Username = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.Email.Password = v
	}
	if v := os.Getenv("SMTP_FROM"); v != "" {
		cfg.Email.From = v
	}
	if v := os.Getenv("ALERT_RECIPIENTS"); v != "" {
		cfg.Email.Recipients = strings.Split(v, ",")
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("STATE_FILE"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Store.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_DB: %w", err)
		}
		cfg.Store.Redis.DB = db
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.Web.Addr = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	if cfg.Email.RecipientsFile != "" {
		extra, err := readRecipients(cfg.Email.RecipientsFile)
		if err != nil {
			return nil, err
		}
		cfg.Email.Recipients = append(cfg.Email.Recipients, extra...)
	}
	cfg.Email.Recipients = normalizeRecipients(cfg.Email.Recipients)

	// Defaults
	if cfg.Monitor.Interval == 0 {
		cfg.Monitor.Interval = 30 * time.Minute
	}
	if cfg.Monitor.CallTimeout == 0 {
		cfg.Monitor.CallTimeout = 20 * time.Second
	}
	if cfg.Monitor.Concurrency == 0 {
		cfg.Monitor.Concurrency = 8
	}
	if cfg.Monitor.Timezone == "" {
		cfg.Monitor.Timezone = "Asia/Kolkata"
	}
	if cfg.Universe.URL == "" && cfg.Universe.File == "" {
		cfg.Universe.URL = "https://www.niftyindices.com/IndexConstituent/ind_nifty200list.csv"
	}
	if cfg.DataSource.NSEBaseURL == "" {
		cfg.DataSource.NSEBaseURL = "https://www.nseindia.com"
	}
	if cfg.DataSource.YahooBaseURL == "" {
		cfg.DataSource.YahooBaseURL = "https://query1.finance.yahoo.com"
	}
	if cfg.DataSource.Suffix == "" {
		cfg.DataSource.Suffix = ".NS"
	}
	if cfg.DataSource.CachePath == "" {
		cfg.DataSource.CachePath = "data/high_cache.db"
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = BackendFile
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "data/crossed_stocks.json"
	}
	if cfg.Store.Redis.Key == "" {
		cfg.Store.Redis.Key = "breakout:crossed"
	}
	if cfg.Email.Host == "" {
		cfg.Email.Host = "smtp.gmail.com"
	}
	if cfg.Email.Port == 0 {
		cfg.Email.Port = 465
	}
	if cfg.Email.Username == "" {
		cfg.Email.Username = cfg.Email.From
	}
	if cfg.Web.Addr == "" {
		cfg.Web.Addr = ":5000"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}

	return cfg, nil
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be positive")
	}
	if c.Monitor.CallTimeout <= 0 {
		return fmt.Errorf("monitor.call_timeout must be positive")
	}
	if c.Monitor.Concurrency <= 0 {
		return fmt.Errorf("monitor.concurrency must be positive")
	}
	if _, err := time.LoadLocation(c.Monitor.Timezone); err != nil {
		return fmt.Errorf("monitor.timezone: %w", err)
	}
	if c.Email.From == "" {
		return fmt.Errorf("email.from is required")
	}
	if c.Email.Password == "" {
		return fmt.Errorf("email.password is required")
	}
	if len(c.Email.Recipients) == 0 {
		return fmt.Errorf("email.recipients is required")
	}
	switch c.Store.Backend {
	case BackendFile:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required")
		}
	case BackendRedis:
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("store.redis.addr is required")
		}
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}
	return nil
}

// Location returns the exchange timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Monitor.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func readRecipients(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recipients file: %w", err)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read recipients file: %w", err)
	}
	return out, nil
}

func normalizeRecipients(in []string) []string {
	trimmed := lo.Map(in, func(s string, _ int) string { return strings.TrimSpace(s) })
	return lo.Uniq(lo.Compact(trimmed))
}

// Package config loads and validates archiver configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	DB        DBConfig        `mapstructure:"db"`
	Feeds     FeedsConfig     `mapstructure:"feeds"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Verify    VerifyConfig    `mapstructure:"verify"`
	Cycle     CycleConfig     `mapstructure:"cycle"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DBConfig locates the SQLite database file.
type DBConfig struct {
	Path string `mapstructure:"path"`
}

// FeedsConfig lists the subreddits to poll and how deep to scan each feed.
type FeedsConfig struct {
	Subreddits []string `mapstructure:"subreddits"`
	ScanLimit  int      `mapstructure:"scan_limit"`
	UserAgent  string   `mapstructure:"user_agent"`
}

// ArchiveConfig governs the outbound archival clients.
type ArchiveConfig struct {
	Wayback          bool    `mapstructure:"wayback"`
	ArchiveToday     bool    `mapstructure:"archive_today"`
	DelayWaybackSec  float64 `mapstructure:"delay_wayback_seconds"`
	DelayATodaySec   float64 `mapstructure:"delay_atoday_seconds"`
	HTTPTimeoutSec   int     `mapstructure:"http_timeout_seconds"`
	WaybackBaseURL   string  `mapstructure:"wayback_base_url"`
	AvailabilityURL  string  `mapstructure:"availability_url"`
	ArchiveTodayBase string  `mapstructure:"archive_today_base_url"`
}

// VerifyConfig shapes the delayed Wayback verification pass.
type VerifyConfig struct {
	Batch              int `mapstructure:"batch"`
	MinAgeSec          int `mapstructure:"min_age_seconds"`
	RecheckIntervalSec int `mapstructure:"recheck_interval_seconds"`
}

// CycleConfig controls the polling loop.
type CycleConfig struct {
	IntervalSec int `mapstructure:"interval_seconds"`
}

// SnapshotConfig controls the per-cycle JSON export.
type SnapshotConfig struct {
	Path  string `mapstructure:"path"`
	Limit int    `mapstructure:"limit"`
}

// DashboardConfig configures the read-only reporting server. Enabled
// starts it alongside the archiver loop; `serve` runs it standalone
// regardless.
type DashboardConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ARCHIVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Feeds.Subreddits = dedupeSubreddits(cfg.Feeds.Subreddits)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.path", "reddit_archiver.sqlite")
	v.SetDefault("feeds.subreddits", []string{})
	v.SetDefault("feeds.scan_limit", 25)
	v.SetDefault("feeds.user_agent", "reddit-rss-archiver/4.0 (personal use; LAN dashboard)")
	v.SetDefault("archive.wayback", true)
	v.SetDefault("archive.archive_today", true)
	v.SetDefault("archive.delay_wayback_seconds", 5.0)
	v.SetDefault("archive.delay_atoday_seconds", 8.0)
	v.SetDefault("archive.http_timeout_seconds", 45)
	v.SetDefault("archive.wayback_base_url", "https://web.archive.org")
	v.SetDefault("archive.availability_url", "https://archive.org/wayback/available")
	v.SetDefault("archive.archive_today_base_url", "https://archive.vn")
	v.SetDefault("verify.batch", 40)
	v.SetDefault("verify.min_age_seconds", 60)
	v.SetDefault("verify.recheck_interval_seconds", 900)
	v.SetDefault("cycle.interval_seconds", 180)
	v.SetDefault("snapshot.path", "latest_archives.json")
	v.SetDefault("snapshot.limit", 25)
	v.SetDefault("dashboard.enabled", false)
	v.SetDefault("dashboard.host", "127.0.0.1")
	v.SetDefault("dashboard.port", 8080)
	v.SetDefault("logging.development", true)
}

// dedupeSubreddits normalizes names ("r/golang" -> "golang") and drops
// case-insensitive duplicates while keeping first-seen order.
func dedupeSubreddits(subs []string) []string {
	seen := make(map[string]bool, len(subs))
	out := make([]string, 0, len(subs))
	for _, s := range subs {
		name := strings.TrimSpace(s)
		name = strings.TrimPrefix(name, "/r/")
		name = strings.TrimPrefix(name, "r/")
		if name == "" {
			continue
		}
		k := strings.ToLower(name)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, name)
	}
	return out
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.DB.Path == "" {
		return fmt.Errorf("db.path must be set")
	}
	if c.Feeds.ScanLimit <= 0 {
		return fmt.Errorf("feeds.scan_limit must be > 0")
	}
	if c.Archive.HTTPTimeoutSec <= 0 {
		return fmt.Errorf("archive.http_timeout_seconds must be > 0")
	}
	if c.Verify.Batch <= 0 {
		return fmt.Errorf("verify.batch must be > 0")
	}
	if c.Verify.MinAgeSec < 0 || c.Verify.RecheckIntervalSec < 0 {
		return fmt.Errorf("verify intervals must be >= 0")
	}
	if c.Cycle.IntervalSec <= 0 {
		return fmt.Errorf("cycle.interval_seconds must be > 0")
	}
	if c.Dashboard.Port <= 0 {
		return fmt.Errorf("dashboard.port must be > 0")
	}
	return nil
}

// HTTPTimeout converts the configured client timeout into a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.Archive.HTTPTimeoutSec) * time.Second
}

// CycleInterval converts the configured cycle interval into a duration.
func (c Config) CycleInterval() time.Duration {
	return time.Duration(c.Cycle.IntervalSec) * time.Second
}

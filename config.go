package pagesync

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/pagesync/hydrate"
	"github.com/hazyhaar/pagesync/section"
)

// Config holds the editor configuration.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `yaml:"addr"`
	// DBPath is the SQLite document store. ":memory:" keeps everything in
	// process.
	DBPath string `yaml:"db_path"`
	// DocID names the edited document inside the store.
	DocID string `yaml:"doc_id"`
	// MaxBody caps JSON request bodies, in bytes.
	MaxBody int64 `yaml:"max_body"`
	// TapPath, when set, appends every protocol message of every session
	// to this file as JSON lines.
	TapPath string `yaml:"tap_path"`
	// HistoryFlush is the write-behind period of the revision log.
	HistoryFlush time.Duration `yaml:"history_flush"`

	Surface SurfaceConfig `yaml:"surface"`
	Hydrate HydrateConfig `yaml:"hydrate"`
	Watch   WatchConfig   `yaml:"watch"`

	// Records seed the hydration records when the store holds none.
	Records hydrate.Records `yaml:"records"`
	// Sections seed the document when the store holds none.
	Sections []section.Section `yaml:"sections"`

	Logger *slog.Logger `yaml:"-"`
}

// SurfaceConfig tunes the render surface.
type SurfaceConfig struct {
	Title       string        `yaml:"title"`
	Debounce    time.Duration `yaml:"debounce"`
	Interval    time.Duration `yaml:"interval"`
	TailwindURL string        `yaml:"tailwind_url"`
}

// HydrateConfig tunes the hydration pipeline.
type HydrateConfig struct {
	FreeformAuthor bool `yaml:"freeform_author"`
	// PriceFormat is a fmt verb for the product price. Default: "%.2f".
	PriceFormat string `yaml:"price_format"`
	// Currency is appended to the formatted price when set.
	Currency string `yaml:"currency"`
}

// WatchConfig controls hot reload of sections written by other processes.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Debounce time.Duration `yaml:"debounce"`
}

func (c *Config) defaults() {
	if c.Addr == "" {
		c.Addr = ":8090"
	}
	if c.DBPath == "" {
		c.DBPath = "pagesync.db"
	}
	if c.DocID == "" {
		c.DocID = "default"
	}
	if c.MaxBody <= 0 {
		c.MaxBody = 4 << 20
	}
	if c.HistoryFlush <= 0 {
		c.HistoryFlush = 2 * time.Second
	}
	if c.Surface.Debounce <= 0 {
		c.Surface.Debounce = 700 * time.Millisecond
	}
	if c.Surface.Interval <= 0 {
		c.Surface.Interval = 1200 * time.Millisecond
	}
	if c.Hydrate.PriceFormat == "" {
		c.Hydrate.PriceFormat = "%.2f"
	}
	if c.Watch.Interval <= 0 {
		c.Watch.Interval = time.Second
	}
	if c.Watch.Debounce <= 0 {
		c.Watch.Debounce = 300 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

func (c *Config) pipeline() *hydrate.Pipeline {
	format, currency := c.Hydrate.PriceFormat, c.Hydrate.Currency
	return hydrate.New(
		hydrate.WithFreeformAuthor(c.Hydrate.FreeformAuthor),
		hydrate.WithLogger(c.Logger),
		hydrate.WithPriceFormat(func(v float64) string {
			s := fmt.Sprintf(format, v)
			if currency != "" {
				s += " " + currency
			}
			return s
		}),
	)
}

// LoadConfigFile reads a YAML config file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pagesync: read config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("pagesync: parse config %s: %w", path, err)
	}
	return cfg, nil
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/christopherklint97/workcal/internal/engine"
)

type Config struct {
	Timezone      string           `toml:"timezone"`
	TeamUp        TeamUpConfig     `toml:"teamup"`
	ClickUp       ClickUpConfig    `toml:"clickup"`
	Calendar      CalendarConfig   `toml:"calendar"`
	Categories    []CategoryConfig `toml:"categories"`
	Server        ServerConfig     `toml:"server"`
	Refresh       RefreshConfig    `toml:"refresh"`
	Notifications NotifyConfig     `toml:"notifications"`
	Export        ExportConfig     `toml:"export"`
}

type TeamUpConfig struct {
	BaseURL string `toml:"base_url"`
	ListID  string `toml:"list_id"`
}

type ClickUpConfig struct {
	BaseURL         string `toml:"base_url"`
	APIToken        string `toml:"api_token"`
	CacheTTLMinutes int    `toml:"cache_ttl_minutes"`
}

type CalendarConfig struct {
	DefaultCategory int          `toml:"default_category"`
	Feeds           []FeedConfig `toml:"feeds"`
}

// FeedConfig binds one user to an iCalendar URL or file path used instead
// of TeamUp.
type FeedConfig struct {
	Email  string `toml:"email"`
	Source string `toml:"source"`
}

// CategoryConfig adds or overrides a palette entry.
type CategoryConfig struct {
	ID    int    `toml:"id"`
	Name  string `toml:"name"`
	Color string `toml:"color"`
}

type ServerConfig struct {
	Listen string `toml:"listen"`
}

type RefreshConfig struct {
	Cron string `toml:"cron"` // empty disables periodic refresh
}

type NotifyConfig struct {
	Enabled bool `toml:"enabled"`
}

type ExportConfig struct {
	Format string `toml:"format"` // "csv" | "json" | "yaml" | "sqlite"
	Dir    string `toml:"dir"`
}

func DefaultConfig() Config {
	return Config{
		Timezone: "Europe/Copenhagen",
		TeamUp: TeamUpConfig{
			BaseURL: "http://localhost:3000",
		},
		ClickUp: ClickUpConfig{
			BaseURL:         "http://localhost:3000",
			CacheTTLMinutes: 5,
		},
		Calendar: CalendarConfig{
			DefaultCategory: int(engine.CategoryOffice),
		},
		Server: ServerConfig{
			Listen: "127.0.0.1:8080",
		},
		Refresh: RefreshConfig{
			Cron: "*/15 * * * *",
		},
		Notifications: NotifyConfig{
			Enabled: false,
		},
		Export: ExportConfig{
			Format: "csv",
			Dir:    ".",
		},
	}
}

// Location resolves Timezone, falling back to the local zone when empty.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.ClickUp.CacheTTLMinutes) * time.Minute
}

// PaletteOverrides converts the configured categories to palette entries.
func (c *Config) PaletteOverrides() []engine.Category {
	out := make([]engine.Category, 0, len(c.Categories))
	for _, cat := range c.Categories {
		out = append(out, engine.Category{
			ID:    engine.CategoryID(cat.ID),
			Name:  cat.Name,
			Color: engine.Color(cat.Color),
		})
	}
	return out
}

func (c *Config) Validate() error {
	switch c.Export.Format {
	case "csv", "json", "yaml", "sqlite":
	default:
		return fmt.Errorf("unknown export format %q", c.Export.Format)
	}
	for _, cat := range c.Categories {
		if cat.Color != "" && !strings.HasPrefix(cat.Color, "#") {
			return fmt.Errorf("category %d: color %q must be a #rrggbb hex value", cat.ID, cat.Color)
		}
	}
	for _, f := range c.Calendar.Feeds {
		if f.Email == "" || f.Source == "" {
			return fmt.Errorf("calendar feed needs both email and source")
		}
	}
	return nil
}

func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "workcal"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads the config at path. A missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			applyEnvOverrides(&cfg)
			return &cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WORKCAL_BACKEND_URL"); v != "" {
		cfg.TeamUp.BaseURL = v
	}
	if v := os.Getenv("TEAMUP_LIST_ID"); v != "" {
		cfg.TeamUp.ListID = v
	}
	if v := os.Getenv("CLICKUP_BASE_URL"); v != "" {
		cfg.ClickUp.BaseURL = v
	}
	if v := os.Getenv("CLICKUP_API_TOKEN"); v != "" {
		cfg.ClickUp.APIToken = v
	}
	if v := os.Getenv("WORKCAL_TIMEZONE"); v != "" {
		cfg.Timezone = v
	}
	if v := os.Getenv("WORKCAL_LISTEN"); v != "" {
		cfg.Server.Listen = v
	}
}

func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// WriteDefault writes the default config to path unless a file exists.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	out, err := toml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, out, 0644)
}

// SaveFeed adds or replaces the calendar feed for email, preserving other
// settings with a read-modify-write of the raw file.
func SaveFeed(path, email, source string) error {
	cfg := make(map[string]any)

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}
	if len(data) > 0 {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	cal, ok := cfg["calendar"].(map[string]any)
	if !ok {
		cal = make(map[string]any)
	}
	var feeds []any
	if existing, ok := cal["feeds"].([]any); ok {
		for _, f := range existing {
			if m, ok := f.(map[string]any); ok && strings.EqualFold(fmt.Sprint(m["email"]), email) {
				continue
			}
			feeds = append(feeds, f)
		}
	}
	feeds = append(feeds, map[string]any{"email": email, "source": source})
	cal["feeds"] = feeds
	cfg["calendar"] = cal

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	out, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, out, 0644)
}

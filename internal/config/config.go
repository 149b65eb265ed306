// Package config provides YAML-based configuration loading for timetable.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/timetable/internal/calendar"
	"gopkg.in/yaml.v3"
)

// Config is the top-level timetable configuration, loaded from timetable.yaml.
type Config struct {
	Database        DatabaseConfig   `yaml:"database"`
	Server          ServerConfig     `yaml:"server"`
	Recompute       RecomputeConfig  `yaml:"recompute"`
	Calendars       []CalendarConfig `yaml:"calendars"`
	Notify          NotifyConfig     `yaml:"notify"`
	ProjectDefaults ProjectDefaults  `yaml:"project_defaults"`
}

// DatabaseConfig selects the storage backend. The sqlite driver uses Path;
// the mysql driver uses the network fields.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// RecomputeConfig controls the background recompute sweep. Sweep is a
// 5-field cron expression; empty disables the sweep.
type RecomputeConfig struct {
	Sweep string `yaml:"sweep"`
}

// CalendarConfig is a working calendar seeded into the database by db init.
type CalendarConfig struct {
	ID          string            `yaml:"id"`
	Name        string            `yaml:"name"`
	Workdays    []string          `yaml:"workdays"`
	HoursPerDay float64           `yaml:"hours_per_day"`
	Exceptions  []ExceptionConfig `yaml:"exceptions"`
}

// ExceptionConfig is a holiday (working: false) or overtime day.
type ExceptionConfig struct {
	Date    string  `yaml:"date"`
	Name    string  `yaml:"name"`
	Working bool    `yaml:"working"`
	Hours   float64 `yaml:"hours"`
}

// NotifyConfig holds the chat targets for schedule slip alerts.
type NotifyConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
}

// SlackConfig holds Slack credentials for slip alerts.
type SlackConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// DiscordConfig holds Discord credentials for slip alerts.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// ProjectDefaults are applied to projects created without explicit values.
type ProjectDefaults struct {
	Calendar string `yaml:"calendar"`
}

// Calendar converts the configured calendar into its engine form.
func (c CalendarConfig) Calendar() (calendar.Calendar, error) {
	cal := calendar.Calendar{ID: c.ID, Name: c.Name, HoursPerDay: c.HoursPerDay}
	for _, name := range c.Workdays {
		wd, err := calendar.ParseWeekday(name)
		if err != nil {
			return calendar.Calendar{}, err
		}
		cal.Workdays = append(cal.Workdays, wd)
	}
	for _, ex := range c.Exceptions {
		d, err := calendar.ParseDay(ex.Date)
		if err != nil {
			return calendar.Calendar{}, err
		}
		cal.Exceptions = append(cal.Exceptions, calendar.Exception{Date: d, Working: ex.Working, Hours: ex.Hours})
	}
	if err := cal.Validate(); err != nil {
		return calendar.Calendar{}, err
	}
	return cal, nil
}

// Enabled reports whether Slack alerts are configured.
func (s SlackConfig) Enabled() bool { return s.BotToken != "" }

// Enabled reports whether Discord alerts are configured.
func (d DiscordConfig) Enabled() bool { return d.BotToken != "" }

var sweepParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			c.Database.Path = "timetable.db"
		}
	case "mysql":
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
		if c.Database.Name == "" {
			c.Database.Name = "timetable"
		}
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.ProjectDefaults.Calendar == "" {
		c.ProjectDefaults.Calendar = "standard"
	}
	for i := range c.Calendars {
		if c.Calendars[i].Name == "" {
			c.Calendars[i].Name = c.Calendars[i].ID
		}
		if len(c.Calendars[i].Workdays) == 0 {
			c.Calendars[i].Workdays = []string{"mon", "tue", "wed", "thu", "fri"}
		}
		if c.Calendars[i].HoursPerDay == 0 {
			c.Calendars[i].HoursPerDay = 8
		}
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be sqlite or mysql", c.Database.Driver))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.Recompute.Sweep != "" {
		if _, err := sweepParser.Parse(c.Recompute.Sweep); err != nil {
			errs = append(errs, fmt.Sprintf("recompute.sweep: %v", err))
		}
	}
	seen := make(map[string]bool)
	for i, cal := range c.Calendars {
		if cal.ID == "" {
			errs = append(errs, fmt.Sprintf("calendars[%d].id is required", i))
			continue
		}
		if seen[cal.ID] {
			errs = append(errs, fmt.Sprintf("calendars[%d].id %q is duplicated", i, cal.ID))
		}
		seen[cal.ID] = true
		if cal.HoursPerDay < 0 {
			errs = append(errs, fmt.Sprintf("calendars[%d].hours_per_day must not be negative", i))
		}
		missingDate := false
		for j, ex := range cal.Exceptions {
			if ex.Date == "" {
				errs = append(errs, fmt.Sprintf("calendars[%d].exceptions[%d].date is required", i, j))
				missingDate = true
			}
		}
		if !missingDate {
			if _, err := cal.Calendar(); err != nil {
				errs = append(errs, fmt.Sprintf("calendars[%d]: %v", i, err))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

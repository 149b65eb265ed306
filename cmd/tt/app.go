package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/timetable/internal/calendar"
	"github.com/zulandar/timetable/internal/config"
	"github.com/zulandar/timetable/internal/db"
	"github.com/zulandar/timetable/internal/notify"
	"github.com/zulandar/timetable/internal/notify/discord"
	"github.com/zulandar/timetable/internal/notify/slack"
	"github.com/zulandar/timetable/internal/project"
	"gorm.io/gorm"
)

const defaultConfigPath = "timetable.yaml"

func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, gormDB, nil
}

// serviceFromConfig opens the database and returns a schedule service using
// the configured default calendar. Slip alerts go to the configured chat
// targets.
func serviceFromConfig(configPath string) (*config.Config, *project.Service, error) {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	svc := project.New(gormDB, nil)
	svc.DefaultCalendar = cfg.ProjectDefaults.Calendar

	notifier, err := notifierFromConfig(cfg.Notify)
	if err != nil {
		return nil, nil, err
	}
	svc.Notifier = notifier
	return cfg, svc, nil
}

// notifierFromConfig builds a notifier over every configured chat target.
// With none configured the notifier is disabled.
func notifierFromConfig(cfg config.NotifyConfig) (*notify.Notifier, error) {
	var adapters []notify.Adapter
	if cfg.Slack.Enabled() {
		a, err := slack.New(slack.AdapterOpts{BotToken: cfg.Slack.BotToken, ChannelID: cfg.Slack.ChannelID})
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	if cfg.Discord.Enabled() {
		a, err := discord.New(discord.AdapterOpts{BotToken: cfg.Discord.BotToken, ChannelID: cfg.Discord.ChannelID})
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	return notify.NewNotifier(adapters...), nil
}

// parseDateFlag parses an optional YYYY-MM-DD flag value.
func parseDateFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	d, err := calendar.ParseDay(value)
	if err != nil {
		return nil, fmt.Errorf("--%s: want YYYY-MM-DD, got %q", name, value)
	}
	return &d, nil
}

// dateOrDash renders an optional day for table output.
func dateOrDash(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return calendar.FormatDay(*t)
}

func intOrDash(n *int) string {
	if n == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *n)
}

// truncate shortens s to max runes, appending "..." when truncated.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func plural(n int, word string) string {
	switch {
	case n == 1:
		return fmt.Sprintf("%d %s", n, word)
	case strings.HasSuffix(word, "y"):
		return fmt.Sprintf("%d %sies", n, strings.TrimSuffix(word, "y"))
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

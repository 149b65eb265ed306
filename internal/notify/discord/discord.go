// Package discord posts schedule slip alerts to a Discord channel as embeds.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/zulandar/timetable/internal/notify"
)

const sendAttempts = 4

// messenger is the REST call the adapter makes; tests supply a fake.
type messenger interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type Adapter struct {
	sess      messenger
	channelID string
	// first and ceiling bound the doubling wait between rate-limited sends.
	first, ceiling time.Duration
}

// AdapterOpts configures New. Session bypasses the bot token in tests.
type AdapterOpts struct {
	BotToken  string
	ChannelID string
	Session   messenger
}

// New returns an adapter that talks to the REST API only; no gateway
// connection is opened.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("discord: channel id is required")
	}

	sess := opts.Session
	if sess == nil {
		s, err := discordgo.New("Bot " + opts.BotToken)
		if err != nil {
			return nil, fmt.Errorf("discord: create session: %w", err)
		}
		sess = s
	}
	return &Adapter{
		sess:      sess,
		channelID: opts.ChannelID,
		first:     2 * time.Second,
		ceiling:   30 * time.Second,
	}, nil
}

func (a *Adapter) Name() string { return "discord" }

// Send posts msg to its channel, or the adapter default when unset.
func (a *Adapter) Send(ctx context.Context, msg notify.OutboundMessage) error {
	channel := msg.ChannelID
	if channel == "" {
		channel = a.channelID
	}
	data := &discordgo.MessageSend{Content: msg.Text}
	for _, evt := range msg.Events {
		data.Embeds = append(data.Embeds, embed(evt))
	}

	wait := a.first
	for attempt := 1; ; attempt++ {
		_, err := a.sess.ChannelMessageSendComplex(channel, data)
		if err == nil {
			return nil
		}
		if !tooManyRequests(err) || attempt == sendAttempts {
			return fmt.Errorf("discord: send message: %w", err)
		}
		log.Printf("discord: rate limited on %s, attempt %d of %d, waiting %v", channel, attempt, sendAttempts, wait)
		select {
		case <-ctx.Done():
			return fmt.Errorf("discord: send message: %w", ctx.Err())
		case <-time.After(wait):
		}
		wait = min(2*wait, a.ceiling)
	}
}

func tooManyRequests(err error) bool {
	var rest *discordgo.RESTError
	return errors.As(err, &rest) && rest.Response != nil && rest.Response.StatusCode == http.StatusTooManyRequests
}

// embed renders an event with its fields inline where they are short and the
// severity in the footer.
func embed(evt notify.FormattedEvent) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:       evt.Title,
		Description: evt.Body,
		Color:       color(evt.Color),
	}
	for _, f := range evt.Fields {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Short})
	}
	if evt.Severity != "" {
		e.Footer = &discordgo.MessageEmbedFooter{Text: "timetable " + evt.Severity}
	}
	return e
}

// color turns "#rrggbb" into the integer Discord expects; anything
// unparseable leaves the embed uncolored.
func color(hex string) int {
	v, err := strconv.ParseUint(strings.TrimPrefix(hex, "#"), 16, 24)
	if err != nil {
		return 0
	}
	return int(v)
}

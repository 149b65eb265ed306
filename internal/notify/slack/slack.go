// Package slack posts schedule slip alerts to a Slack channel.
package slack

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/zulandar/timetable/internal/notify"
)

// maxAttempts bounds PostMessage calls per alert when Slack rate limits us.
const maxAttempts = 4

// poster is the part of the Slack Web API the adapter uses.
type poster interface {
	PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Adapter delivers alerts through chat.postMessage.
type Adapter struct {
	client    poster
	channelID string
}

// AdapterOpts configures New. Client replaces the Web API client in tests.
type AdapterOpts struct {
	BotToken  string
	ChannelID string
	Client    poster
}

// New returns a Slack adapter posting to opts.ChannelID unless a message
// names its own channel.
func New(opts AdapterOpts) (*Adapter, error) {
	switch {
	case opts.Client == nil && opts.BotToken == "":
		return nil, fmt.Errorf("slack: bot token is required")
	case opts.ChannelID == "":
		return nil, fmt.Errorf("slack: channel id is required")
	}
	client := opts.Client
	if client == nil {
		client = slackapi.New(opts.BotToken)
	}
	return &Adapter{client: client, channelID: opts.ChannelID}, nil
}

func (a *Adapter) Name() string { return "slack" }

// Send posts msg. Each event becomes a colored attachment laid out with
// blocks; the message text is what shows in push notifications.
func (a *Adapter) Send(ctx context.Context, msg notify.OutboundMessage) error {
	channel := msg.ChannelID
	if channel == "" {
		channel = a.channelID
	}
	opts := messageOptions(msg)

	for attempt := 0; ; attempt++ {
		_, _, err := a.client.PostMessage(channel, opts...)
		if err == nil {
			return nil
		}
		wait, limited := backoff(err, attempt)
		if !limited || attempt+1 >= maxAttempts {
			return fmt.Errorf("slack: post message: %w", err)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("slack: post message: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
}

// backoff reports how long to wait before retrying err. It returns false
// for anything but a rate limit.
func backoff(err error, attempt int) (time.Duration, bool) {
	var rle *slackapi.RateLimitedError
	if !errors.As(err, &rle) {
		return 0, false
	}
	if rle.RetryAfter > 0 {
		return rle.RetryAfter, true
	}
	return time.Second << attempt, true
}

func messageOptions(msg notify.OutboundMessage) []slackapi.MsgOption {
	opts := []slackapi.MsgOption{slackapi.MsgOptionText(msg.Text, false)}
	if len(msg.Events) == 0 {
		return opts
	}
	atts := make([]slackapi.Attachment, 0, len(msg.Events))
	for _, evt := range msg.Events {
		atts = append(atts, attachment(evt))
	}
	return append(opts, slackapi.MsgOptionAttachments(atts...))
}

// attachment lays an event out as a title section, an optional field grid
// and the severity as context.
func attachment(evt notify.FormattedEvent) slackapi.Attachment {
	head := "*" + evt.Title + "*"
	if evt.Body != "" {
		head += "\n" + evt.Body
	}
	blocks := []slackapi.Block{
		slackapi.NewSectionBlock(slackapi.NewTextBlockObject(slackapi.MarkdownType, head, false, false), nil, nil),
	}

	var fields []*slackapi.TextBlockObject
	for _, f := range evt.Fields {
		fields = append(fields, slackapi.NewTextBlockObject(slackapi.MarkdownType,
			fmt.Sprintf("*%s*\n%s", f.Name, f.Value), false, false))
	}
	if len(fields) > 0 {
		blocks = append(blocks, slackapi.NewSectionBlock(nil, fields, nil))
	}
	if evt.Severity != "" {
		blocks = append(blocks, slackapi.NewContextBlock("",
			slackapi.NewTextBlockObject(slackapi.PlainTextType, strings.ToUpper(evt.Severity), false, false)))
	}

	return slackapi.Attachment{
		Color:    evt.Color,
		Fallback: evt.Title,
		Blocks:   slackapi.Blocks{BlockSet: blocks},
	}
}

package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	errs "followwatch/pkg/errors"
	"followwatch/pkg/logger"
)

// discordMessageLimit is the maximum content length of one message
const discordMessageLimit = 2000

// DiscordAPI is the part of *discordgo.Session the notifier uses
type DiscordAPI interface {
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier sends reports as direct messages from a bot. Owner ids
// are Discord user snowflakes.
type DiscordNotifier struct {
	api DiscordAPI
	log logger.Logger
}

// NewDiscordNotifier creates a notifier backed by a bot session. Only the
// REST API is used, so no gateway connection is opened.
func NewDiscordNotifier(token string, log logger.Logger) (*DiscordNotifier, error) {
	if token == "" {
		return nil, errors.New("discord token is required")
	}
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	return NewDiscordNotifierWithAPI(dg, log), nil
}

// NewDiscordNotifierWithAPI wraps an existing API client
func NewDiscordNotifierWithAPI(api DiscordAPI, log logger.Logger) *DiscordNotifier {
	return &DiscordNotifier{api: api, log: log.WithField("component", "notifier")}
}

// Notify implements Notifier
func (n *DiscordNotifier) Notify(ctx context.Context, userID string, report Report) error {
	if userID == "" {
		return errs.NotifyFailure(errors.New("report has no recipient"))
	}

	channel, err := n.api.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return errs.NotifyFailure(fmt.Errorf("open DM channel for %s: %w", userID, err))
	}

	for i, part := range splitMessage(report.Text(), discordMessageLimit) {
		if _, err := n.api.ChannelMessageSend(channel.ID, part, discordgo.WithContext(ctx)); err != nil {
			return errs.NotifyFailure(fmt.Errorf("send message part %d: %w", i+1, err))
		}
	}

	n.log.DebugWithFields("discord report sent", map[string]interface{}{
		"user_id":   userID,
		"target_id": report.TargetID,
	})
	return nil
}

// splitMessage cuts text into parts of at most limit runes, preferring
// line boundaries
func splitMessage(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var parts []string
	var b strings.Builder
	n := 0
	flush := func() {
		if s := strings.TrimRight(b.String(), "\n"); s != "" {
			parts = append(parts, s)
		}
		b.Reset()
		n = 0
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		ln := utf8.RuneCountInString(line)
		if n+ln > limit {
			flush()
		}
		// a single line longer than the limit is hard-wrapped
		for ln > limit {
			runes := []rune(line)
			parts = append(parts, string(runes[:limit]))
			line = string(runes[limit:])
			ln -= limit
		}
		b.WriteString(line)
		n += ln
	}
	flush()
	return parts
}

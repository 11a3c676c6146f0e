package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/slack-go/slack"

	"github.com/lessonbank/dedup/internal/database"
)

const notifyTimeout = 5 * time.Second

// Notifier tells reviewers about completed resolutions and dismissals.
// Implementations log their own failures.
type Notifier interface {
	NotifyResolution(ctx context.Context, groupID string, result *ResolveResult, resolvedBy string)
	NotifyDismissal(ctx context.Context, record *database.DismissedGroup)
}

// NoopNotifier discards notifications
type NoopNotifier struct{}

func (NoopNotifier) NotifyResolution(context.Context, string, *ResolveResult, string) {}
func (NoopNotifier) NotifyDismissal(context.Context, *database.DismissedGroup)       {}

// SlackNotifier posts a one-line summary to a review channel
type SlackNotifier struct {
	client  *slack.Client
	channel string
}

// NewSlackNotifier creates a notifier posting to channel with a bot token
func NewSlackNotifier(botToken, channel string, options ...slack.Option) *SlackNotifier {
	return &SlackNotifier{
		client:  slack.New(botToken, options...),
		channel: channel,
	}
}

// NotifyResolution posts the outcome of a group resolution
func (n *SlackNotifier) NotifyResolution(ctx context.Context, groupID string, result *ResolveResult, resolvedBy string) {
	var text string
	if result.Success {
		text = fmt.Sprintf(":white_check_mark: %s resolved %s: %d archived, %d kept",
			resolvedBy, groupID, result.ArchivedCount, result.KeptCount)
	} else {
		text = fmt.Sprintf(":warning: %s could not fully resolve %s: %d archived before failure: %s",
			resolvedBy, groupID, result.ArchivedCount, result.Error)
	}
	n.post(ctx, text)
}

// NotifyDismissal posts a dismissed member set
func (n *SlackNotifier) NotifyDismissal(ctx context.Context, record *database.DismissedGroup) {
	n.post(ctx, fmt.Sprintf(":no_entry_sign: %s dismissed %d lessons as not duplicates: %s",
		record.DismissedBy, record.MemberCount, record.MemberKey))
}

func (n *SlackNotifier) post(ctx context.Context, text string) {
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	if _, _, err := n.client.PostMessageContext(ctx, n.channel, slack.MsgOptionText(text, false)); err != nil {
		log.Printf("Warning: failed to post Slack notification: %v", err)
	}
}

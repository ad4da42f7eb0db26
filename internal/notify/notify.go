// Package notify posts operational summaries to the lab's Slack channel:
// sweep results and batch-creation outcomes. Notification failure is never
// allowed to fail the operation it reports on; callers log and move on.
package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// Event is one notification.
type Event struct {
	Title  string
	Body   string
	Fields []Field
}

// Field is a short labeled value shown alongside the event.
type Field struct {
	Name  string
	Value string
}

// Notifier delivers events to a destination.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Noop discards every event. Used when no webhook is configured.
type Noop struct{}

func (Noop) Notify(context.Context, Event) error { return nil }

// Slack posts events to an incoming-webhook URL.
type Slack struct {
	WebhookURL string
	Channel    string

	// post is swapped in tests; defaults to slack.PostWebhookContext.
	post func(ctx context.Context, url string, msg *slack.WebhookMessage) error
}

// NewSlack returns a webhook notifier, or a Noop when no URL is configured.
func NewSlack(webhookURL, channel string) Notifier {
	if webhookURL == "" {
		return Noop{}
	}
	return &Slack{
		WebhookURL: webhookURL,
		Channel:    channel,
		post:       slack.PostWebhookContext,
	}
}

func (s *Slack) Notify(ctx context.Context, event Event) error {
	att := slack.Attachment{
		Title:    event.Title,
		Text:     event.Body,
		Fallback: event.Title,
	}
	for _, f := range event.Fields {
		att.Fields = append(att.Fields, slack.AttachmentField{
			Title: f.Name,
			Value: f.Value,
			Short: true,
		})
	}

	msg := &slack.WebhookMessage{
		Channel:     s.Channel,
		Attachments: []slack.Attachment{att},
	}
	if err := s.post(ctx, s.WebhookURL, msg); err != nil {
		return fmt.Errorf("notify: post to slack: %w", err)
	}
	return nil
}

// SweepSummary describes a reclaim sweep that freed orphaned leases.
func SweepSummary(reclaimed int64) Event {
	return Event{
		Title: "Orphaned coding leases reclaimed",
		Body:  fmt.Sprintf("%d work item(s) returned to the queue after lease timeout.", reclaimed),
	}
}

// BatchSummary describes a completed batch-creation run.
func BatchSummary(assessmentID string, intervals, utterances, workItems int) Event {
	return Event{
		Title: fmt.Sprintf("Recording batch ready: %s", assessmentID),
		Fields: []Field{
			{Name: "Intervals selected", Value: fmt.Sprintf("%d", intervals)},
			{Name: "Utterances extracted", Value: fmt.Sprintf("%d", utterances)},
			{Name: "Work items queued", Value: fmt.Sprintf("%d", workItems)},
		},
	}
}

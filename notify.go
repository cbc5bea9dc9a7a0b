package epicgame

import (
	"context"
	"time"

	"github.com/KyberNetwork/logger"
	"github.com/google/uuid"
)

// NotificationKind is the state of a user-facing notification.
type NotificationKind string

const (
	NotifyLoading NotificationKind = "loading"
	NotifySuccess NotificationKind = "success"
	NotifyError   NotificationKind = "error"
	NotifyWarning NotificationKind = "warning"
)

// Notification is one progress message. Updates of the same action reuse
// its ID so consumers can replace the message in place.
type Notification struct {
	ID      string           `json:"id"`
	Action  string           `json:"action"`
	Kind    NotificationKind `json:"kind"`
	Message string           `json:"message"`
	Account string           `json:"account,omitempty"`
	Time    time.Time        `json:"time"`
}

// Notifier receives notifications. Implementations must not block for long;
// they are called inline from actions.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) {
	f(ctx, n)
}

// MultiNotifier delivers to every notifier in order.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, n Notification) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(ctx, n)
		}
	}
}

// LogNotifier writes notifications as log lines.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, n Notification) {
	entry := logger.WithFields(logger.Fields{
		"notification_id": n.ID,
		"action":          n.Action,
		"kind":            n.Kind,
		"account":         n.Account,
	})
	switch n.Kind {
	case NotifyError:
		entry.Error(n.Message)
	case NotifyWarning:
		entry.Warn(n.Message)
	default:
		entry.Info(n.Message)
	}
}

// progress is a notification that is opened once and then updated in place.
type progress struct {
	notifier Notifier
	base     Notification
}

func newProgress(n Notifier, action, account string) *progress {
	return &progress{
		notifier: n,
		base: Notification{
			ID:      uuid.NewString(),
			Action:  action,
			Account: account,
		},
	}
}

func (p *progress) emit(ctx context.Context, kind NotificationKind, msg string) {
	n := p.base
	n.Kind = kind
	n.Message = msg
	n.Time = time.Now()
	p.notifier.Notify(ctx, n)
}

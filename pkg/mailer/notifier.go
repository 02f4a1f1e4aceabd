package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-user-service/pkg/events"
	tpl "github.com/oksasatya/go-user-service/pkg/mailer/templates"
)

// ErrMalformed marks a message that can never be processed and must not be requeued.
var ErrMalformed = errors.New("malformed user event")

// Sender delivers one rendered email.
type Sender interface {
	Send(ctx context.Context, to, subject, text, html string) error
}

// Notifier turns user events into emails.
type Notifier struct {
	Sender Sender
	Brand  tpl.Brand
	Logger *logrus.Logger
}

func NewNotifier(s Sender, brand tpl.Brand, logger *logrus.Logger) *Notifier {
	return &Notifier{Sender: s, Brand: brand, Logger: logger}
}

func templateFor(eventType string) (string, bool) {
	switch eventType {
	case events.UserCreated:
		return tpl.Welcome, true
	case events.UserUpdated:
		return tpl.AccountUpdated, true
	case events.UserDeleted:
		return tpl.AccountDeleted, true
	}
	return "", false
}

// Handle decodes one queue message and sends the matching email.
// Unknown event types are skipped. Errors wrapping ErrMalformed are permanent.
func (n *Notifier) Handle(ctx context.Context, body []byte) error {
	var ev events.UserEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if ev.Email == "" {
		return fmt.Errorf("%w: missing email", ErrMalformed)
	}

	name, ok := templateFor(ev.Type)
	if !ok {
		if n.Logger != nil {
			n.Logger.WithField("type", ev.Type).Debug("no notification for event type")
		}
		return nil
	}

	data := tpl.NewEmailData(n.Brand, ev.Name, ev.Email,
		tpl.WithTime(ev.OccurredAt),
		tpl.WithStatus(ev.Status),
		tpl.WithChanges(ev.Changes),
	)
	subject, text, html, err := tpl.Render(name, data)
	if err != nil {
		return fmt.Errorf("%w: render %s: %v", ErrMalformed, name, err)
	}

	if err := n.Sender.Send(ctx, ev.Email, subject, text, html); err != nil {
		return fmt.Errorf("send %s to %s: %w", name, ev.Email, err)
	}
	if n.Logger != nil {
		n.Logger.WithFields(logrus.Fields{"type": ev.Type, "user_id": ev.UserID, "event_id": ev.ID}).Info("notification sent")
	}
	return nil
}

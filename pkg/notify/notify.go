package notify

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

var sends = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "casenotes_notifications_total",
	Help: "Notification send attempts by outcome.",
}, []string{"outcome"})

// Message is one plain-text email to one recipient.
type Message struct {
	To      string
	ToName  string
	Subject string
	Body    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Recipient struct {
	Email string
	Name  string
}

// SendError is the failure to notify one recipient.
type SendError struct {
	Recipient string
	Err       error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("failed to send email to %s: %v", e.Recipient, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Dispatcher sends the same notification to several recipients, one at a
// time. A failed recipient never stops the others.
type Dispatcher struct {
	sender Sender
}

func NewDispatcher(sender Sender) *Dispatcher {
	return &Dispatcher{sender: sender}
}

// Dispatch returns one *SendError per recipient that could not be notified.
func (d *Dispatcher) Dispatch(ctx context.Context, recipients []Recipient, subject string, body func(Recipient) string) []error {
	var errs []error
	for _, r := range recipients {
		msg := Message{To: r.Email, ToName: r.Name, Subject: subject, Body: body(r)}
		if err := d.send(ctx, msg); err != nil {
			sends.WithLabelValues("error").Inc()
			log.Warnf("Failed to send email to %s: %v", r.Email, err)
			errs = append(errs, &SendError{Recipient: r.Email, Err: err})
			continue
		}
		sends.WithLabelValues("ok").Inc()
		log.Debugf("Sent %q to %s", subject, r.Email)
	}
	return errs
}

func (d *Dispatcher) send(ctx context.Context, msg Message) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("sender panicked: %v", p)
		}
	}()
	return d.sender.Send(ctx, msg)
}

// LogSender only logs messages. It stands in when no mail account is set up.
type LogSender struct{}

func (LogSender) Send(_ context.Context, msg Message) error {
	log.WithFields(log.Fields{
		"to":      msg.To,
		"subject": msg.Subject,
	}).Info("Email delivery disabled, message not sent")
	return nil
}

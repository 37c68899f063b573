package identity

import (
	"context"
	"log"
)

type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogMailer writes outgoing mail to the log instead of delivering it.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, to, subject, body string) error {
	log.Printf("[INFO] mail to=%s subject=%q\n%s", to, subject, body)
	return nil
}

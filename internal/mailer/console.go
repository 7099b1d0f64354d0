package mailer

import (
	"context"
	"log"
)

// ConsoleSender logs messages instead of delivering them. Used in development
// and as the default provider.
type ConsoleSender struct{}

var _ Sender = ConsoleSender{}

func (ConsoleSender) Send(ctx context.Context, msg Message) error {
	log.Printf("[Mail] (console) to=%s subject=%q body=%q", msg.To, msg.Subject, msg.TextBody)
	return nil
}

// Package mailer sends transactional email. Delivery is always fire-and-forget
// relative to the HTTP response: callers dispatch through SendAsync and never
// surface a delivery failure to the client.
package mailer

import (
	"context"
	"log"
	"time"
)

// Message is one outbound email
type Message struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender delivers a single message
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

const sendTimeout = 15 * time.Second

// SendAsync dispatches msg on its own goroutine with a bounded timeout.
// Errors are logged and swallowed; the primary action must never fail because
// mail could not be delivered.
func SendAsync(sender Sender, msg Message) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := sender.Send(ctx, msg); err != nil {
			log.Printf("[Mail] Send failed to=%s subject=%q: %v", msg.To, msg.Subject, err)
		}
	}()
}

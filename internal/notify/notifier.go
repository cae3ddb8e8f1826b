// internal/notify/notifier.go
package notify

import (
	"context"

	"libracore/internal/catalog"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// LogNotifier writes outgoing emails to the log instead of a mail server.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(ctx context.Context, userID, message string) error {
	n.log.Info().Str("user_id", userID).Str("message", message).Msg("sending email")
	return nil
}

// Nop discards every message.
type Nop struct{}

func (Nop) Send(context.Context, string, string) error { return nil }

// rateLimited throttles the wrapped notifier with a token bucket.
type rateLimited struct {
	next    catalog.Notifier
	limiter *rate.Limiter
}

// RateLimited waits on limiter before every send. A cancelled context aborts
// the wait and the message is not delivered.
func RateLimited(next catalog.Notifier, limiter *rate.Limiter) catalog.Notifier {
	return &rateLimited{next: next, limiter: limiter}
}

func (r *rateLimited) Send(ctx context.Context, userID, message string) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	return r.next.Send(ctx, userID, message)
}

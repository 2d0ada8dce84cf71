// Package background contains services that run independently of the
// request-response cycle, such as periodic storage maintenance.
package background

import (
	"context"
	"log"
	"time"

	"github.com/user/blog-go/clock"
	"github.com/user/blog-go/store"
)

// sweepTimeout bounds a single sweep so a stuck store cannot wedge the janitor.
const sweepTimeout = 30 * time.Second

// SweepExpiredResetTokens clears every reset token that expired at or before the clock's now.
func SweepExpiredResetTokens(ctx context.Context, users store.UserStore, clk clock.Clock) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()
	return users.ClearExpiredResetTokens(ctx, clk.Now())
}

// StartResetTokenJanitor sweeps expired reset tokens every interval until stopChan is
// closed. The returned channel is closed once the janitor goroutine has exited.
//
// Lookups already refuse expired tokens, so the janitor only tidies storage; a failed
// sweep is logged and retried on the next tick.
func StartResetTokenJanitor(users store.UserStore, clk clock.Clock, interval time.Duration, stopChan <-chan struct{}) <-chan struct{} {
	done := make(chan struct{})
	log.Printf("Reset-token janitor starting (interval %s)", interval)

	go func() {
		defer close(done)
		defer log.Println("Reset-token janitor stopped.")

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stopChan:
				return
			case <-ticker.C:
				n, err := SweepExpiredResetTokens(context.Background(), users, clk)
				if err != nil {
					log.Printf("Reset-token janitor: sweep failed: %v", err)
					continue
				}
				if n > 0 {
					log.Printf("Reset-token janitor: cleared %d expired reset token(s)", n)
				}
			}
		}
	}()

	return done
}

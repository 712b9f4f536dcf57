package middleware

import (
	"log/slog"
	"net/http"
)

// ExpirySweeper removes baskets past their deadline and returns how many
// went.
type ExpirySweeper interface {
	ClearExpired() (int, error)
}

// ClearExpiredBaskets runs the basket expiry sweep before each full page
// request. Partial-update requests (carrying an Hx-Request header) are
// skipped so the sweep runs once per page rather than once per fragment.
// A sweep failure is logged and never blocks the request.
func ClearExpiredBaskets(sweeper ExpirySweeper) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Hx-Request") == "" {
				n, err := sweeper.ClearExpired()
				if err != nil {
					slog.Warn("basket sweep failed", "error", err)
				} else if n > 0 {
					slog.Debug("expired baskets cleared", "count", n)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

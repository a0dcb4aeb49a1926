package mid

import (
	"context"
	"net/http"
	"time"

	"github.com/adamwoolhether/virtualnode/business/sys/metrics"
	"github.com/adamwoolhether/virtualnode/foundation/web"
)

// Metrics updates program counters.
func Metrics(m *metrics.Metrics) web.Middleware {

	// This is the actual middleware function to be executed.
	mw := func(handler web.Handler) web.Handler {

		// Create the handler that will be attached in the middleware chain.
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			// Add the metrics into the context for metric gathering.
			ctx = metrics.Set(ctx, m)

			start := time.Now()

			// Call the next handler.
			err := handler(ctx, w, r)

			status := http.StatusOK
			if v, verr := web.GetValues(ctx); verr == nil && v.StatusCode != 0 {
				status = v.StatusCode
			}
			m.ObserveRequest(r.Method, status, time.Since(start), err != nil || status >= http.StatusInternalServerError)

			// Return the error so it can be handled further up the chain.
			return err
		}

		return h
	}

	return mw
}

package telemetry

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	submitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "caritas_transactions_submitted_total",
		Help: "The total number of transactions submitted to the ledger",
	})
	confirmed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "caritas_transactions_confirmed_total",
		Help: "The total number of ledger confirmed transactions",
	})
	reverted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "caritas_transactions_reverted_total",
		Help: "The total number of ledger reverted transactions",
	})
	timedOut = promauto.NewCounter(prometheus.CounterOpts{
		Name: "caritas_transactions_timed_out_total",
		Help: "The total number of transactions with an unobserved confirmation",
	})
)

// IncSubmitted counts a transaction handed to the ledger.
func IncSubmitted() { submitted.Inc() }

// IncConfirmed counts an observed confirmation.
func IncConfirmed() { confirmed.Inc() }

// IncReverted counts an observed revert.
func IncReverted() { reverted.Inc() }

// IncTimedOut counts a confirmation wait that ran out.
func IncTimedOut() { timedOut.Inc() }

// Run starts the server with prometheus telemetry endpoint.
// The server runs until ctx is cancelled, an empty addr defaults to :2112.
func Run(ctx context.Context, cancel context.CancelFunc, addr string) error {
	if addr == "" {
		addr = ":2112"
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			cancel()
		}
	}()

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	return nil
}

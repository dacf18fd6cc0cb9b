package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/xavierca1/sherpa/internal/infra/http/handlers"
	"github.com/xavierca1/sherpa/internal/infra/metrics"
	"github.com/xavierca1/sherpa/internal/infra/worker"
	"github.com/xavierca1/sherpa/internal/logging"
)

var serveFlags struct {
	origins string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the operator API and the scheduled passes",
	Long: `Starts the HTTP operator API and runs reply ingestion (and, when their
intervals are set, drafting and dispatch) on a ticker until interrupted.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.origins, "cors-origins", "http://localhost:5173", "Comma separated allowed CORS origins")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	log := logging.New("serve")

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	observer := metrics.New(prometheus.DefaultRegisterer)
	passes := a.passes()

	var broker handlers.Broker
	if a.rabbit != nil {
		broker = a.rabbit.Conn
	}
	router := handlers.NewRouter(handlers.Handlers{
		Leads:          handlers.NewLeadHandler(a.createLead, a.gate, a.leads, a.deliveries),
		Examples:       handlers.NewExampleHandler(a.exampleUC),
		Passes:         handlers.NewPassHandler(passes, observer),
		Report:         handlers.NewReportHandler(a.report),
		Health:         handlers.NewHealthHandler(a.db, broker, a.integrations()),
		AllowedOrigins: strings.Split(serveFlags.origins, ","),
	})

	intervals := cfg.Policy.Passes
	workers := []*worker.PassWorker{
		worker.NewPassWorker("ingest", intervals.IngestInterval, passes["ingest"], observer),
		worker.NewPassWorker("draft", intervals.DraftInterval, passes["draft"], observer),
		worker.NewPassWorker("dispatch", intervals.DispatchInterval, passes["dispatch"], observer),
	}
	if a.ingest.Inbox == nil {
		log.Warn("IMAP not configured, scheduled ingestion disabled")
		workers = workers[1:]
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return serve(ctx, srv, workers)
}

// serve runs the pass workers alongside srv. Workers stop when ctx ends or
// when the server fails, and serve returns only after all of them did.
func serve(ctx context.Context, srv *http.Server, workers []*worker.PassWorker) error {
	log := logging.New("serve")
	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Start(workerCtx)
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("operator API listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	var err error
	select {
	case err = <-errCh:
		log.Error("operator API stopped", logging.Err(err))
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		err = srv.Shutdown(shutdownCtx)
	}
	stopWorkers()
	wg.Wait()

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/xavierca1/sherpa/internal/infra/queue"
	"github.com/xavierca1/sherpa/internal/logging"
	"github.com/xavierca1/sherpa/internal/throttle"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume queued connection requests and launch them",
	Long: `Reads connection requests from RabbitMQ and launches each one on the
connection automation agent, spaced by the connection throttle. Failed or
malformed requests go to the dead-letter queue.`,
	RunE: runWorker,
}

func runWorker(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if cfg.RabbitMQ.URL == "" {
		return errors.New("worker: RABBITMQ_URL is not set")
	}
	if cfg.PhantomBuster.ConnectionAgentID == "" {
		return errors.New("worker: LINKEDIN_CONNECTION_AGENT_ID is not set")
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	t := cfg.Policy.Throttle
	w := queue.NewWorker(a.rabbit.Ch, a.pb, throttle.New(t.ConnectionMin, t.ConnectionMax))
	logging.New("worker").Info("connection worker started", "queue", queue.QueueName)
	return w.Start(ctx, queue.QueueName)
}

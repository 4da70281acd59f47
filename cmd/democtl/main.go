package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/slc-run/slc-demo-backend/internal/demo/client"
)

const defaultAPIURL = "http://localhost:8080"

func main() {
	log.SetFlags(0)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Printf("[warn] command interrupted: %v", err)
			os.Exit(130)
		}
		log.Printf("[error] %v", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	apiURL     string
	cleanupKey string
	timeout    time.Duration
}

func (o *rootOptions) client() *client.Client {
	return client.NewClient(o.apiURL, client.Options{CleanupKey: o.cleanupKey, Timeout: o.timeout})
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "democtl",
		Short:         "Start, inspect and clean up slc.run demo projects",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringVar(&opts.apiURL, "api-url", envOr("DEMO_API_URL", defaultAPIURL), "Base URL of the demo API")
	root.PersistentFlags().StringVar(&opts.cleanupKey, "cleanup-key", os.Getenv("DEMO_CLEANUP_API_KEY"), "X-API-Key sent on cleanup calls")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", client.DefaultTimeout, "Per-request timeout")

	root.AddCommand(
		newBoilerplatesCommand(opts),
		newStartCommand(opts),
		newStartCustomCommand(opts),
		newStatusCommand(opts),
		newCleanupCommand(opts),
		newWatchCommand(opts),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/slc-run/slc-demo-backend/internal/demo/client"
	"github.com/slc-run/slc-demo-backend/internal/demo/expiry"
	api "github.com/slc-run/slc-demo-backend/internal/demo/http"
	"github.com/slc-run/slc-demo-backend/internal/demo/scheduler"
)

func newBoilerplatesCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "boilerplates",
		Short: "List the templates a demo can start from",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := opts.client().Boilerplates(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tDESCRIPTION")
			for _, bp := range items {
				fmt.Fprintf(w, "%s\t%s\t%s\n", bp.ID, bp.Name, bp.Description)
			}
			return w.Flush()
		},
	}
}

type watchFlags struct {
	watch       bool
	warningLead time.Duration
	noCleanup   bool
	tick        time.Duration
}

func (f *watchFlags) register(cmd *cobra.Command, withToggle bool) {
	if withToggle {
		cmd.Flags().BoolVar(&f.watch, "watch", false, "Keep running and count down until the demo expires")
	}
	cmd.Flags().DurationVar(&f.warningLead, "warning", scheduler.DefaultWarningLead, "How long before expiry to warn")
	cmd.Flags().BoolVar(&f.noCleanup, "no-cleanup", false, "Do not call cleanup when the demo expires")
	cmd.Flags().DurationVar(&f.tick, "tick", 30*time.Second, "Countdown print interval")
}

// fromHandle takes the server's warning lead unless --warning was given.
func (f *watchFlags) fromHandle(cmd *cobra.Command, handle *api.DemoResponse) {
	if cmd.Flags().Changed("warning") || handle.WarningSeconds <= 0 {
		return
	}
	f.warningLead = time.Duration(handle.WarningSeconds) * time.Second
}

func newStartCommand(opts *rootOptions) *cobra.Command {
	var wf watchFlags

	cmd := &cobra.Command{
		Use:   "start <boilerplate-id>",
		Args:  cobra.ExactArgs(1),
		Short: "Start a demo from a boilerplate",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client()
			handle, err := c.StartDemo(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), handle); err != nil {
				return err
			}
			if !wf.watch {
				return nil
			}
			wf.fromHandle(cmd, handle)
			return watch(cmd.Context(), cmd.OutOrStdout(), c, handle.ProjectID, handle.ExpiresAt, wf)
		},
	}
	wf.register(cmd, true)
	return cmd
}

func newStartCustomCommand(opts *rootOptions) *cobra.Command {
	var (
		file    string
		appName string
		wf      watchFlags
	)

	cmd := &cobra.Command{
		Use:   "start-custom",
		Short: "Start a demo running your own worker code",
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := readCode(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}

			c := opts.client()
			handle, err := c.StartCustomDemo(cmd.Context(), code, appName)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), handle); err != nil {
				return err
			}
			if !wf.watch {
				return nil
			}
			wf.fromHandle(cmd, handle)
			return watch(cmd.Context(), cmd.OutOrStdout(), c, handle.ProjectID, handle.ExpiresAt, wf)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "Worker source file, - for stdin")
	cmd.Flags().StringVar(&appName, "app-name", "", "App name (default custom-demo-app)")
	wf.register(cmd, true)
	return cmd
}

func newStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <expires-at>",
		Args:  cobra.ExactArgs(1),
		Short: "Show how long a demo has left",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.client().CheckStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printStatus(cmd.OutOrStdout(), st)
		},
	}
}

func newCleanupCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup <project-id>",
		Args:  cobra.ExactArgs(1),
		Short: "Revoke a demo project now",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := opts.client().CleanupProject(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		},
	}
}

func newWatchCommand(opts *rootOptions) *cobra.Command {
	var wf watchFlags

	cmd := &cobra.Command{
		Use:   "watch <project-id> <expires-at>",
		Args:  cobra.ExactArgs(2),
		Short: "Count down a running demo and clean it up when it expires",
		RunE: func(cmd *cobra.Command, args []string) error {
			return watch(cmd.Context(), cmd.OutOrStdout(), opts.client(), args[0], args[1], wf)
		},
	}
	wf.register(cmd, false)
	return cmd
}

// watch arms a scheduler for the handle and prints the countdown until it
// expires or ctx is cancelled.
func watch(ctx context.Context, out io.Writer, c *client.Client, projectID, expiresAtRaw string, wf watchFlags) error {
	expiresAt, err := expiry.ParseTimestamp(expiresAtRaw)
	if err != nil {
		return err
	}
	out = &lockedWriter{w: out}

	opts := scheduler.Options{WarningLead: wf.warningLead}
	if !wf.noCleanup {
		opts.Cleaner = c
	}

	session := scheduler.NewSession(opts)
	defer session.Cancel()

	timer := session.Arm(
		scheduler.Target{ProjectID: projectID, ExpiresAt: expiresAt},
		scheduler.Callbacks{
			OnWarning: func(remaining int) {
				fmt.Fprintf(out, "warning: demo %s expires in %s\n", projectID, expiry.FormatRemaining(remaining))
			},
			OnExpired: func() {
				fmt.Fprintf(out, "demo %s has expired\n", projectID)
			},
		},
	)

	tick := wf.tick
	if tick <= 0 {
		tick = 30 * time.Second
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-timer.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			state := expiry.CheckNow(expiresAt)
			fmt.Fprintf(out, "%s remaining\n", expiry.FormatRemaining(state.RemainingSeconds))
		}
	}
}

// lockedWriter serialises writes from timer callbacks and the countdown loop.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func readCode(stdin io.Reader, file string) (string, error) {
	var (
		data []byte
		err  error
	)
	if file == "" || file == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return "", fmt.Errorf("read worker code: %w", err)
	}
	return string(data), nil
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printStatus(out io.Writer, st *api.StatusResponse) error {
	if st.IsExpired {
		_, err := fmt.Fprintf(out, "expired (expiresAt %s)\n", st.ExpiresAt)
		return err
	}
	_, err := fmt.Fprintf(out, "valid, %s remaining (expiresAt %s)\n", expiry.FormatRemaining(st.RemainingSeconds), st.ExpiresAt)
	return err
}

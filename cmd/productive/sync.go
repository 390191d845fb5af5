package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"productive-cloud/internal/domain"
	"productive-cloud/internal/syncengine"
	"productive-cloud/internal/transport"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func printReport(r syncengine.Report) {
	switch r.Skipped {
	case syncengine.SkipUnauthenticated:
		fmt.Println("Not signed in, nothing synced.")
		return
	case syncengine.SkipInFlight:
		fmt.Println("A sync is already running.")
		return
	}

	for _, res := range r.Results {
		switch {
		case res.Err != nil:
			fmt.Printf("  %-10s failed: %v (will retry)\n", res.DataType, res.Err)
		case res.Action == "":
			fmt.Printf("  %-10s no local data\n", res.DataType)
		default:
			fmt.Printf("  %-10s %s\n", res.DataType, res.Action)
		}
	}
}

func syncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync [dataType]",
		Short: "Sync now, either one dataset or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireBackend(); err != nil {
				return err
			}
			ctx := cmd.Context()

			if len(args) == 1 {
				dt := domain.DataType(args[0])
				if !dt.Valid() {
					return fmt.Errorf("unknown data type %q", args[0])
				}
				err := a.engine.ForceSync(ctx, dt)
				if errors.Is(err, transport.ErrUnauthenticated) {
					fmt.Println("Not signed in, nothing synced.")
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Printf("%s synced.\n", dt)
				return nil
			}

			printReport(a.engine.ForceSyncAll(ctx))
			return nil
		},
	}
}

func statusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sync status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			st, err := a.engine.Status(ctx)
			if err != nil {
				return err
			}
			token, err := a.store.Token(ctx)
			if err != nil {
				return err
			}

			backend := a.client.BaseURL()
			if backend == "" {
				backend = "none (offline mode)"
			}

			fmt.Println("Productive Cloud Status")
			fmt.Println("=======================")
			fmt.Printf("  Backend:    %s\n", backend)
			fmt.Printf("  Device:     %s\n", a.deviceID)
			fmt.Printf("  Signed in:  %t\n", token != "")
			if token != "" && a.client.BaseURL() != "" {
				a.printAccount(ctx)
			}
			fmt.Printf("  Next sync:  %s\n", st.NextSyncIn.Round(time.Second))

			if len(st.Pending) > 0 {
				fmt.Printf("  Pending:    %v\n", st.Pending)
			}

			fmt.Println("\nLast sync:")
			if len(st.LastSyncTimes) == 0 {
				fmt.Println("  never")
			}
			keys := make([]string, 0, len(st.LastSyncTimes))
			for k := range st.LastSyncTimes {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("  %-10s %s\n", k, st.LastSyncTimes[k].Local().Format(time.RFC1123))
			}
			return nil
		},
	}
}

// printAccount shows who the stored token belongs to. A server that is
// unreachable only costs the line.
func (a *app) printAccount(ctx context.Context) {
	user, err := a.client.Profile(ctx)
	switch {
	case transport.IsAuthRejected(err):
		fmt.Println("  Account:    token rejected, log in again")
	case err != nil:
		a.log.Debug("profile lookup failed", zap.Error(err))
	case user != nil:
		fmt.Printf("  Account:    %s <%s>\n", user.Username, user.Email)
	}
}

func watchCmd(a *app) *cobra.Command {
	var (
		listen   bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep syncing in the background until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if interval > 0 {
				a.engine.SetInterval(interval)
			}
			a.engine.OnUpdate(func(dt domain.DataType, _ json.RawMessage) {
				fmt.Printf("%s updated from cloud\n", dt)
			})

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return a.engine.Run(gctx)
			})

			if listen && a.client.BaseURL() != "" {
				g.Go(func() error {
					return a.listen(gctx)
				})
			}

			err := g.Wait()

			if report, ok := a.engine.Flush(); ok {
				a.log.Info("final sync done", zap.Int("failed", len(report.Failed())))
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&listen, "listen", true, "subscribe to change notifications from other devices")
	cmd.Flags().DurationVar(&interval, "interval", 0, "time between syncs (default sync.interval from config)")
	return cmd
}

func (a *app) listen(ctx context.Context) error {
	token, err := a.store.Token(ctx)
	if err != nil || token == "" {
		return err
	}
	wsURL, err := syncengine.WebSocketURL(a.client.BaseURL())
	if err != nil {
		return err
	}

	err = a.engine.Listen(ctx, syncengine.ListenConfig{
		URL:      wsURL,
		Token:    token,
		DeviceID: a.deviceID,
	})
	if errors.Is(err, syncengine.ErrListenRejected) {
		// Polling still works; only push notifications are lost.
		a.log.Warn("change notifications unavailable", zap.Error(err))
		return nil
	}
	return err
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wireboard-server/internal/client"
	"github.com/vovakirdan/wireboard-server/internal/discovery"
	applog "github.com/vovakirdan/wireboard-server/internal/log"
)

type options struct {
	addr     string
	name     string
	chat     string
	discover bool
	timeout  time.Duration
	logLevel string
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "wbclient: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "wbclient",
		Short: "Terminal participant for a wireboard session",
		Long: `Joins a board, prints the catch-up snapshot, optionally renames itself
and sends a chat line, then follows chat and roster changes.

With --timeout 0 it stays connected until interrupted.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "ws://localhost:3001/ws", "WebSocket address")
	cmd.Flags().StringVar(&opts.name, "name", "", "username to request after joining")
	cmd.Flags().StringVar(&opts.chat, "chat", "", "chat message to send after joining")
	cmd.Flags().BoolVar(&opts.discover, "discover", false, "find the server with mDNS instead of --addr")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "how long to stay connected (0 = until interrupted)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "warn", "log level")

	return cmd
}

func run(parent context.Context, opts options) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	logger := applog.New(opts.logLevel)

	url := opts.addr
	if opts.discover {
		found, err := discovery.Lookup(2 * time.Second)
		if err != nil {
			return err
		}
		if len(found) == 0 {
			return errors.New("no wireboard server found on the local network")
		}
		url = found[0].URL()
		fmt.Printf("discovered %s at %s\n", found[0].Instance, url)
	}

	conn, err := client.Dial(ctx, url, client.WithLogger(logger), client.WithFrameHandler(printFrame))
	if err != nil {
		return err
	}
	defer conn.Close()

	runErr := make(chan error, 1)
	go func() { runErr <- conn.Run(ctx) }()

	if err := conn.WaitSynced(ctx); err != nil {
		return fmt.Errorf("wait for snapshot: %w", err)
	}
	conn.View(func(r *client.Replica) {
		snap := r.Board()
		fmt.Printf("joined as %s: %d strokes, %d texts, seq %d\n", r.Username(), len(snap.Strokes), len(snap.Texts), r.Seq())
	})

	if opts.name != "" {
		if err := conn.SetUsername(ctx, opts.name); err != nil {
			return err
		}
	}
	if opts.chat != "" {
		if err := conn.Chat(ctx, opts.chat); err != nil {
			return err
		}
	}

	select {
	case err := <-runErr:
		return err
	case <-ctx.Done():
		return nil
	}
}

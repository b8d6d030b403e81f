package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wireboard-server/internal/config"
	"github.com/vovakirdan/wireboard-server/internal/core"
	"github.com/vovakirdan/wireboard-server/internal/discovery"
	applog "github.com/vovakirdan/wireboard-server/internal/log"
	"github.com/vovakirdan/wireboard-server/internal/metrics"
	"github.com/vovakirdan/wireboard-server/internal/tap"
	transporthttp "github.com/vovakirdan/wireboard-server/internal/transport/http"
)

const redisConnectTimeout = 3 * time.Second

// App wires together core and transport layers.
type App struct {
	cfg             *config.Config
	server          *stdhttp.Server
	listener        net.Listener
	shutdownTimeout time.Duration
	hub             *core.Hub
	tap             *tap.Tap
	log             *zerolog.Logger
}

// New constructs the application with provided configuration and binds
// the listen address.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	m := metrics.New(true)

	opts := []core.Option{
		core.WithLogger(applog.Component(logger, "hub")),
		core.WithObserver(m),
		core.WithCommandBuffer(cfg.CommandBuffer),
	}

	var eventTap *tap.Tap
	if cfg.Tap.RedisAddr != "" {
		pingCtx, cancel := context.WithTimeout(ctx, redisConnectTimeout)
		pub, err := tap.NewRedisPublisher(pingCtx, cfg.Tap.RedisAddr)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("init tap: %w", err)
		}
		eventTap = tap.New(pub, cfg.Tap.Channel, cfg.Tap.Buffer, m, applog.Component(logger, "tap"))
		opts = append(opts, core.WithTap(eventTap))
		logger.Info().Str("redis_addr", cfg.Tap.RedisAddr).Str("channel", cfg.Tap.Channel).Msg("event tap enabled")
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		if eventTap != nil {
			_ = eventTap.Close()
		}
		return nil, fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}

	hub := core.NewHub(opts...)
	server := transporthttp.NewServer(hub, cfg, logger, m)

	return &App{
		cfg:             cfg,
		server:          server,
		listener:        ln,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		tap:             eventTap,
		log:             logger,
	}, nil
}

// Addr is the bound listen address.
func (a *App) Addr() net.Addr {
	return a.listener.Addr()
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go a.hub.Run(hubCtx)

	if a.tap != nil {
		go a.tap.Run(hubCtx)
	}

	if a.cfg.Discovery.Enabled {
		adv, err := a.advertise()
		if err != nil {
			a.log.Warn().Err(err).Msg("mdns advertisement disabled")
		} else {
			defer func() {
				if err := adv.Shutdown(); err != nil {
					a.log.Warn().Err(err).Msg("failed to stop mdns advertisement")
				}
			}()
		}
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.Serve(a.listener); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()
	a.log.Info().Str("addr", a.Addr().String()).Msg("wireboard server listening")

	select {
	case err := <-serverErr:
		stopHub()
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		err := a.server.Shutdown(shutdownCtx)
		if st, statsErr := a.hub.Stats(shutdownCtx); statsErr == nil {
			a.log.Info().Uint64("seq", st.Seq).Int("strokes", st.Strokes).Int("texts", st.Texts).
				Int("users", len(st.Users)).Msg("session state at shutdown")
		}
		// Hijacked WebSocket connections end when the hub detaches them.
		stopHub()
		a.cleanup()
		if err != nil {
			return err
		}
		return <-serverErr
	}
}

func (a *App) advertise() (*discovery.Advertiser, error) {
	port, err := discovery.PortFromAddr(a.Addr().String())
	if err != nil {
		return nil, err
	}
	adv, err := discovery.Advertise(a.cfg.Discovery.Instance, port)
	if err != nil {
		return nil, err
	}
	a.log.Info().Str("service", discovery.ServiceType).Int("port", port).Msg("mdns advertisement started")
	return adv, nil
}

// cleanup releases the tap connection.
func (a *App) cleanup() {
	if a.tap != nil {
		if err := a.tap.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close tap")
		} else {
			a.log.Info().Msg("tap closed")
		}
	}
}

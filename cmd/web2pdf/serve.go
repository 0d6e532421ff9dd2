package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	flag "github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"

	web2pdf "github.com/alnah/go-web2pdf"
	"github.com/alnah/go-web2pdf/internal/config"
	"github.com/alnah/go-web2pdf/internal/hints"
	"github.com/alnah/go-web2pdf/internal/httpapi"
)

// ErrListen indicates the HTTP port could not be bound.
var ErrListen = errors.New("cannot listen")

// renderService is the browser-backed renderer the server drives.
// *web2pdf.Backend satisfies it.
type renderService interface {
	web2pdf.Renderer
	Start(ctx context.Context) error
	Ready() bool
	Restarts() int64
	Close() error
}

// Compile-time interface check.
var _ renderService = (*web2pdf.Backend)(nil)

// runServe resolves configuration, starts the browser, and serves HTTP
// until ctx ends or a signal arrives.
func runServe(ctx context.Context, args []string, env *Environment) error {
	flags, err := parseServeFlags(args, env.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	cfg, err := resolveConfig(flags.common.config, func(c *config.Config) {
		applyServeFlags(flags, c)
	})
	if err != nil {
		return err
	}

	logger := newLogger(env.Stderr, cfg.Log.Level, cfg.Log.Format)
	warnUnknownEnvVars(env.Stderr)

	// Error ignored: maxprocs.Set only fails if GOMAXPROCS env is invalid,
	// in which case Go runtime defaults apply and the program continues safely.
	_, _ = maxprocs.Set(maxprocs.Logger(logger.Debugf))

	ctx, stop := notifyContext(ctx, logger)
	defer stop()

	addr := ":" + strconv.Itoa(cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w %s: %v%s", ErrListen, addr, err, hints.ForListen())
	}

	backend := web2pdf.NewBackend(backendOptions(cfg, logger)...)
	return serve(ctx, cfg, backend, ln, logger)
}

// backendOptions maps configuration onto Backend options.
func backendOptions(cfg *config.Config, logger *log.Logger) []web2pdf.Option {
	return []web2pdf.Option{
		web2pdf.WithBrowserBin(cfg.Browser.Bin),
		web2pdf.WithExtensionDir(cfg.Browser.ExtensionDir),
		web2pdf.WithLaunchTimeout(cfg.LaunchTimeout()),
		web2pdf.WithNavigationTimeout(cfg.NavigationTimeout()),
		web2pdf.WithIdleWindow(cfg.IdleWindow()),
		web2pdf.WithExtension(web2pdf.ExtensionSettings{
			ID:            cfg.Extension.ID,
			OptionsPage:   cfg.Extension.OptionsPage,
			SaveSelector:  cfg.Extension.SaveSelector,
			OptInPage:     cfg.Extension.OptInPage,
			OptInSelector: cfg.Extension.OptInSelector,
			SettleDelay:   cfg.SettleDelay(),
			Timeout:       cfg.BootstrapTimeout(),
		}),
		web2pdf.WithLogger(logger),
	}
}

// serve starts svc, then runs the dispatcher and the HTTP server on ln
// until ctx ends or either of them fails. svc is always closed on return.
//
// Shutdown order: stop accepting requests and let in-flight ones finish
// (bounded by server.shutdownTimeout), stop the dispatcher, close the
// browser.
func serve(ctx context.Context, cfg *config.Config, svc renderService, ln net.Listener, logger *log.Logger) error {
	defer func() {
		logger.Info("closing browser")
		if err := svc.Close(); err != nil {
			logger.Warn("closing browser", "err", err)
		}
	}()

	start := time.Now()
	if err := svc.Start(ctx); err != nil {
		_ = ln.Close()
		return err
	}
	logger.Info("browser ready", "elapsed", time.Since(start).Round(time.Millisecond))

	dispatcher := web2pdf.NewDispatcher(svc, web2pdf.WithDispatcherLogger(logger))
	srv := &http.Server{
		Handler: httpapi.NewRouter(httpapi.Deps{
			Jobs:        dispatcher,
			Health:      svc,
			Logger:      logger,
			CORSOrigins: cfg.Server.CORSOrigins,
		}),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout(),
	}

	// The dispatcher outlives the HTTP server so waiting requests get answers.
	runCtx, stopDispatcher := context.WithCancel(context.WithoutCancel(ctx))
	defer stopDispatcher()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return dispatcher.Run(runCtx)
	})

	g.Go(func() error {
		logger.Info("listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%w: %v", ErrListen, err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", "queued", dispatcher.Len())

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout())
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		stopDispatcher()
		if errors.Is(err, context.DeadlineExceeded) {
			logger.Warn("shutdown timed out; abandoning in-flight requests", "timeout", cfg.ShutdownTimeout())
			return nil
		}
		return err
	})

	return g.Wait()
}

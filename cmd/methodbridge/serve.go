package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"method-bridge/bridge"
	"method-bridge/logging"
	"method-bridge/middleware"
	"method-bridge/registry"
	"method-bridge/server"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Host the method channel until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := logging.New(cfg.LogLevel)
		if err != nil {
			return err
		}
		defer logger.Sync()

		// A static registry lives only in this process, so the host announces
		// itself only when etcd is configured.
		var reg registry.Registry
		if len(cfg.Registry.Endpoints) > 0 {
			r, closeReg, err := openRegistry(cfg, logger)
			if err != nil {
				return err
			}
			defer closeReg()
			reg = r
		}

		d := bridge.NewDispatcher(
			bridge.WithUnknownMethodPolicy(cfg.UnknownMethodPolicy()),
			bridge.WithLogger(logger.Named("bridge")),
		)
		svr := server.NewServer(d,
			server.WithChannel(cfg.Channel),
			server.WithLogger(logger.Named("server")),
			server.WithRegistration(cfg.Registry.TTL, cfg.Server.Weight),
		)
		svr.Use(middleware.Recover(logger))
		svr.Use(middleware.CallID())
		svr.Use(middleware.Logging(logger.Named("calls")))
		if cfg.Server.RateLimit > 0 {
			svr.Use(middleware.RateLimit(cfg.Server.RateLimit, cfg.Server.Burst))
		}
		if cfg.Server.Timeout > 0 {
			svr.Use(middleware.Timeout(cfg.Server.Timeout))
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- svr.Serve("tcp", cfg.Server.Listen, cfg.Server.Advertise, reg)
		}()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sig)

		select {
		case err := <-errCh:
			return err
		case s := <-sig:
			logger.Info("shutting down", zap.Stringer("signal", s))
		}

		shutdownErr := svr.Shutdown(cfg.Server.ShutdownGrace)
		return errors.Join(shutdownErr, <-errCh)
	},
}

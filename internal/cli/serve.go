package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/amlgate/internal/app"
	"github.com/ppiankov/amlgate/internal/config"
	"github.com/ppiankov/amlgate/internal/logging"
	"github.com/ppiankov/amlgate/internal/server"
)

var servePort int

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 0, "gRPC listen port (overrides server.port)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the token gRPC server",
	Long:  "Loads configuration, opens storage, bootstraps the token on first start\nand serves the TokenService over gRPC. Oracle tables and the config file's\nreceivers are hot-reloaded.",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, hash, err := config.LoadConfigWithHash(configPath)
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	logger := logging.New(cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.Build(ctx, cfg, hash, logger)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer a.Close()

	srv := server.New(a.Service, server.Config{Port: cfg.Server.Port, RateLimits: cfg.Server.RateLimits}, logger.With("component", "server"))

	reloader, err := server.NewReloader(reloadTargets(a), logger.With("component", "reload"))
	if err != nil {
		logger.Warn("hot-reload disabled", "error", err)
	} else {
		go reloader.Run(ctx)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down token server")
		cancel()
		srv.GracefulStop()
	}()

	logger.Info("token server listening",
		"port", cfg.Server.Port,
		"owner", a.Service.Owner(),
		"oracle", a.Service.ReadRegistry().Oracle,
		"config_hash", hash,
	)
	return srv.Serve()
}

// reloadTargets watches every file-backed oracle table and the config file.
// A config change only swaps receivers; everything else needs a restart.
func reloadTargets(a *app.App) []server.ReloadTarget {
	var targets []server.ReloadTarget
	for _, t := range a.Tables {
		targets = append(targets, server.ReloadTarget{Path: t.Path(), Reload: t.Reload})
	}

	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	targets = append(targets, server.ReloadTarget{
		Path: path,
		Reload: func() error {
			cfg, err := config.LoadConfig(path)
			if err != nil {
				return err
			}
			a.ReloadReceivers(cfg)
			return nil
		},
	})
	return targets
}

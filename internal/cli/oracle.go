package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/ppiankov/amlgate/internal/config"
	"github.com/ppiankov/amlgate/internal/logging"
	"github.com/ppiankov/amlgate/internal/oracle"
	"github.com/ppiankov/amlgate/internal/rpc"
	"github.com/ppiankov/amlgate/internal/server"
)

var (
	oracleTable string
	oraclePort  int
)

func init() {
	rootCmd.AddCommand(oracleCmd)
	oracleCmd.AddCommand(oracleServeCmd)
	oracleServeCmd.Flags().StringVar(&oracleTable, "table", "", "Classification table YAML (required)")
	oracleServeCmd.Flags().IntVar(&oraclePort, "port", 0, "gRPC listen port (overrides server.oracle_port)")
	oracleServeCmd.MarkFlagRequired("table")
}

var oracleCmd = &cobra.Command{
	Use:   "oracle",
	Short: "Reference risk oracle",
}

var oracleServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a classification table as a gRPC OracleService",
	Long:  "Answers Classify calls from a static YAML table. The table is re-read\nwhen the file changes.",
	RunE:  runOracleServe,
}

func runOracleServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if oraclePort != 0 {
		cfg.Server.OraclePort = oraclePort
	}
	logger := logging.New(cfg.Logging).With("component", "oracle")

	table, err := oracle.LoadTable(config.ExpandPath(oracleTable))
	if err != nil {
		return err
	}

	srv := grpc.NewServer()
	oracle.NewService(table).Register(srv)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus(rpc.OracleService, healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.OraclePort))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", cfg.Server.OraclePort, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reloader, err := server.NewReloader([]server.ReloadTarget{{Path: table.Path(), Reload: table.Reload}}, logger)
	if err != nil {
		logger.Warn("hot-reload disabled", "error", err)
	} else {
		go reloader.Run(ctx)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
		hs.Shutdown()
		srv.GracefulStop()
	}()

	logger.Info("oracle listening", "port", cfg.Server.OraclePort, "table", table.Path(), "accounts", table.Len())
	return srv.Serve(lis)
}

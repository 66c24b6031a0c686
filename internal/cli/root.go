// Package cli implements the amlgate command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/amlgate/internal/client"
	"github.com/ppiankov/amlgate/internal/config"
	"github.com/ppiankov/amlgate/internal/model"
)

var (
	configPath  string
	serverAddr  string
	callerID    string
	callTimeout time.Duration
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config YAML (default ~/.amlgate/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "", "Token server address (default 127.0.0.1:<server.port>)")
	rootCmd.PersistentFlags().StringVar(&callerID, "as", os.Getenv("AMLGATE_CALLER"), "Account id to act as (env AMLGATE_CALLER)")
	rootCmd.PersistentFlags().DurationVar(&callTimeout, "timeout", 30*time.Second, "Deadline for one server call")
}

var rootCmd = &cobra.Command{
	Use:           "amlgate",
	Short:         "Fungible token with AML-gated transfers",
	Long:          "Every transfer is classified by a risk oracle and checked against per-category\nthresholds before any balance moves. Oracle failures fail closed.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// dialServer connects to the token server acting as --as. requireCaller
// rejects an empty caller for commands that change state.
func dialServer(requireCaller bool) (*client.Client, error) {
	if requireCaller && callerID == "" {
		return nil, fmt.Errorf("--as is required for this command")
	}
	if callerID != "" {
		if err := model.ValidateAccountID(model.AccountID(callerID)); err != nil {
			return nil, fmt.Errorf("--as: %w", err)
		}
	}
	addr := serverAddr
	if addr == "" {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		addr = fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	}
	return client.New(addr, model.AccountID(callerID))
}

func callContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, callTimeout)
}

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

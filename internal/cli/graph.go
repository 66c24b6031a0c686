package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/amlgate/internal/config"
	"github.com/ppiankov/amlgate/internal/graph"
	"github.com/ppiankov/amlgate/internal/model"
)

var graphLimit int

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.AddCommand(graphCounterpartiesCmd)
	graphCounterpartiesCmd.Flags().IntVar(&graphLimit, "limit", graph.DefaultCounterpartyLimit, "Maximum counterparties to list")
}

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Query the settled-transfer graph",
	Long:  "Reads the Neo4j graph configured under graph.uri. The token server writes\none edge per settled transfer.",
}

var graphCounterpartiesCmd = &cobra.Command{
	Use:   "counterparties <account>",
	Short: "List accounts an account has settled transfers with",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		ctx, cancel := callContext(cmd)
		defer cancel()

		client, err := graph.NewNeo4jClient(ctx, graph.Options{
			URI:      cfg.Graph.URI,
			Database: cfg.Graph.Database,
			Username: cfg.Graph.Username,
			Password: cfg.Graph.Password,
		})
		if err != nil {
			return fmt.Errorf("graph: %w", err)
		}
		rec := graph.NewRecorder(client)
		defer rec.Close(context.Background())

		cps, err := rec.Counterparties(ctx, model.AccountID(args[0]), graphLimit)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), cps)
	},
}

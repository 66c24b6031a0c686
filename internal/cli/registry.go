package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ppiankov/amlgate/internal/model"
)

func init() {
	rootCmd.AddCommand(registryCmd)
	registryCmd.AddCommand(registryShowCmd, registrySetCmd, registryRemoveCmd, registryOracleCmd)
}

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Inspect and change the risk registry",
}

var registryShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the oracle address and category thresholds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dialServer(false)
		if err != nil {
			return err
		}
		defer c.Close()
		ctx, cancel := callContext(cmd)
		defer cancel()

		reg, err := c.ReadRegistry(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), reg)
	},
}

var registrySetCmd = &cobra.Command{
	Use:   "set <category> <score>",
	Short: "Set the maximum accepted risk score for a category (owner only)",
	Long:  "Scores run from 1 to 10. A transfer passes when the sender's score is at\nor below the threshold of its category, or of All when the category has none.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		score, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("score %q: %w", args[1], model.ErrInvalidRiskScore)
		}
		c, err := dialServer(true)
		if err != nil {
			return err
		}
		defer c.Close()
		ctx, cancel := callContext(cmd)
		defer cancel()

		if err := c.SetCategoryThreshold(ctx, model.Category(args[0]), score); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s threshold set to %d\n", args[0], score)
		return nil
	},
}

var registryRemoveCmd = &cobra.Command{
	Use:   "remove <category>",
	Short: "Remove a category threshold (owner only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dialServer(true)
		if err != nil {
			return err
		}
		defer c.Close()
		ctx, cancel := callContext(cmd)
		defer cancel()

		if err := c.RemoveCategory(ctx, model.Category(args[0])); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s removed\n", args[0])
		return nil
	},
}

var registryOracleCmd = &cobra.Command{
	Use:   "oracle <address>",
	Short: "Point the registry at another oracle (owner only)",
	Long:  "Transfers already waiting on the previous oracle keep using it.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dialServer(true)
		if err != nil {
			return err
		}
		defer c.Close()
		ctx, cancel := callContext(cmd)
		defer cancel()

		if err := c.SetOracleAddress(ctx, model.AccountID(args[0])); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "oracle set to %s\n", args[0])
		return nil
	},
}

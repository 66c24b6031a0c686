package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/amlgate/internal/model"
)

func init() {
	rootCmd.AddCommand(ownerCmd)
	ownerCmd.AddCommand(ownerShowCmd, ownerTransferCmd)
}

var ownerCmd = &cobra.Command{
	Use:   "owner",
	Short: "Show or hand over contract ownership",
}

var ownerShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current owner",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dialServer(false)
		if err != nil {
			return err
		}
		defer c.Close()
		ctx, cancel := callContext(cmd)
		defer cancel()

		owner, err := c.Owner(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), owner)
		return nil
	},
}

var ownerTransferCmd = &cobra.Command{
	Use:   "transfer <new-owner>",
	Short: "Hand ownership to another account (owner only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dialServer(true)
		if err != nil {
			return err
		}
		defer c.Close()
		ctx, cancel := callContext(cmd)
		defer cancel()

		if err := c.TransferOwnership(ctx, model.AccountID(args[0])); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ownership transferred to %s\n", args[0])
		return nil
	},
}

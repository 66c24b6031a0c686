package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/amlgate/internal/model"
)

var unregisterForce bool

func init() {
	rootCmd.AddCommand(balanceCmd, supplyCmd, metadataCmd, registerCmd, unregisterCmd)
	unregisterCmd.Flags().BoolVar(&unregisterForce, "force", false, "Burn a remaining balance instead of refusing")
}

var balanceCmd = &cobra.Command{
	Use:   "balance [account]",
	Short: "Print an account balance (defaults to --as)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		account := callerID
		if len(args) == 1 {
			account = args[0]
		}
		if account == "" {
			return fmt.Errorf("account required: pass one or set --as")
		}
		c, err := dialServer(false)
		if err != nil {
			return err
		}
		defer c.Close()
		ctx, cancel := callContext(cmd)
		defer cancel()

		bal, err := c.BalanceOf(ctx, model.AccountID(account))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), bal)
		return nil
	},
}

var supplyCmd = &cobra.Command{
	Use:   "supply",
	Short: "Print the total supply",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dialServer(false)
		if err != nil {
			return err
		}
		defer c.Close()
		ctx, cancel := callContext(cmd)
		defer cancel()

		supply, err := c.TotalSupply(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), supply)
		return nil
	},
}

var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Print the token metadata",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dialServer(false)
		if err != nil {
			return err
		}
		defer c.Close()
		ctx, cancel := callContext(cmd)
		defer cancel()

		meta, err := c.Metadata(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), meta)
	},
}

var registerCmd = &cobra.Command{
	Use:   "register [account]",
	Short: "Open a token account (defaults to --as)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dialServer(true)
		if err != nil {
			return err
		}
		defer c.Close()
		ctx, cancel := callContext(cmd)
		defer cancel()

		var account model.AccountID
		if len(args) == 1 {
			account = model.AccountID(args[0])
		}
		created, err := c.RegisterAccount(ctx, account)
		if err != nil {
			return err
		}
		if account == "" {
			account = c.Caller()
		}
		if created {
			fmt.Fprintf(cmd.OutOrStdout(), "%s registered\n", account)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s already registered\n", account)
		}
		return nil
	},
}

var unregisterCmd = &cobra.Command{
	Use:   "unregister",
	Short: "Close the --as account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dialServer(true)
		if err != nil {
			return err
		}
		defer c.Close()
		ctx, cancel := callContext(cmd)
		defer cancel()

		burned, err := c.UnregisterAccount(ctx, unregisterForce)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s unregistered, burned %s\n", c.Caller(), burned)
		return nil
	},
}

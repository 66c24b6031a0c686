package cli

import (
	"github.com/spf13/cobra"

	"github.com/ppiankov/amlgate/internal/client"
	"github.com/ppiankov/amlgate/internal/model"
)

var (
	transferMemo    string
	transferMsg     string
	transferDeposit string
)

func init() {
	rootCmd.AddCommand(transferCmd, transferCallCmd)
	for _, c := range []*cobra.Command{transferCmd, transferCallCmd} {
		c.Flags().StringVar(&transferMemo, "memo", "", "Free-form memo")
		c.Flags().StringVar(&transferDeposit, "deposit", client.DefaultDeposit, "Attached deposit; must be exactly 1")
	}
	transferCallCmd.Flags().StringVar(&transferMsg, "msg", "", "Message passed to the receiver")
}

var transferCmd = &cobra.Command{
	Use:   "transfer <receiver> <amount>",
	Short: "Send tokens after an AML check of the sender",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransfer(cmd, args, false)
	},
}

var transferCallCmd = &cobra.Command{
	Use:   "transfer-call <receiver> <amount>",
	Short: "Send tokens and notify the receiver, refunding what it does not use",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransfer(cmd, args, true)
	},
}

func runTransfer(cmd *cobra.Command, args []string, notify bool) error {
	c, err := dialServer(true)
	if err != nil {
		return err
	}
	defer c.Close()
	ctx, cancel := callContext(cmd)
	defer cancel()

	t := client.Transfer{
		Receiver: model.AccountID(args[0]),
		Amount:   args[1],
		Memo:     transferMemo,
		Deposit:  transferDeposit,
	}
	var res client.TransferResult
	if notify {
		t.Msg = transferMsg
		res, err = c.TransferAndNotify(ctx, t)
	} else {
		res, err = c.Transfer(ctx, t)
	}
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), res)
}

package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/ppiankov/amlgate/internal/model"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check <account>",
	Short: "Dry-run the AML check for an account as sender",
	Long:  "Asks the configured oracle to classify the account and applies the registry.\nExits non-zero when the account would be rejected or the oracle fails.",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

type checkResult struct {
	Account  string `json:"account"`
	Category string `json:"category,omitempty"`
	Score    int    `json:"score"`
	Allowed  bool   `json:"allowed"`
	Reason   string `json:"reason,omitempty"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	c, err := dialServer(false)
	if err != nil {
		return err
	}
	defer c.Close()
	ctx, cancel := callContext(cmd)
	defer cancel()

	out := checkResult{Account: args[0]}
	cls, err := c.Check(ctx, model.AccountID(args[0]))
	if err != nil && !errors.Is(err, model.ErrAMLRejected) {
		return err
	}
	if err != nil {
		out.Reason = err.Error()
	} else {
		out.Category = string(cls.Category)
		out.Score = int(cls.Score)
		out.Allowed = true
	}
	if perr := printJSON(cmd.OutOrStdout(), out); perr != nil {
		return perr
	}
	return err
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adamwoolhether/virtualnode/foundation/blockchain/database"
)

var asset string

// balanceCmd represents the balance command
var balanceCmd = &cobra.Command{
	Use:   "balance <name|id>",
	Short: "Print the balances held by an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params := []any{args[0]}
		if asset != "" {
			params = append(params, []string{asset})
		}

		var balances []database.AssetAmount
		if err := call(cmd.Context(), &balances, "list_account_balances", params...); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "For Account:", args[0])
		for _, b := range balances {
			fmt.Fprintf(out, "%s\t%d\n", b.AssetID, b.Amount)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(balanceCmd)
	balanceCmd.Flags().StringVarP(&asset, "asset", "s", "", "Only show the balance of this asset id.")
}

package cmd

import (
	"github.com/spf13/cobra"
)

// accountCmd represents the account command
var accountCmd = &cobra.Command{
	Use:   "account <name|id>",
	Short: "Print an account by name or object id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return query(cmd, "get_account", args[0])
	},
}

var limit int

// accountsCmd represents the accounts command
var accountsCmd = &cobra.Command{
	Use:     "list-accounts [start]",
	Aliases: []string{"accounts"},
	Short:   "List account names and ids in name order",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var start string
		if len(args) == 1 {
			start = args[0]
		}

		return query(cmd, "list_accounts", start, limit)
	},
}

func init() {
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(accountsCmd)
	accountsCmd.Flags().IntVarP(&limit, "limit", "l", 100, "Maximum number of accounts to list.")
}

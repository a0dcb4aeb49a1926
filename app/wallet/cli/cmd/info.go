package cmd

import (
	"strconv"

	"github.com/spf13/cobra"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the head of the chain the node serves",
	RunE: func(cmd *cobra.Command, args []string) error {
		return query(cmd, "info")
	},
}

// blockCmd represents the block command
var blockCmd = &cobra.Command{
	Use:   "block <num>",
	Short: "Print a block by number",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		num, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return err
		}

		return query(cmd, "get_block", num)
	},
}

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the replay progress of the node",
	RunE: func(cmd *cobra.Command, args []string) error {
		return query(cmd, "get_replay_status")
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(blockCmd)
	rootCmd.AddCommand(statusCmd)
}

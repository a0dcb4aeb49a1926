package cmd

import (
	"github.com/spf13/cobra"

	"github.com/adamwoolhether/virtualnode/foundation/blockchain/storage"
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Walk the chain files offline and report their health",
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := inspectChain(dataDir)
		if err != nil {
			return err
		}

		return printJSON(cmd.OutOrStdout(), report)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVarP(&dataDir, "data-dir", "d", "zblock/witness_node_data_dir", "Data directory holding the chain.")
}

type chainReport struct {
	Slots       uint64 `json:"slots"`
	LastBlock   uint64 `json:"last_block"`
	LastBlockID string `json:"last_block_id"`
	Blocks      uint64 `json:"blocks"`
	Empty       uint64 `json:"empty"`
	Partial     uint64 `json:"partial"`
	Corrupt     uint64 `json:"corrupt"`
	Signed      uint64 `json:"signed"`
	Operations  int    `json:"operations"`
}

// inspectChain reads every block of the store in dir.
func inspectChain(dir string) (chainReport, error) {
	store, err := storage.Open(dir, 0)
	if err != nil {
		return chainReport{}, err
	}
	defer store.Close()

	var report chainReport

	last, num, err := store.FindLastBlock()
	if err != nil {
		return chainReport{}, err
	}
	if last != nil {
		report.LastBlock = num
		report.LastBlockID = last.ID()
	}

	iter, err := store.ForEach()
	if err != nil {
		return chainReport{}, err
	}
	report.Slots = iter.Total()

	for !iter.Done() {
		block, err := iter.Next()
		if err != nil {
			report.Corrupt++
			continue
		}
		if block == nil {
			break
		}

		report.Blocks++
		report.Operations += block.Operations()
		if block.SigningKey != "" {
			report.Signed++
		}

		switch block.Status {
		case storage.StatusPartial:
			report.Partial++
		case storage.StatusCorrupt:
			report.Corrupt++
		}
	}
	report.Empty = iter.Empty()

	return report, nil
}

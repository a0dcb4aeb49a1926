package cmd

import (
	"crypto/ecdsa"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/adamwoolhether/virtualnode/foundation/blockchain/database"
	"github.com/adamwoolhether/virtualnode/foundation/blockchain/genesis"
	"github.com/adamwoolhether/virtualnode/foundation/blockchain/storage"
)

// fixtureStart is the timestamp of the first generated block.
var fixtureStart = time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC)

// fixtureFunds is credited to the funding account in the generated genesis.
const fixtureFunds = 1_000_000_000

var (
	blocks  int
	dataDir string
	keyFile string
)

// generateCmd represents the generate command
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a deterministic chain the node can replay",
	RunE: func(cmd *cobra.Command, args []string) error {
		var privateKey *ecdsa.PrivateKey
		if keyFile != "" {
			var err error
			if privateKey, err = crypto.LoadECDSA(keyFile); err != nil {
				return err
			}
		}

		head, err := generateChain(dataDir, blocks, privateKey)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d blocks to %s, head %s\n", blocks, dataDir, head)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().IntVarP(&blocks, "blocks", "n", 100, "Number of blocks to write.")
	generateCmd.Flags().StringVarP(&dataDir, "data-dir", "d", "zblock/witness_node_data_dir", "Data directory to write the chain into.")
	generateCmd.Flags().StringVarP(&keyFile, "key", "k", "", "Witness key used to sign the blocks.")
}

// generateChain writes n blocks and a matching genesis.yaml into dataDir.
// Every block carries a transfer out of the funding account, every fifth
// block registers an account and every seventh issues core asset.
func generateChain(dir string, n int, privateKey *ecdsa.PrivateKey) (string, error) {
	gen, err := genesis.Default()
	if err != nil {
		return "", err
	}

	funder := gen.Accounts[len(gen.Accounts)-1]
	gen.Balances = append(gen.Balances, genesis.Balance{
		Account: funder.ID,
		Asset:   database.CoreAssetID,
		Amount:  fixtureFunds,
	})

	var witness string
	for id := range gen.Witnesses {
		witness = id
		break
	}

	w, err := storage.NewWriter(dir)
	if err != nil {
		return "", err
	}

	if err := genesis.Save(filepath.Join(dir, "genesis.yaml"), gen); err != nil {
		w.Close()
		return "", err
	}

	previous := make(database.HexBytes, database.BlockIDSize)
	for i := 1; i <= n; i++ {
		num := uint64(i)
		ts := fixtureStart.Add(time.Duration(i) * 3 * time.Second)

		block := database.SignedBlock{
			BlockHeader: database.BlockHeader{
				Previous:              previous,
				Timestamp:             database.ChainTime{Time: ts},
				Witness:               witness,
				TransactionMerkleRoot: make(database.HexBytes, database.BlockIDSize),
				Extensions:            []database.HexBytes{},
			},
			WitnessSignature: database.HexBytes{},
			Transactions: []database.Transaction{
				{
					RefBlockNum:    uint16(num - 1),
					RefBlockPrefix: uint32(num),
					Expiration:     database.ChainTime{Time: ts.Add(time.Minute)},
					Operations:     fixtureOperations(gen, funder.ID, i),
					Extensions:     []database.HexBytes{},
					Signatures:     []database.HexBytes{},
				},
			},
		}

		if privateKey != nil {
			if err := database.SignBlock(&block, privateKey); err != nil {
				w.Close()
				return "", fmt.Errorf("signing block %d: %w", num, err)
			}
		}

		id, err := w.AppendBlock(num, block)
		if err != nil {
			w.Close()
			return "", err
		}
		previous = database.HexBytes(id[:])
	}

	if err := w.Close(); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", previous), nil
}

func fixtureOperations(gen genesis.Genesis, funder string, i int) []database.Operation {
	to := gen.Accounts[i%len(gen.Accounts)].ID

	ops := []database.Operation{
		database.Transfer{
			From:   funder,
			To:     to,
			Amount: database.AssetAmount{Amount: int64(i) * 1000, AssetID: database.CoreAssetID},
		},
	}

	if i%5 == 0 {
		ops = append(ops, database.AccountCreate{
			Registrar: funder,
			Referrer:  funder,
			Name:      fmt.Sprintf("fixture-%d", i),
			Owner:     fixtureAuthority(),
			Active:    fixtureAuthority(),
			Options:   database.AccountOptions{VotingAccount: "1.2.5", Votes: []uint64{}},
		})
	}

	if i%7 == 0 {
		ops = append(ops, database.AssetIssue{
			Issuer:         gen.Assets[0].Issuer,
			AssetToIssue:   database.AssetAmount{Amount: 500, AssetID: database.CoreAssetID},
			IssueToAccount: to,
		})
	}

	return ops
}

func fixtureAuthority() database.Authority {
	return database.Authority{
		WeightThreshold: 1,
		AccountAuths:    []database.AccountAuth{},
		KeyAuths:        []database.KeyAuth{},
		AddressAuths:    []database.KeyAuth{},
	}
}

package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

// keygenCmd represents the keygen command
var keygenCmd = &cobra.Command{
	Use:   "keygen <name>",
	Args:  cobra.ExactArgs(1),
	Short: "Generate a new witness signing key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := cmd.Flags().GetString("account-path")
		if err != nil {
			return err
		}

		dest := keyPath(args[0], path)

		pub, err := runKeyGen(dest)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), dest, pub)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
}

// runKeyGen saves a new key to dest and returns its compressed public key.
func runKeyGen(dest string) (string, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return "", err
	}

	if err := crypto.SaveECDSA(dest, privateKey); err != nil {
		return "", err
	}

	return hex.EncodeToString(crypto.CompressPubkey(&privateKey.PublicKey)), nil
}

// Package cmd contains wallet app commands.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamwoolhether/virtualnode/foundation/rpc"
)

const keyExt = ".ecdsa"

var (
	url     string
	timeout time.Duration
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "wallet",
	Short:         "Legacy wallet tooling for the virtual witness node",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&url, "url", "u", "ws://localhost:8090", "Websocket url of the node.")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 10*time.Second, "Timeout for calls against the node.")
	rootCmd.PersistentFlags().StringP("account-path", "p", "zblock/accounts/", "Path to the directory with private keys.")
}

func keyPath(acctName, path string) string {
	if !strings.HasSuffix(acctName, keyExt) {
		acctName += keyExt
	}

	return filepath.Join(path, acctName)
}

// call makes a single call against the node and decodes the result.
func call(ctx context.Context, result any, method string, params ...any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := rpc.Dial(ctx, url)
	if err != nil {
		return err
	}
	defer client.Close()

	return client.Call(ctx, result, method, params...)
}

// printJSON writes v indented to out.
func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

// query makes a call and prints the raw result.
func query(cmd *cobra.Command, method string, params ...any) error {
	var result json.RawMessage
	if err := call(cmd.Context(), &result, method, params...); err != nil {
		return err
	}

	if string(result) == "null" {
		return fmt.Errorf("%s: not found", method)
	}

	return printJSON(cmd.OutOrStdout(), result)
}

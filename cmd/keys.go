package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/encodeous/wisun/state"
	"github.com/spf13/cobra"
)

var keysCmd = &cobra.Command{
	Use:     "keys",
	Short:   "Manages the sealed key store of a border router",
	GroupID: "keys",
}

var keysNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Generates a key store key. Outputs the private key to stdout, the public key to stderr.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := state.GenerateStoreKey()
		if err != nil {
			return err
		}
		priv, err := key.MarshalText()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(priv))
		fmt.Fprintln(cmd.ErrOrStderr(), key.Pubkey().String())
		return nil
	},
}

var keysInspectCmd = &cobra.Command{
	Use:   "inspect <node.yaml>",
	Short: "Opens the key store of a border router and prints what it holds",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := state.LoadNodeConfig(args[0])
		if err != nil {
			return err
		}
		if cfg.KeyStorePath == "" {
			return errors.New("node has no key_store configured")
		}
		info, err := state.LoadKeyInfo(cfg.KeyStorePath, cfg.KeyStoreKey.Pubkey(), cfg.Eui64[:])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "network:  %s\n", info.NetworkName)
		fmt.Fprintf(out, "pan id:   %#04x\n", info.PanId)
		fmt.Fprintf(out, "version:  %d\n", info.PanVersion)
		fmt.Fprintf(out, "restarts: %d\n", info.Restarts)
		fmt.Fprintf(out, "written:  %s\n", time.Unix(0, info.Timestamp).Format(time.RFC3339))
		fmt.Fprintf(out, "gtks:     %d installed, hash %s\n", info.Gtks.Count(), info.Gtks.Hash())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysNewCmd)
	keysCmd.AddCommand(keysInspectCmd)
}

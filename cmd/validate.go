package cmd

import (
	"fmt"

	"github.com/encodeous/wisun/core"
	"github.com/encodeous/wisun/state"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <config.yaml>",
	Short: "Checks a node or mesh configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mesh, _ := cmd.Flags().GetBool("mesh")
		var nodes []state.NodeCfg
		if mesh {
			cfg, err := state.LoadMeshConfig(args[0])
			if err != nil {
				return err
			}
			nodes = cfg.Nodes
		} else {
			cfg, err := state.LoadNodeConfig(args[0])
			if err != nil {
				return err
			}
			nodes = []state.NodeCfg{*cfg}
		}
		for _, n := range nodes {
			if n.Role == state.RoleBorderRouter {
				if err := core.ValidateSchedule(&n, n.Schedule); err != nil {
					return fmt.Errorf("node %s: %w", n.Id, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, %s): ok\n", n.Id, n.Eui64, n.Role)
		}
		return nil
	},
	GroupID: "mesh",
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolP("mesh", "m", false, "The file describes a whole mesh")
}

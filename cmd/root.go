package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wisun",
	Short: "Wi-SUN FAN bootstrap and authenticator",
	Long: `wisun runs the join state machine of a Wi-SUN FAN node and the PAE authenticator of a border router.
Meshes of nodes can be simulated in process over a shared radio medium.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(&cobra.Group{
		ID:    "mesh",
		Title: "Mesh Commands",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "keys",
		Title: "Key Store Commands",
	})
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
}

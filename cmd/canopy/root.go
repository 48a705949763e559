package main

import (
	"fmt"
	"os"

	"github.com/aretw0/canopy/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "canopy",
	Short: "Canopy is a single-writer observable state container",
	Long: `Canopy keeps application state in one tree behind one writer: actions
dispatched from any goroutine are applied strictly one at a time by a
reducer tree compiled from flat declarations.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("state", "", "Path to a YAML or JSON file seeding the initial state")
	rootCmd.PersistentFlags().String("name", "demo", "Store name, used in logs and the info endpoint")
	rootCmd.PersistentFlags().Bool("debug", false, "Log every enqueue, transition, and effect")
}

func optionsFromFlags(cmd *cobra.Command) cli.RunOptions {
	statePath, _ := cmd.Flags().GetString("state")
	name, _ := cmd.Flags().GetString("name")
	debug, _ := cmd.Flags().GetBool("debug")
	return cli.RunOptions{StatePath: statePath, Name: name, Debug: debug}
}

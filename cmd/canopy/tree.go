package main

import (
	"fmt"
	"os"

	"github.com/aretw0/canopy/internal/cli"
	"github.com/aretw0/canopy/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// treeCmd represents the tree command
var treeCmd = &cobra.Command{
	Use:     "tree",
	Aliases: []string{"graph"},
	Short:   "Export the reducer tree visualization",
	Long:    `Compiles the demo store and outputs a Mermaid diagram (graph TD) of its reducer tree: branches, leaves, and the action types chained at each.`,
	Run: func(cmd *cobra.Command, args []string) {
		opts := optionsFromFlags(cmd)

		store, err := cli.BuildStore(opts)
		if err != nil {
			fmt.Printf("Error initializing store: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		// Generate and print Mermaid graph
		fmt.Print(graph.GenerateMermaid(store.Layout()))
	},
}

func init() {
	rootCmd.AddCommand(treeCmd)
}

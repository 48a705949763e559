package main

import (
	"fmt"
	"os"

	"github.com/aretw0/canopy/internal/cli"
	"github.com/spf13/cobra"
)

// replCmd represents the repl command
var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Run the interactive store session",
	Long:  `Starts the demo store with an interactive prompt: dispatch actions by name, inspect the tree, watch side effects fire.`,
	Run: func(cmd *cobra.Command, args []string) {
		opts := optionsFromFlags(cmd)
		opts.Burst, _ = cmd.Flags().GetInt("burst")

		if err := cli.RunREPL(opts); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(replCmd)

	replCmd.Flags().IntP("burst", "b", 0, "Dispatch N concurrent increments before the first prompt")

	// Make 'repl' the default if no command is provided
	rootCmd.Run = replCmd.Run
}

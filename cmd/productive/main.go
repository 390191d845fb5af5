package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	var a app

	rootCmd := &cobra.Command{
		Use:           "productive",
		Short:         "Productive Cloud - local-first habits and projects with optional cloud sync",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default $HOME/.productive/config.yaml)")

	rootCmd.AddCommand(loginCmd(&a))
	rootCmd.AddCommand(registerCmd(&a))
	rootCmd.AddCommand(logoutCmd(&a))
	rootCmd.AddCommand(syncCmd(&a))
	rootCmd.AddCommand(statusCmd(&a))
	rootCmd.AddCommand(watchCmd(&a))
	rootCmd.AddCommand(dataCmd(&a))
	rootCmd.AddCommand(exportCmd(&a))
	rootCmd.AddCommand(importCmd(&a))
	rootCmd.AddCommand(backupsCmd(&a))
	rootCmd.AddCommand(projectCmd(&a))
	rootCmd.AddCommand(taskCmd(&a))
	rootCmd.AddCommand(timerCmd(&a))
	rootCmd.AddCommand(habitCmd(&a))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

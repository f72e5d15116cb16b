// SPDX-License-Identifier: MIT
package cmd

import (
	"github.com/spf13/cobra"

	"spexia/pkg/build"
)

// Commands selected on the command line.
const (
	CommandRun  = "run"
	CommandList = "list"
)

// Options holds what the command line selected. Settings that also live in
// the config file override it when set.
type Options struct {
	Command     string
	ConfigPath  string
	Backend     string // Empty keeps the configured backend.
	Direction   string // Empty keeps the configured direction.
	Verbose     bool
	Interactive bool
}

// ParseArgs parses args (without the program name). Command is left empty
// when cobra handled the invocation itself, as with --help or --version.
func ParseArgs(args []string) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	options := &Options{}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandRun
			return nil
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// Run command, also the default
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Capture the default device and publish spectral frames",
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandRun
			return nil
		},
	}
	rootCmd.AddCommand(runCmd)

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandList
			return nil
		},
	}
	listCmd.Flags().BoolVarP(&options.Interactive, "interactive", "i", false,
		"Browse devices and their stream configuration in a terminal UI")
	rootCmd.AddCommand(listCmd)

	rootCmd.PersistentFlags().StringVarP(&options.ConfigPath, "config", "c", "",
		"Path to config.yaml (default: ./config.yaml, then the user config directory)")
	rootCmd.PersistentFlags().StringVarP(&options.Backend, "backend", "b", "",
		"Audio backend: malgo or portaudio (overrides audio.backend)")
	rootCmd.PersistentFlags().StringVarP(&options.Direction, "direction", "d", "",
		"Capture direction: input, or output for loopback (overrides audio.direction)")
	rootCmd.PersistentFlags().BoolVarP(&options.Verbose, "verbose", "v", false,
		"Show verbose output")

	if args == nil {
		args = []string{} // nil makes cobra fall back to os.Args.
	}
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	return options, nil
}

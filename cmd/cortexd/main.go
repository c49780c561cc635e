// cortexd is the Cortex IDE core host process: it loads configuration,
// wires every subsystem together (the command dispatcher included), and
// serves the collaboration WebSocket endpoint until asked to stop. The
// command dispatcher is built but not exposed over any transport.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "cortexd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "cortexd",
		Short:         "Cortex IDE core host process",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to cortexd config file (overrides CORTEX_CONFIG_PATH)")

	root.AddCommand(newServeCommand(&configPath))
	root.AddCommand(newVersionCommand())

	viper.SetConfigName("cortexd")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.cortex")
	viper.AddConfigPath(".")

	return root
}

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the core host process in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath)
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the cortexd version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version)
			return nil
		},
	}
}

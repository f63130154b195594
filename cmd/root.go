package cmd

import (
	"fmt"
	"os"

	"github.com/MatiasNAmendola/Nxdb/cmd/database"
	"github.com/MatiasNAmendola/Nxdb/cmd/util"
	"github.com/MatiasNAmendola/Nxdb/lib/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	Version = "0.3.1"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "nxdb",
		Short: "node-addressed document store",
		Long: fmt.Sprintf(`Nxdb (v%s)

A document store library written in Go that addresses nodes both by
shifting positions and by stable identities, with a coherent node
handle cache on top.`, Version),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := util.BindCommandFlags(cmd); err != nil {
				return err
			}
			return common.InitLoggers(viper.GetString("log-level"))
		},
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of Nxdb",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Nxdb v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(database.DatabaseCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "log-level"
	RootCmd.PersistentFlags().String(key, "warning", util.WrapString("log level to use (debug, info, warn, error)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

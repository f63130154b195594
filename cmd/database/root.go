package database

import (
	"github.com/MatiasNAmendola/Nxdb/cmd/util"
	"github.com/MatiasNAmendola/Nxdb/lib/store"
	"github.com/spf13/cobra"
)

var (
	engine store.Engine

	// DatabaseCommands represents the database command group
	DatabaseCommands = &cobra.Command{
		Use:               "db",
		Short:             "Manage and inspect databases",
		PersistentPreRunE: setupEngine,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add common storage flags to the db command
	util.SetupEngineFlags(DatabaseCommands)

	// Add subcommands
	DatabaseCommands.AddCommand(createCmd)
	DatabaseCommands.AddCommand(dropCmd)
	DatabaseCommands.AddCommand(infoCmd)
	DatabaseCommands.AddCommand(appendCmd)
	DatabaseCommands.AddCommand(getCmd)
	DatabaseCommands.AddCommand(delCmd)
	DatabaseCommands.AddCommand(perfTestCmd)
}

// setupEngine initializes the storage engine backing all db subcommands
func setupEngine(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	engine = util.GetEngine()
	return nil
}

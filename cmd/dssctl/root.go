package main

import (
	"github.com/spf13/cobra"

	"github.com/cea-hpc/phobos-sub000/config"
)

// configLoader builds a validated *config.Config from a command's bound
// flags; it is passed to each initXCmd function rather than imported
// globally so every subcommand's configuration step is independently
// testable.
type configLoader func(cmd *cobra.Command) (*config.Config, error)

// rootCommand builds the dssctl root command with every subcommand
// attached, one init function per subcommand file.
func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "dssctl",
		Short: "Administer a Distributed State Service backend",
		Long:  "dssctl inspects and administers a DSS backend: schema version, lock state, resource health and the supported tape-model registry.",
	}

	root.PersistentFlags().String("connect-string", "", "backend connection string (defaults to dss.connect_string / DSS_DSS_CONNECT_STRING)")
	root.PersistentFlags().String("tape-models", "", "comma-separated supported tape model list")

	loadConfig := func(cmd *cobra.Command) (*config.Config, error) {
		v := config.New(cmd.Flags())
		if cs, _ := cmd.Flags().GetString("connect-string"); cs != "" {
			v.Set("dss.connect_string", cs)
		}
		if models, _ := cmd.Flags().GetString("tape-models"); models != "" {
			v.Set("tape_model.supported_list", models)
		}
		return config.Load(v)
	}

	initSchemaCmd(root, loadConfig)
	initLockCmd(root, loadConfig)
	initHealthCmd(root, loadConfig)
	initModelsCmd(root, loadConfig)

	return root
}

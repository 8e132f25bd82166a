package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cea-hpc/phobos-sub000/dss"
	"github.com/cea-hpc/phobos-sub000/schema"
)

func initSchemaCmd(root *cobra.Command, loadConfig configLoader) {
	cmd := &cobra.Command{
		Use:   "schema-check",
		Short: "Verify the backend's persisted schema version matches this build",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			h, err := dss.Open(context.Background(), cfg)
			if err != nil {
				return err
			}
			defer h.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %s matches\n", schema.Version)
			return nil
		},
	}
	root.AddCommand(cmd)
}

package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/cea-hpc/phobos-sub000/dss"
)

func initModelsCmd(root *cobra.Command, loadConfig configLoader) {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the configured set of supported tape medium models",
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

			models := h.Models().Models()
			sort.Strings(models)
			for _, m := range models {
				fmt.Fprintln(cmd.OutOrStdout(), m)
			}
			return nil
		},
	}
	root.AddCommand(cmd)
}

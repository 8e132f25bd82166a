package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cea-hpc/phobos-sub000/dss"
	"github.com/cea-hpc/phobos-sub000/entity"
	"github.com/cea-hpc/phobos-sub000/health"
)

func initHealthCmd(root *cobra.Command, loadConfig configLoader) {
	var kind, family, name, library string
	var maxHealth int
	cmd := &cobra.Command{
		Use:   "health-query",
		Short: "Compute the bounded health counter for a device or medium",
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

			ref := entity.MediumRef{Family: family, Name: name, Library: library}
			got, err := h.Health(context.Background(), health.ResourceKind(kind), ref, maxHealth)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\n", got)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "resource kind: device or medium")
	cmd.Flags().StringVar(&family, "family", "", "resource family")
	cmd.Flags().StringVar(&name, "name", "", "resource name")
	cmd.Flags().StringVar(&library, "library", "", "resource library")
	cmd.Flags().IntVar(&maxHealth, "max-health", 5, "maximum health value to clamp into")
	root.AddCommand(cmd)
}

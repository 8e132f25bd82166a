package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cea-hpc/phobos-sub000/dss"
	"github.com/cea-hpc/phobos-sub000/lock"
)

func initLockCmd(root *cobra.Command, loadConfig configLoader) {
	var typ, key, library string
	cmd := &cobra.Command{
		Use:   "lock-status",
		Short: "Report the held/free status of a lock by type and key",
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

			items := []lock.Item{{Key: key, Library: library}}
			statuses, err := h.LockStatus(context.Background(), lock.Type(typ), items)
			if err != nil {
				return err
			}
			info := statuses[0]
			if !info.Held {
				fmt.Fprintf(cmd.OutOrStdout(), "%s/%s: free\n", typ, key)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s/%s: held by %s (owner %d, weak=%v) since %s\n",
				typ, key, info.Hostname, info.Owner, info.IsWeak, info.Timestamp)
			return nil
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "lock type: object, device, medium, medium_update")
	cmd.Flags().StringVar(&key, "key", "", "lock key (natural id of the resource)")
	cmd.Flags().StringVar(&library, "library", "", "lock library component, for composite-key resources")
	root.AddCommand(cmd)
}

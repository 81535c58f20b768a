package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/halcyondata/graphgate/internal/tenantconfig"
)

var cfgDescription string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage per-tenant configuration entries",
	Long: `Read and write per-tenant configuration keys. Gate instances cache these
entries with a TTL, so a change becomes visible everywhere within one cache
lifetime.

Examples:
  graphgate config set acme-corp scoped_labels 'Business,Person,Transaction'
  graphgate config get acme-corp scoped_labels
  graphgate config list acme-corp
  graphgate config delete acme-corp scoped_labels`,
}

func init() {
	configSetCmd.Flags().StringVar(&cfgDescription, "description", "", "human-readable note on the entry")

	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configDeleteCmd)
}

// withConfigStore opens the control-plane store and hands it to fn.
func withConfigStore(cmd *cobra.Command, fn func(tenantconfig.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pool, err := openPool(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(tenantconfig.NewPGStore(pool))
}

var configGetCmd = &cobra.Command{
	Use:   "get <tenant-id> <key>",
	Short: "Print one configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConfigStore(cmd, func(store tenantconfig.Store) error {
			entry, err := store.Get(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), entry.Value)
			return nil
		})
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <tenant-id> <key> <value>",
	Short: "Create or replace a configuration entry",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConfigStore(cmd, func(store tenantconfig.Store) error {
			return store.Put(cmd.Context(), &tenantconfig.Entry{
				TenantID:    args[0],
				Key:         args[1],
				Value:       args[2],
				Description: cfgDescription,
			})
		})
	},
}

var configListCmd = &cobra.Command{
	Use:   "list <tenant-id>",
	Short: "List all configuration entries for a tenant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConfigStore(cmd, func(store tenantconfig.Store) error {
			entries, err := store.List(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", e.Key, e.Value)
			}
			return nil
		})
	},
}

var configDeleteCmd = &cobra.Command{
	Use:   "delete <tenant-id> <key>",
	Short: "Remove a configuration entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConfigStore(cmd, func(store tenantconfig.Store) error {
			return store.Delete(cmd.Context(), args[0], args[1])
		})
	},
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/halcyondata/graphgate/internal/tenant"
)

var (
	tnDisplayName string
	tnDomain      string
)

var tenantCmd = &cobra.Command{
	Use:   "tenant",
	Short: "Administer tenants",
	Long: `Provision tenants and move them through their lifecycle. Suspended
tenants are refused by the gate but keep their records; archiving is
terminal and never deletes data.

Examples:
  # Provision a tenant
  graphgate tenant provision acme-corp --name "Acme Corp" --domain acme.example

  # Suspend and reactivate
  graphgate tenant suspend acme-corp
  graphgate tenant reactivate acme-corp

  # Archive (terminal)
  graphgate tenant archive acme-corp

  # List all tenants
  graphgate tenant list`,
}

func init() {
	tenantProvisionCmd.Flags().StringVar(&tnDisplayName, "name", "", "display name (defaults to the ID)")
	tenantProvisionCmd.Flags().StringVar(&tnDomain, "domain", "", "domain owned by the tenant")

	tenantCmd.AddCommand(tenantProvisionCmd)
	tenantCmd.AddCommand(tenantSuspendCmd)
	tenantCmd.AddCommand(tenantReactivateCmd)
	tenantCmd.AddCommand(tenantArchiveCmd)
	tenantCmd.AddCommand(tenantListCmd)
}

// withRegistry opens the control-plane store and hands a Registry to fn.
func withRegistry(cmd *cobra.Command, fn func(*tenant.Registry) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pool, err := openPool(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(tenant.NewRegistry(tenant.NewPGStore(pool)))
}

var tenantProvisionCmd = &cobra.Command{
	Use:   "provision <tenant-id>",
	Short: "Create a new active tenant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRegistry(cmd, func(reg *tenant.Registry) error {
			name := tnDisplayName
			if name == "" {
				name = args[0]
			}
			t, err := reg.Provision(cmd.Context(), args[0], name, tnDomain)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "provisioned %s (%s)\n", t.ID, t.Status)
			return nil
		})
	},
}

var tenantSuspendCmd = &cobra.Command{
	Use:   "suspend <tenant-id>",
	Short: "Suspend a tenant; the gate refuses its queries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRegistry(cmd, func(reg *tenant.Registry) error {
			if err := reg.Suspend(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "suspended %s\n", args[0])
			return nil
		})
	},
}

var tenantReactivateCmd = &cobra.Command{
	Use:   "reactivate <tenant-id>",
	Short: "Reactivate a suspended tenant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRegistry(cmd, func(reg *tenant.Registry) error {
			if err := reg.Reactivate(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reactivated %s\n", args[0])
			return nil
		})
	},
}

var tenantArchiveCmd = &cobra.Command{
	Use:   "archive <tenant-id>",
	Short: "Archive a tenant (terminal)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRegistry(cmd, func(reg *tenant.Registry) error {
			if err := reg.Archive(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "archived %s\n", args[0])
			return nil
		})
	},
}

var tenantListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all tenants",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withRegistry(cmd, func(reg *tenant.Registry) error {
			tenants, err := reg.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, t := range tenants {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", t.ID, t.Status, t.DisplayName)
			}
			return nil
		})
	},
}

package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jmehdipour/restaurant-crm/internal/app"
	"github.com/jmehdipour/restaurant-crm/internal/model"
)

var tenantsCmd = &cobra.Command{
	Use:   "tenants",
	Short: "Manage the tenant directory",
}

var tenantsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all tenants",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		ts, err := a.Tenants.List(cmd.Context())
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSLUG\tNAME\tACTIVE")
		for _, t := range ts {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", t.ID, t.Slug, t.DisplayName, t.Active)
		}
		return tw.Flush()
	},
}

var newTenant model.Tenant

var tenantsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a tenant",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		t := newTenant
		t.Active = true
		created, err := a.Tenants.Create(cmd.Context(), t)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created tenant %s (%s)\n", created.ID, created.Slug)
		return nil
	},
}

var tenantsDeactivateCmd = &cobra.Command{
	Use:   "deactivate <id>",
	Short: "Deactivate a tenant; its data is kept",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		t, err := a.Tenants.Deactivate(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deactivated tenant %s\n", t.ID)
		return nil
	},
}

func init() {
	f := tenantsCreateCmd.Flags()
	f.StringVar(&newTenant.ID, "id", "", "tenant id")
	f.StringVar(&newTenant.DisplayName, "name", "", "display name")
	f.StringVar(&newTenant.Slug, "slug", "", "url slug")
	f.StringVar(&newTenant.Locale, "locale", "es-ES", "locale")
	f.StringVar(&newTenant.Currency, "currency", "EUR", "ISO 4217 currency")
	_ = tenantsCreateCmd.MarkFlagRequired("id")
	_ = tenantsCreateCmd.MarkFlagRequired("name")
	_ = tenantsCreateCmd.MarkFlagRequired("slug")

	tenantsCmd.AddCommand(tenantsListCmd, tenantsCreateCmd, tenantsDeactivateCmd)
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clinicdesk/clinicdesk/internal/config"
	"github.com/clinicdesk/clinicdesk/internal/domain/activity"
	"github.com/clinicdesk/clinicdesk/internal/domain/admission"
	"github.com/clinicdesk/clinicdesk/internal/domain/appointment"
	"github.com/clinicdesk/clinicdesk/internal/domain/invoice"
	"github.com/clinicdesk/clinicdesk/internal/domain/laborder"
	"github.com/clinicdesk/clinicdesk/internal/domain/patient"
	"github.com/clinicdesk/clinicdesk/internal/domain/settings"
	"github.com/clinicdesk/clinicdesk/internal/domain/user"
	"github.com/clinicdesk/clinicdesk/internal/domain/ward"
	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
	"github.com/clinicdesk/clinicdesk/internal/platform/docstore/postgres"
)

// collections lists every collection with the fields its list queries
// filter and sort on.
func collections() []docstore.Collection {
	return []docstore.Collection{
		{Name: patient.Collection, Indexes: patient.Indexes},
		{Name: appointment.Collection, Indexes: appointment.Indexes},
		{Name: laborder.Collection, Indexes: laborder.Indexes},
		{Name: invoice.Collection, Indexes: invoice.Indexes},
		{Name: ward.Collection, Indexes: ward.Indexes},
		{Name: admission.Collection, Indexes: admission.Indexes},
		{Name: user.Collection, Indexes: user.Indexes},
		{Name: activity.Collection, Indexes: []string{"timestamp", "actor_role", "entity_type"}},
		{Name: settings.Collection},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Prepare collections, tables and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close(context.Background())

			m, ok := store.(docstore.Migrator)
			if !ok {
				fmt.Printf("Driver %s needs no migration.\n", cfg.DocstoreDriver)
				return nil
			}
			cols := collections()
			if err := m.EnsureCollections(ctx, cols); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Prepared %d collection(s) on %s.\n", len(cols), cfg.DocstoreDriver)
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show SQL migration status (postgres driver)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DocstoreDriver != config.DriverPostgres {
				return fmt.Errorf("migration status is only tracked for the postgres driver")
			}
			ctx := cmd.Context()
			store, err := postgres.Open(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer store.Close(context.Background())

			statuses, err := store.Migrator().Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})
	return cmd
}

package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/clinicdesk/clinicdesk/internal/client"
)

func activityCmd() *cobra.Command {
	var baseURL, token string
	var f client.ActivityFilter
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Print the recent activity log of a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.New(baseURL, client.WithToken(token))
			if err != nil {
				return err
			}
			entries, err := c.Activity(cmd.Context(), f)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "WHEN\tWHO\tROLE\tACTION\tENTITY")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s %s\n",
					e.Timestamp.Local().Format(time.DateTime), e.ActorName, e.ActorRole, e.Action, e.EntityType, e.EntityID)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:8080", "Server base URL")
	cmd.Flags().StringVar(&token, "token", os.Getenv("CLINIC_TOKEN"), "Bearer token (defaults to $CLINIC_TOKEN)")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "Number of entries (server default when 0)")
	cmd.Flags().StringVar(&f.Role, "role", "", "Only entries by this role")
	cmd.Flags().StringVar(&f.EntityType, "entity-type", "", "Only entries about this entity type")
	return cmd
}

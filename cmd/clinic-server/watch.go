package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clinicdesk/clinicdesk/internal/client"
	"github.com/clinicdesk/clinicdesk/internal/domain/admission"
	"github.com/clinicdesk/clinicdesk/internal/domain/appointment"
	"github.com/clinicdesk/clinicdesk/internal/domain/invoice"
	"github.com/clinicdesk/clinicdesk/internal/domain/laborder"
	"github.com/clinicdesk/clinicdesk/internal/domain/patient"
	"github.com/clinicdesk/clinicdesk/internal/domain/user"
	"github.com/clinicdesk/clinicdesk/internal/domain/ward"
	"github.com/clinicdesk/clinicdesk/internal/mirror"
)

// topicRoutes maps a live topic to the list route that backs it.
var topicRoutes = map[string]string{
	patient.Collection:     "/api/patients",
	appointment.Collection: "/api/appointments",
	laborder.Collection:    "/api/lab-orders",
	invoice.Collection:     "/api/invoices",
	ward.Collection:        "/api/wards",
	admission.Collection:   "/api/admissions",
	user.Collection:        "/api/admin/users",
}

type record = map[string]any

func recordID(r record) string {
	id, _ := r["id"].(string)
	return id
}

func watchCmd() *cobra.Command {
	var baseURL, token, topic string
	var filters []string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Mirror one collection from a running server and print it as it changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			route, ok := topicRoutes[topic]
			if !ok {
				return fmt.Errorf("unknown topic %q (one of %s)", topic, strings.Join(topicNames(), ", "))
			}
			query, err := parseFilters(filters)
			if err != nil {
				return err
			}
			logger := newLogger(true)
			c, err := client.New(baseURL, client.WithToken(token), client.WithLogger(logger))
			if err != nil {
				return err
			}

			ctx, stop := exitOnSignal()
			defer stop()

			m := mirror.New(client.NewResource[record](c, route), topic, recordID,
				mirror.WithFilters[record](query), mirror.WithLogger[record](logger))
			unsubscribe := m.Subscribe(func(items []record) {
				fmt.Fprintf(os.Stdout, "%s: %d records\n", topic, len(items))
				for _, it := range items {
					fmt.Fprintf(os.Stdout, "  %s %s\n", recordID(it), summarize(it))
				}
			})
			defer unsubscribe()

			events, err := c.Watch(ctx, topic)
			if err != nil {
				return err
			}
			if err := m.FetchAll(ctx); err != nil {
				return err
			}
			m.Sync(ctx, events)
			if ctx.Err() == nil {
				return fmt.Errorf("live connection to %s closed", baseURL)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:8080", "Server base URL")
	cmd.Flags().StringVar(&token, "token", os.Getenv("CLINIC_TOKEN"), "Bearer token (defaults to $CLINIC_TOKEN)")
	cmd.Flags().StringVar(&topic, "topic", patient.Collection, "Collection to mirror")
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "List filter as key=value, repeatable")
	return cmd
}

func topicNames() []string {
	names := make([]string, 0, len(topicRoutes))
	for name := range topicRoutes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func parseFilters(pairs []string) (map[string][]string, error) {
	out := map[string][]string{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("filter %q is not key=value", p)
		}
		out[k] = append(out[k], v)
	}
	return out, nil
}

// summarize picks the fields a person would scan for in a terminal.
func summarize(r record) string {
	var parts []string
	for _, k := range []string{"name", "patientName", "status", "date", "time", "totalAmount"} {
		if v, ok := r[k]; ok && v != nil && v != "" {
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
	}
	if fn, ok := r["firstName"].(string); ok {
		parts = append([]string{fmt.Sprintf("name=%s %v", fn, r["lastName"])}, parts...)
	}
	return strings.Join(parts, " ")
}

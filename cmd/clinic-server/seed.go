package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/spf13/cobra"

	"github.com/clinicdesk/clinicdesk/internal/config"
	"github.com/clinicdesk/clinicdesk/internal/domain/admission"
	"github.com/clinicdesk/clinicdesk/internal/domain/appointment"
	"github.com/clinicdesk/clinicdesk/internal/domain/invoice"
	"github.com/clinicdesk/clinicdesk/internal/domain/laborder"
	"github.com/clinicdesk/clinicdesk/internal/domain/patient"
	"github.com/clinicdesk/clinicdesk/internal/domain/user"
	"github.com/clinicdesk/clinicdesk/internal/domain/ward"
	"github.com/clinicdesk/clinicdesk/internal/platform/auth"
)

type seedOptions struct {
	Patients int
	Doctors  int
	Seed     uint64
	Password string
}

func seedCmd() *cobra.Command {
	opts := seedOptions{}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the store with realistic demo data",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.IsProduction() {
				return errors.New("refusing to seed a production deployment")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger := newLogger(cfg.IsDev())
			in, err := openInfra(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer in.Close(context.Background())

			counts, err := seed(cmd.Context(), newServices(in), opts)
			if err != nil {
				return err
			}
			logger.Info().Interface("created", counts).Msg("seed complete")
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.Patients, "patients", 40, "Number of patients")
	cmd.Flags().IntVar(&opts.Doctors, "doctors", 5, "Number of doctors")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "Random seed (0 picks one)")
	cmd.Flags().StringVar(&opts.Password, "password", "changeme123", "Password for every seeded user")
	return cmd
}

var labCatalog = []laborder.Test{
	{Code: "CBC", Name: "Complete Blood Count", Price: 25},
	{Code: "BMP", Name: "Basic Metabolic Panel", Price: 35},
	{Code: "LIPID", Name: "Lipid Panel", Price: 40},
	{Code: "TSH", Name: "Thyroid Stimulating Hormone", Price: 30},
	{Code: "HBA1C", Name: "Hemoglobin A1c", Price: 28},
	{Code: "UA", Name: "Urinalysis", Price: 15},
}

var (
	visitReasons = []string{"Persistent headache", "Annual physical", "Blood pressure review", "Fever and cough", "Lower back pain", "Diabetes follow-up", "Skin rash"}
	admitReasons = []string{"Pneumonia", "Post-operative observation", "Dehydration", "Labour", "Chest pain observation"}
)

// seed creates data through the services so every record carries its
// denormalized names and shows up in the activity log.
func seed(ctx context.Context, s *services, opts seedOptions) (map[string]int, error) {
	f := gofakeit.New(opts.Seed)
	ctx = auth.WithIdentity(ctx, "seed", "Seeder", []string{auth.RoleAdmin})
	counts := map[string]int{}

	staff := []struct {
		role  string
		count int
	}{
		{auth.RoleAdmin, 1},
		{auth.RoleDoctor, opts.Doctors},
		{auth.RoleNurse, 2},
		{auth.RoleReceptionist, 2},
		{auth.RoleLabTechnician, 1},
		{auth.RolePharmacist, 1},
		{auth.RoleAccountant, 1},
	}
	var doctors []string
	for _, st := range staff {
		for i := 0; i < st.count; i++ {
			name := f.FirstName() + " " + f.LastName()
			if st.role == auth.RoleDoctor {
				name = "Dr. " + name
			}
			u, err := s.users.Create(ctx, &user.CreateRequest{
				Name:       name,
				Email:      fmt.Sprintf("%s.%d@%s", st.role, i+1, "clinic.example"),
				Password:   opts.Password,
				Role:       st.role,
				Phone:      f.Phone(),
				Department: f.RandomString([]string{"General", "Pediatrics", "Cardiology", "Laboratory", "Front Desk"}),
			})
			if err != nil {
				return counts, fmt.Errorf("seed user: %w", err)
			}
			counts["users"]++
			if st.role == auth.RoleDoctor {
				doctors = append(doctors, u.ID)
			}
		}
	}

	var patients []*patient.Patient
	for i := 0; i < opts.Patients; i++ {
		dob := f.DateRange(time.Now().AddDate(-90, 0, 0), time.Now().AddDate(-1, 0, 0))
		p, err := s.patients.Create(ctx, &patient.CreateRequest{
			FirstName:   f.FirstName(),
			LastName:    f.LastName(),
			DateOfBirth: dob.Format("2006-01-02"),
			Gender:      f.RandomString([]string{"Male", "Female", "Other"}),
			Phone:       f.Phone(),
			Email:       f.Email(),
			BloodGroup:  f.RandomString([]string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}),
			Allergies:   pick(f, []string{"Penicillin", "Peanuts", "Latex", "Aspirin", "Shellfish"}, f.Number(0, 2)),
			Address: patient.Address{
				Street:     f.Street(),
				City:       f.City(),
				State:      f.State(),
				PostalCode: f.Zip(),
				Country:    f.Country(),
			},
		})
		if err != nil {
			return counts, fmt.Errorf("seed patient: %w", err)
		}
		patients = append(patients, p)
		counts["patients"]++
	}
	if len(patients) == 0 || len(doctors) == 0 {
		return counts, nil
	}

	for _, p := range patients {
		day := time.Now().AddDate(0, 0, f.Number(-14, 14))
		a, err := s.appointments.Create(ctx, &appointment.CreateRequest{
			PatientID:  p.ID,
			ProviderID: doctors[f.Number(0, len(doctors)-1)],
			Date:       day.Format("2006-01-02"),
			Time:       fmt.Sprintf("%02d:%02d", f.Number(8, 16), f.RandomInt([]int{0, 30})),
			Type:       f.RandomString([]string{"Consultation", "Checkup", "Follow-up", "Procedure"}),
			Reason:     f.RandomString(visitReasons),
		})
		if errors.Is(err, appointment.ErrSlotTaken) {
			continue
		}
		if err != nil {
			return counts, fmt.Errorf("seed appointment: %w", err)
		}
		counts["appointments"]++

		if f.Bool() {
			continue
		}
		tests := pickTests(f)
		o, err := s.labOrders.Create(ctx, &laborder.CreateRequest{
			PatientID: p.ID,
			Tests:     tests,
			Priority:  f.RandomString([]string{"Routine", "Routine", "Urgent", "STAT"}),
		})
		if err != nil {
			return counts, fmt.Errorf("seed lab order: %w", err)
		}
		counts["lab_orders"]++

		items := []invoice.Item{{Description: a.Type, Quantity: 1, UnitPrice: 50}}
		for _, t := range tests {
			items = append(items, invoice.Item{Description: t.Name, Quantity: 1, UnitPrice: t.Price})
		}
		total := invoice.SumItems(items)
		paid := f.RandomInt([]int{0, 0, 1, 2})
		_, err = s.invoices.Create(ctx, &invoice.CreateRequest{
			PatientID:     p.ID,
			AppointmentID: a.ID,
			LabOrderID:    o.ID,
			Items:         items,
			AmountPaid:    total * float64(paid) / 2,
			PaymentMethod: f.RandomString([]string{"Cash", "Card", "Insurance", "Transfer", "Mobile"}),
			DueDate:       day.AddDate(0, 0, 30).Format("2006-01-02"),
		})
		if err != nil {
			return counts, fmt.Errorf("seed invoice: %w", err)
		}
		counts["invoices"]++
	}

	for _, wd := range []struct {
		name, kind string
		beds       int
	}{
		{"East Wing", "General", 8},
		{"Intensive Care", "ICU", 4},
		{"Maternity", "Maternity", 6},
	} {
		beds := make([]ward.BedInput, wd.beds)
		for i := range beds {
			beds[i] = ward.BedInput{Number: fmt.Sprintf("%s-%02d", wd.kind[:1], i+1)}
		}
		w, err := s.wards.Create(ctx, &ward.CreateRequest{Name: wd.name, Type: wd.kind, Floor: fmt.Sprint(f.Number(1, 4)), Beds: beds})
		if err != nil {
			return counts, fmt.Errorf("seed ward: %w", err)
		}
		counts["wards"]++

		// Admit a couple of patients per ward.
		for i := 0; i < 2 && i < len(patients) && i < len(w.Beds); i++ {
			p := patients[f.Number(0, len(patients)-1)]
			_, err := s.admissions.Admit(ctx, &admission.AdmitRequest{
				PatientID: p.ID,
				WardID:    w.ID,
				BedNumber: w.Beds[i].Number,
				Reason:    f.RandomString(admitReasons),
			})
			if errors.Is(err, admission.ErrAlreadyAdmitted) {
				continue
			}
			if err != nil {
				return counts, fmt.Errorf("seed admission: %w", err)
			}
			counts["admissions"]++
		}
	}
	return counts, nil
}

func pick(f *gofakeit.Faker, from []string, n int) []string {
	out := append([]string(nil), from...)
	f.ShuffleStrings(out)
	return out[:n]
}

func pickTests(f *gofakeit.Faker) []laborder.Test {
	idx := make([]int, len(labCatalog))
	for i := range idx {
		idx[i] = i
	}
	f.ShuffleInts(idx)
	n := f.Number(1, 3)
	out := make([]laborder.Test, 0, n)
	for _, i := range idx[:n] {
		out = append(out, labCatalog[i])
	}
	return out
}

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/doctor-queue-scheduling/internal/calendar"
	"github.com/hackgods/doctor-queue-scheduling/internal/clock"
	"github.com/hackgods/doctor-queue-scheduling/internal/db"
	"github.com/hackgods/doctor-queue-scheduling/internal/doctor"
	"github.com/hackgods/doctor-queue-scheduling/internal/logging"
)

var specialties = map[string]string{
	"Cardiology":       "Heart Center",
	"Dermatology":      "Skin & Allergy",
	"General Practice": "Primary Care",
	"Orthopedics":      "Musculoskeletal",
	"Endocrinology":    "Internal Medicine",
	"Neurology":        "Neurosciences",
	"Pediatrics":       "Children's Health",
	"Psychiatry":       "Behavioral Health",
	"Ophthalmology":    "Eye Care",
	"ENT":              "Head & Neck",
}

var shifts = [][]string{
	{"09:00-12:00"},
	{"09:00-12:00", "14:00-17:00"},
	{"08:00-13:00"},
	{"13:00-18:00"},
	{"10:00-12:00", "15:00-19:00"},
}

func main() {
	_ = godotenv.Load()

	var (
		dsn   string
		count int
		seed  int64
	)
	cmd := &cobra.Command{
		Use:          "seed",
		Short:        "Insert fake doctors into Postgres",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New(os.Getenv("LOG_LEVEL"), os.Getenv("APP_ENV"))
			if dsn == "" {
				return fmt.Errorf("POSTGRES_DSN or --dsn is required")
			}
			if seed == 0 {
				seed = time.Now().UnixNano()
			}
			gofakeit.Seed(seed)

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			pool, err := db.ConnectPostgres(ctx, dsn)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pool.Close()

			return db.WithTx(ctx, pool, func(tx pgx.Tx) error {
				if err := seedDoctors(ctx, tx, count, log); err != nil {
					return fmt.Errorf("seed doctors: %w", err)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", os.Getenv("POSTGRES_DSN"), "Postgres connection string (defaults to POSTGRES_DSN)")
	cmd.Flags().IntVar(&count, "doctors", 40, "Number of doctors to create")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed (0 uses the current time)")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func seedDoctors(ctx context.Context, tx pgx.Tx, count int, log zerolog.Logger) error {
	log.Info().Int("count", count).Msg("seeding doctors")

	repo := doctor.NewPgRepository(tx)
	ids := clock.RandomIDs{}
	names := make([]string, 0, len(specialties))
	for s := range specialties {
		names = append(names, s)
	}
	now := time.Now().UTC()
	seen := make(map[string]bool, count)

	for i := 0; i < count; i++ {
		id := ids.NewDoctorID()
		for seen[id] {
			id = ids.NewDoctorID()
		}
		seen[id] = true

		spec := names[gofakeit.Number(0, len(names)-1)]
		slots, err := parseShift(shifts[gofakeit.Number(0, len(shifts)-1)])
		if err != nil {
			return err
		}
		d := doctor.Doctor{
			ID:                 id,
			Name:               "Dr. " + gofakeit.FirstName() + " " + gofakeit.LastName(),
			Email:              gofakeit.Email(),
			Phone:              gofakeit.Phone(),
			Specialization:     spec,
			Department:         specialties[spec],
			ExperienceYears:    gofakeit.Number(1, 35),
			Qualifications:     "MBBS, MD (" + spec + ")",
			ConsultationFee:    float64(gofakeit.Number(4, 30) * 10),
			AvailableDays:      randomDays(),
			AvailableTimeSlots: slots,
			Active:             gofakeit.Number(0, 9) > 0,
			CreatedAt:          now,
			UpdatedAt:          now,
			Version:            1,
		}
		if err := repo.UpsertDoctor(ctx, d); err != nil {
			return err
		}
	}

	log.Info().Int("count", count).Msg("doctors seeded")
	return nil
}

func randomDays() []time.Weekday {
	var days []time.Weekday
	for d := time.Monday; d <= time.Saturday; d++ {
		if gofakeit.Number(0, 2) > 0 {
			days = append(days, d)
		}
	}
	if len(days) == 0 {
		days = append(days, time.Monday)
	}
	return days
}

func parseShift(in []string) ([]calendar.TimeRange, error) {
	out := make([]calendar.TimeRange, 0, len(in))
	for _, s := range in {
		r, err := calendar.ParseTimeRange(s)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

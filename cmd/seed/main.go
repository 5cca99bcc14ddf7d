package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicops/clinic-scheduling/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedDoctors(context.Background(), pool, 40); err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 2000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedHolidays(context.Background(), pool); err != nil {
		log.Fatalf("seed holidays: %v", err)
	}

	log.Println("seed complete")
}

var specialties = []string{
	"General Medicine", "Cardiology", "Dermatology", "Pediatrics",
	"Orthopedics", "Neurology", "ENT", "Ophthalmology",
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, n int) error {
	for i := 0; i < n; i++ {
		id := uuid.New()
		specialty := specialties[gofakeit.Number(0, len(specialties)-1)]
		slotMinutes := []int{15, 20, 30, 30, 30, 45}[gofakeit.Number(0, 5)]
		fee := gofakeit.Number(30, 200) * 100

		_, err := pool.Exec(ctx, `
			INSERT INTO doctors (id, name, specialty, slot_minutes, consultation_fee_cents)
			VALUES ($1, $2, $3, $4, $5)
		`, id, "Dr. "+gofakeit.Name(), specialty, slotMinutes, fee)
		if err != nil {
			return err
		}

		if err := seedTemplate(ctx, pool, id); err != nil {
			return err
		}
	}
	log.Printf("seeded %d doctors with weekly templates", n)
	return nil
}

// seedTemplate gives the doctor a plausible Mon-Fri pattern: a morning
// block, and for most doctors an afternoon block too.
func seedTemplate(ctx context.Context, pool *pgxpool.Pool, doctorID uuid.UUID) error {
	morningStart := gofakeit.Number(7, 9) * 60
	morningEnd := morningStart + gofakeit.Number(3, 4)*60
	afternoonStart := gofakeit.Number(13, 15) * 60
	afternoonEnd := afternoonStart + gofakeit.Number(2, 4)*60
	hasAfternoon := gofakeit.Number(0, 9) < 8

	for weekday := 1; weekday <= 5; weekday++ {
		if gofakeit.Number(0, 9) == 0 {
			continue // a weekday off now and then
		}
		_, err := pool.Exec(ctx, `
			INSERT INTO weekly_templates (doctor_id, weekday, start_min, end_min)
			VALUES ($1, $2, $3, $4)
		`, doctorID, weekday, morningStart, morningEnd)
		if err != nil {
			return err
		}
		if hasAfternoon {
			_, err := pool.Exec(ctx, `
				INSERT INTO weekly_templates (doctor_id, weekday, start_min, end_min)
				VALUES ($1, $2, $3, $4)
			`, doctorID, weekday, afternoonStart, afternoonEnd)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, n int) error {
	for i := 0; i < n; i++ {
		email := gofakeit.Email()
		_, err := pool.Exec(ctx, `
			INSERT INTO patients (id, name, email)
			VALUES ($1, $2, $3)
		`, uuid.New(), gofakeit.Name(), email)
		if err != nil {
			return err
		}
	}
	log.Printf("seeded %d patients", n)
	return nil
}

func seedHolidays(ctx context.Context, pool *pgxpool.Pool) error {
	year := time.Now().Year()
	holidays := map[string]time.Time{
		"New Year's Day": time.Date(year+1, 1, 1, 0, 0, 0, 0, time.UTC),
		"Christmas Day":  time.Date(year, 12, 25, 0, 0, 0, 0, time.UTC),
	}
	for name, date := range holidays {
		_, err := pool.Exec(ctx, `
			INSERT INTO holidays (date, name, mandatory)
			VALUES ($1, $2, TRUE)
			ON CONFLICT (date) DO NOTHING
		`, date, name)
		if err != nil {
			return err
		}
	}
	log.Printf("seeded %d holidays", len(holidays))
	return nil
}

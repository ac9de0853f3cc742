// Package store provides storage backends for the dealerbot.
//
// This file implements the PostgreSQL-backed store for shared deployments.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/fusioncars/dealerbot/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) CreateCar(car *models.Car) error {
	prepareNewCar(car)
	_, err := s.db.Exec(
		`INSERT INTO cars (`+carColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)`,
		carArgs(*car)...,
	)
	if err != nil {
		slog.Error("PostgresStore CreateCar failed", "error", err, "id", car.ID)
		return fmt.Errorf("failed to insert car %s: %w", car.ID, err)
	}
	slog.Debug("PostgresStore CreateCar succeeded", "id", car.ID, "name", car.Name)
	return nil
}

func (s *PostgresStore) GetCar(id string) (*models.Car, error) {
	row := s.db.QueryRow(`SELECT `+carColumns+` FROM cars WHERE id = $1`, id)
	car, err := scanCar(row)
	if err != nil {
		if isNoRows(err) {
			slog.Debug("PostgresStore GetCar not found", "id", id)
			return nil, nil
		}
		slog.Error("PostgresStore GetCar failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to get car %s: %w", id, err)
	}
	return &car, nil
}

func (s *PostgresStore) UpdateCar(car models.Car) error {
	car.UpdatedAt = time.Now().UTC()
	res, err := s.db.Exec(
		`UPDATE cars SET name = $1, brand = $2, model = $3, year = $4, price = $5, kms_driven = $6, fuel_type = $7, transmission = $8, color = $9, owners = $10, image = $11, mileage = $12, engine_capacity = $13, seating = $14, featured = $15, available = $16, sold = $17, sold_at = $18, status = $19, last_updated_by = $20, updated_at = $21 WHERE id = $22`,
		car.Name, car.Brand, car.Model, car.Year, car.Price, car.KmsDriven,
		string(car.FuelType), string(car.Transmission), car.Color, car.Owners, car.Image,
		car.Mileage, car.EngineCapacity, car.Seating, car.Featured, car.Available,
		car.Sold, nullableTime(car.SoldAt), string(car.Status), nilIfEmpty(car.LastUpdatedBy), car.UpdatedAt, car.ID,
	)
	if err != nil {
		slog.Error("PostgresStore UpdateCar failed", "error", err, "id", car.ID)
		return fmt.Errorf("failed to update car %s: %w", car.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result for car %s: %w", car.ID, err)
	}
	if affected == 0 {
		slog.Debug("PostgresStore UpdateCar no such car", "id", car.ID)
		return models.ErrCarNotFound
	}
	slog.Debug("PostgresStore UpdateCar succeeded", "id", car.ID)
	return nil
}

func (s *PostgresStore) DeleteCar(id string) (*models.Car, error) {
	car, err := s.GetCar(id)
	if err != nil {
		return nil, err
	}
	if car == nil {
		return nil, nil
	}
	if _, err := s.db.Exec(`DELETE FROM cars WHERE id = $1`, id); err != nil {
		slog.Error("PostgresStore DeleteCar failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to delete car %s: %w", id, err)
	}
	slog.Debug("PostgresStore DeleteCar succeeded", "id", id, "name", car.Name)
	return car, nil
}

func (s *PostgresStore) ListCars(page, pageSize int) ([]models.Car, int, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM cars WHERE available AND NOT sold`).Scan(&total); err != nil {
		slog.Error("PostgresStore ListCars count failed", "error", err)
		return nil, 0, fmt.Errorf("failed to count cars: %w", err)
	}

	rows, err := s.db.Query(
		`SELECT `+carColumns+` FROM cars WHERE available AND NOT sold ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		pageSize, offset,
	)
	if err != nil {
		slog.Error("PostgresStore ListCars query failed", "error", err)
		return nil, 0, fmt.Errorf("failed to query cars: %w", err)
	}
	defer rows.Close()

	var cars []models.Car
	for rows.Next() {
		car, err := scanCar(rows)
		if err != nil {
			slog.Error("PostgresStore ListCars scan failed", "error", err)
			return nil, 0, err
		}
		cars = append(cars, car)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListCars rows iteration failed", "error", err)
		return nil, 0, fmt.Errorf("failed to iterate car rows: %w", err)
	}
	slog.Debug("PostgresStore ListCars succeeded", "count", len(cars), "total", total, "page", page)
	return cars, total, nil
}

func (s *PostgresStore) MarkCarSold(id string) (*models.Car, error) {
	now := time.Now().UTC()
	res, err := s.db.Exec(
		`UPDATE cars SET sold = TRUE, available = FALSE, status = $1, sold_at = $2, updated_at = $3 WHERE id = $4`,
		string(models.CarStatusSold), now, now, id,
	)
	if err != nil {
		slog.Error("PostgresStore MarkCarSold failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to mark car %s sold: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read sold result for car %s: %w", id, err)
	}
	if affected == 0 {
		return nil, nil
	}
	return s.GetCar(id)
}

func (s *PostgresStore) ToggleCarFeatured(id string) (*models.Car, error) {
	res, err := s.db.Exec(`UPDATE cars SET featured = NOT featured, updated_at = $1 WHERE id = $2`, time.Now().UTC(), id)
	if err != nil {
		slog.Error("PostgresStore ToggleCarFeatured failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to toggle featured for car %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read featured result for car %s: %w", id, err)
	}
	if affected == 0 {
		return nil, nil
	}
	return s.GetCar(id)
}

func (s *PostgresStore) CarCounts() (models.CarCounts, error) {
	var counts models.CarCounts
	err := s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN available AND NOT sold THEN 1 ELSE 0 END), 0), COALESCE(SUM(CASE WHEN sold THEN 1 ELSE 0 END), 0) FROM cars`,
	).Scan(&counts.Total, &counts.Available, &counts.Sold)
	if err != nil {
		slog.Error("PostgresStore CarCounts failed", "error", err)
		return counts, fmt.Errorf("failed to count cars: %w", err)
	}
	return counts, nil
}

func (s *PostgresStore) SalesSummary(since time.Time) (models.SalesSummary, error) {
	var summary models.SalesSummary
	err := s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(price), 0) FROM cars WHERE sold AND sold_at >= $1`,
		since,
	).Scan(&summary.Count, &summary.Revenue)
	if err != nil {
		slog.Error("PostgresStore SalesSummary failed", "error", err, "since", since)
		return summary, fmt.Errorf("failed to summarize sales: %w", err)
	}
	return summary, nil
}

func (s *PostgresStore) CreateAdmin(admin models.Admin) error {
	permissions, err := encodePermissions(admin.Permissions)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO admins (id, name, whatsapp_number, whatsapp_verified, permissions) VALUES ($1, $2, $3, $4, $5)`,
		admin.ID, admin.Name, admin.WhatsAppNumber, admin.WhatsAppVerified, permissions,
	)
	if err != nil {
		slog.Error("PostgresStore CreateAdmin failed", "error", err, "id", admin.ID)
		return fmt.Errorf("failed to insert admin %s: %w", admin.ID, err)
	}
	return nil
}

func (s *PostgresStore) ListVerifiedAdmins() ([]models.Admin, error) {
	rows, err := s.db.Query(
		`SELECT id, name, whatsapp_number, whatsapp_verified, permissions FROM admins WHERE whatsapp_verified AND whatsapp_number != ''`,
	)
	if err != nil {
		slog.Error("PostgresStore ListVerifiedAdmins query failed", "error", err)
		return nil, fmt.Errorf("failed to query admins: %w", err)
	}
	defer rows.Close()

	var admins []models.Admin
	for rows.Next() {
		admin, err := scanAdmin(rows)
		if err != nil {
			slog.Error("PostgresStore ListVerifiedAdmins scan failed", "error", err)
			return nil, err
		}
		admins = append(admins, admin)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListVerifiedAdmins rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate admin rows: %w", err)
	}
	return admins, nil
}

func (s *PostgresStore) CreateBooking(booking models.Booking) error {
	prepareNewBooking(&booking)
	_, err := s.db.Exec(
		`INSERT INTO bookings (id, car_id, car_name, customer_name, customer_phone, preferred_date, status, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		booking.ID, booking.CarID, booking.CarName, booking.CustomerName, booking.CustomerPhone,
		booking.PreferredDate, string(booking.Status), booking.CreatedAt,
	)
	if err != nil {
		slog.Error("PostgresStore CreateBooking failed", "error", err, "id", booking.ID)
		return fmt.Errorf("failed to insert booking %s: %w", booking.ID, err)
	}
	return nil
}

func (s *PostgresStore) ListPendingBookings(limit int) ([]models.Booking, error) {
	rows, err := s.db.Query(
		`SELECT id, car_id, car_name, customer_name, customer_phone, preferred_date, status, created_at FROM bookings WHERE status = $1 ORDER BY created_at DESC LIMIT $2`,
		string(models.BookingStatusPending), limit,
	)
	if err != nil {
		slog.Error("PostgresStore ListPendingBookings query failed", "error", err)
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			slog.Error("PostgresStore ListPendingBookings scan failed", "error", err)
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListPendingBookings rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate booking rows: %w", err)
	}
	return bookings, nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Package store provides storage backends for the dealerbot.
//
// This file implements the SQLite-backed store, the default for single-host
// deployments.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/fusioncars/dealerbot/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateCar(car *models.Car) error {
	prepareNewCar(car)
	_, err := s.db.Exec(
		`INSERT INTO cars (`+carColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		carArgs(*car)...,
	)
	if err != nil {
		slog.Error("SQLiteStore CreateCar failed", "error", err, "id", car.ID)
		return fmt.Errorf("failed to insert car %s: %w", car.ID, err)
	}
	slog.Debug("SQLiteStore CreateCar succeeded", "id", car.ID, "name", car.Name)
	return nil
}

func (s *SQLiteStore) GetCar(id string) (*models.Car, error) {
	row := s.db.QueryRow(`SELECT `+carColumns+` FROM cars WHERE id = ?`, id)
	car, err := scanCar(row)
	if err != nil {
		if isNoRows(err) {
			slog.Debug("SQLiteStore GetCar not found", "id", id)
			return nil, nil
		}
		slog.Error("SQLiteStore GetCar failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to get car %s: %w", id, err)
	}
	return &car, nil
}

func (s *SQLiteStore) UpdateCar(car models.Car) error {
	car.UpdatedAt = time.Now().UTC()
	res, err := s.db.Exec(
		`UPDATE cars SET name = ?, brand = ?, model = ?, year = ?, price = ?, kms_driven = ?, fuel_type = ?, transmission = ?, color = ?, owners = ?, image = ?, mileage = ?, engine_capacity = ?, seating = ?, featured = ?, available = ?, sold = ?, sold_at = ?, status = ?, last_updated_by = ?, updated_at = ? WHERE id = ?`,
		car.Name, car.Brand, car.Model, car.Year, car.Price, car.KmsDriven,
		string(car.FuelType), string(car.Transmission), car.Color, car.Owners, car.Image,
		car.Mileage, car.EngineCapacity, car.Seating, car.Featured, car.Available,
		car.Sold, nullableTime(car.SoldAt), string(car.Status), nilIfEmpty(car.LastUpdatedBy), car.UpdatedAt, car.ID,
	)
	if err != nil {
		slog.Error("SQLiteStore UpdateCar failed", "error", err, "id", car.ID)
		return fmt.Errorf("failed to update car %s: %w", car.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result for car %s: %w", car.ID, err)
	}
	if affected == 0 {
		slog.Debug("SQLiteStore UpdateCar no such car", "id", car.ID)
		return models.ErrCarNotFound
	}
	slog.Debug("SQLiteStore UpdateCar succeeded", "id", car.ID)
	return nil
}

func (s *SQLiteStore) DeleteCar(id string) (*models.Car, error) {
	car, err := s.GetCar(id)
	if err != nil {
		return nil, err
	}
	if car == nil {
		return nil, nil
	}
	if _, err := s.db.Exec(`DELETE FROM cars WHERE id = ?`, id); err != nil {
		slog.Error("SQLiteStore DeleteCar failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to delete car %s: %w", id, err)
	}
	slog.Debug("SQLiteStore DeleteCar succeeded", "id", id, "name", car.Name)
	return car, nil
}

func (s *SQLiteStore) ListCars(page, pageSize int) ([]models.Car, int, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM cars WHERE available = 1 AND sold = 0`).Scan(&total); err != nil {
		slog.Error("SQLiteStore ListCars count failed", "error", err)
		return nil, 0, fmt.Errorf("failed to count cars: %w", err)
	}

	rows, err := s.db.Query(
		`SELECT `+carColumns+` FROM cars WHERE available = 1 AND sold = 0 ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		pageSize, offset,
	)
	if err != nil {
		slog.Error("SQLiteStore ListCars query failed", "error", err)
		return nil, 0, fmt.Errorf("failed to query cars: %w", err)
	}
	defer rows.Close()

	var cars []models.Car
	for rows.Next() {
		car, err := scanCar(rows)
		if err != nil {
			slog.Error("SQLiteStore ListCars scan failed", "error", err)
			return nil, 0, err
		}
		cars = append(cars, car)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListCars rows iteration failed", "error", err)
		return nil, 0, fmt.Errorf("failed to iterate car rows: %w", err)
	}
	slog.Debug("SQLiteStore ListCars succeeded", "count", len(cars), "total", total, "page", page)
	return cars, total, nil
}

func (s *SQLiteStore) MarkCarSold(id string) (*models.Car, error) {
	now := time.Now().UTC()
	res, err := s.db.Exec(
		`UPDATE cars SET sold = 1, available = 0, status = ?, sold_at = ?, updated_at = ? WHERE id = ?`,
		string(models.CarStatusSold), now, now, id,
	)
	if err != nil {
		slog.Error("SQLiteStore MarkCarSold failed", "error", err, "id", id)
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

func (s *SQLiteStore) ToggleCarFeatured(id string) (*models.Car, error) {
	res, err := s.db.Exec(`UPDATE cars SET featured = NOT featured, updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		slog.Error("SQLiteStore ToggleCarFeatured failed", "error", err, "id", id)
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

func (s *SQLiteStore) CarCounts() (models.CarCounts, error) {
	var counts models.CarCounts
	err := s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(available = 1 AND sold = 0), 0), COALESCE(SUM(sold = 1), 0) FROM cars`,
	).Scan(&counts.Total, &counts.Available, &counts.Sold)
	if err != nil {
		slog.Error("SQLiteStore CarCounts failed", "error", err)
		return counts, fmt.Errorf("failed to count cars: %w", err)
	}
	return counts, nil
}

func (s *SQLiteStore) SalesSummary(since time.Time) (models.SalesSummary, error) {
	var summary models.SalesSummary
	err := s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(price), 0) FROM cars WHERE sold = 1 AND sold_at >= ?`,
		since,
	).Scan(&summary.Count, &summary.Revenue)
	if err != nil {
		slog.Error("SQLiteStore SalesSummary failed", "error", err, "since", since)
		return summary, fmt.Errorf("failed to summarize sales: %w", err)
	}
	return summary, nil
}

func (s *SQLiteStore) CreateAdmin(admin models.Admin) error {
	permissions, err := encodePermissions(admin.Permissions)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO admins (id, name, whatsapp_number, whatsapp_verified, permissions) VALUES (?, ?, ?, ?, ?)`,
		admin.ID, admin.Name, admin.WhatsAppNumber, admin.WhatsAppVerified, permissions,
	)
	if err != nil {
		slog.Error("SQLiteStore CreateAdmin failed", "error", err, "id", admin.ID)
		return fmt.Errorf("failed to insert admin %s: %w", admin.ID, err)
	}
	slog.Debug("SQLiteStore CreateAdmin succeeded", "id", admin.ID)
	return nil
}

func (s *SQLiteStore) ListVerifiedAdmins() ([]models.Admin, error) {
	rows, err := s.db.Query(
		`SELECT id, name, whatsapp_number, whatsapp_verified, permissions FROM admins WHERE whatsapp_verified = 1 AND whatsapp_number != ''`,
	)
	if err != nil {
		slog.Error("SQLiteStore ListVerifiedAdmins query failed", "error", err)
		return nil, fmt.Errorf("failed to query admins: %w", err)
	}
	defer rows.Close()

	var admins []models.Admin
	for rows.Next() {
		admin, err := scanAdmin(rows)
		if err != nil {
			slog.Error("SQLiteStore ListVerifiedAdmins scan failed", "error", err)
			return nil, err
		}
		admins = append(admins, admin)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListVerifiedAdmins rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate admin rows: %w", err)
	}
	slog.Debug("SQLiteStore ListVerifiedAdmins succeeded", "count", len(admins))
	return admins, nil
}

func (s *SQLiteStore) CreateBooking(booking models.Booking) error {
	prepareNewBooking(&booking)
	_, err := s.db.Exec(
		`INSERT INTO bookings (id, car_id, car_name, customer_name, customer_phone, preferred_date, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		booking.ID, booking.CarID, booking.CarName, booking.CustomerName, booking.CustomerPhone,
		booking.PreferredDate, string(booking.Status), booking.CreatedAt,
	)
	if err != nil {
		slog.Error("SQLiteStore CreateBooking failed", "error", err, "id", booking.ID)
		return fmt.Errorf("failed to insert booking %s: %w", booking.ID, err)
	}
	return nil
}

func (s *SQLiteStore) ListPendingBookings(limit int) ([]models.Booking, error) {
	rows, err := s.db.Query(
		`SELECT id, car_id, car_name, customer_name, customer_phone, preferred_date, status, created_at FROM bookings WHERE status = ? ORDER BY created_at DESC LIMIT ?`,
		string(models.BookingStatusPending), limit,
	)
	if err != nil {
		slog.Error("SQLiteStore ListPendingBookings query failed", "error", err)
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			slog.Error("SQLiteStore ListPendingBookings scan failed", "error", err)
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListPendingBookings rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate booking rows: %w", err)
	}
	slog.Debug("SQLiteStore ListPendingBookings succeeded", "count", len(bookings))
	return bookings, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

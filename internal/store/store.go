// Package store provides storage backends for the dealerbot catalog, admin
// roster, and bookings.
//
// It includes SQLite and PostgreSQL implementations plus an in-memory store for
// tests. The backend is selected by DSN shape (see DetectDSNType).
package store

import (
	"strings"
	"time"

	"github.com/fusioncars/dealerbot/internal/models"
)

// Store defines the persistence operations consumed by the bot.
type Store interface {
	// CreateCar persists a new listing. An empty ID is filled in, and
	// CreatedAt/UpdatedAt are stamped.
	CreateCar(car *models.Car) error
	// GetCar returns the listing with the given ID, or nil if absent.
	GetCar(id string) (*models.Car, error)
	// UpdateCar replaces the stored listing with the same ID.
	// Returns models.ErrCarNotFound if no such listing exists.
	UpdateCar(car models.Car) error
	// DeleteCar removes a listing and returns it, or nil if absent.
	DeleteCar(id string) (*models.Car, error)
	// ListCars returns active (available, unsold) listings newest-first for the
	// given 1-based page, plus the total count of active listings.
	ListCars(page, pageSize int) ([]models.Car, int, error)
	// MarkCarSold marks a listing sold and unavailable, returning the updated
	// listing or nil if absent.
	MarkCarSold(id string) (*models.Car, error)
	// ToggleCarFeatured flips the featured flag, returning the updated listing
	// or nil if absent.
	ToggleCarFeatured(id string) (*models.Car, error)
	// CarCounts returns total/available/sold counts across the catalog.
	CarCounts() (models.CarCounts, error)
	// SalesSummary aggregates listings sold at or after the given time.
	SalesSummary(since time.Time) (models.SalesSummary, error)

	// CreateAdmin persists an admin profile (used by the wider platform and tests).
	CreateAdmin(admin models.Admin) error
	// ListVerifiedAdmins returns admins with a verified WhatsApp number.
	ListVerifiedAdmins() ([]models.Admin, error)

	// CreateBooking persists a booking (used by the wider platform and tests).
	// An empty ID, status, or creation time is filled in.
	CreateBooking(booking models.Booking) error
	// ListPendingBookings returns up to limit pending bookings, newest first.
	ListPendingBookings(limit int) ([]models.Booking, error)

	// Close releases the underlying resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string // database connection string
}

// Option defines a configuration option for a store backend.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType inspects a DSN and reports "postgres" or "sqlite".
// PostgreSQL DSNs use the postgres:// scheme or key=value form; anything else is
// treated as a SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite"
}

// NewStore opens the store backend matching the DSN shape.
func NewStore(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if DetectDSNType(cfg.DSN) == "postgres" {
		return NewPostgresStore(opts...)
	}
	return NewSQLiteStore(opts...)
}

package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fusioncars/dealerbot/internal/models"
	"github.com/fusioncars/dealerbot/internal/util"
)

// carColumns is the canonical column order used by all car queries.
const carColumns = `id, name, brand, model, year, price, kms_driven, fuel_type, transmission, color, owners, image, mileage, engine_capacity, seating, featured, available, sold, sold_at, status, created_by, last_updated_by, created_at, updated_at`

// rowScanner abstracts sql.Row and sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanCar scans one car row in carColumns order.
func scanCar(row rowScanner) (models.Car, error) {
	var c models.Car
	var soldAt sql.NullTime
	var createdBy, lastUpdatedBy sql.NullString
	err := row.Scan(
		&c.ID, &c.Name, &c.Brand, &c.Model, &c.Year, &c.Price, &c.KmsDriven,
		&c.FuelType, &c.Transmission, &c.Color, &c.Owners, &c.Image,
		&c.Mileage, &c.EngineCapacity, &c.Seating, &c.Featured, &c.Available,
		&c.Sold, &soldAt, &c.Status, &createdBy, &lastUpdatedBy,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return c, fmt.Errorf("scan car failed: %w", err)
	}
	if soldAt.Valid {
		c.SoldAt = &soldAt.Time
	}
	c.CreatedBy = createdBy.String
	c.LastUpdatedBy = lastUpdatedBy.String
	return c, nil
}

// carArgs returns the car's fields in carColumns order for INSERT/UPDATE binds.
func carArgs(c models.Car) []interface{} {
	var soldAt interface{}
	if c.SoldAt != nil {
		soldAt = *c.SoldAt
	}
	return []interface{}{
		c.ID, c.Name, c.Brand, c.Model, c.Year, c.Price, c.KmsDriven,
		string(c.FuelType), string(c.Transmission), c.Color, c.Owners, c.Image,
		c.Mileage, c.EngineCapacity, c.Seating, c.Featured, c.Available,
		c.Sold, soldAt, string(c.Status), nilIfEmpty(c.CreatedBy), nilIfEmpty(c.LastUpdatedBy),
		c.CreatedAt, c.UpdatedAt,
	}
}

// scanAdmin scans one admin row, decoding the JSON permissions column.
func scanAdmin(row rowScanner) (models.Admin, error) {
	var a models.Admin
	var permissionsJSON string
	err := row.Scan(&a.ID, &a.Name, &a.WhatsAppNumber, &a.WhatsAppVerified, &permissionsJSON)
	if err != nil {
		return a, fmt.Errorf("scan admin failed: %w", err)
	}
	if err := json.Unmarshal([]byte(permissionsJSON), &a.Permissions); err != nil {
		return a, fmt.Errorf("decode admin permissions for %s: %w", a.ID, err)
	}
	return a, nil
}

// scanBooking scans one booking row.
func scanBooking(row rowScanner) (models.Booking, error) {
	var b models.Booking
	err := row.Scan(&b.ID, &b.CarID, &b.CarName, &b.CustomerName, &b.CustomerPhone, &b.PreferredDate, &b.Status, &b.CreatedAt)
	if err != nil {
		return b, fmt.Errorf("scan booking failed: %w", err)
	}
	return b, nil
}

// prepareNewCar fills in the generated ID, timestamps, and lifecycle defaults
// for a listing about to be inserted.
func prepareNewCar(c *models.Car) {
	if c.ID == "" {
		c.ID = util.GenerateCarID()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.Status == "" {
		c.Status = models.CarStatusActive
	}
	if !c.Sold {
		c.Available = true
	}
}

// prepareNewBooking fills in the generated ID, default status, and creation
// timestamp for a booking about to be inserted.
func prepareNewBooking(b *models.Booking) {
	if b.ID == "" {
		b.ID = util.GenerateBookingID()
	}
	if b.Status == "" {
		b.Status = models.BookingStatusPending
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
}

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// nullableTime returns nil for a nil time pointer, for nullable columns.
func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

// isNoRows reports whether err wraps sql.ErrNoRows.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// encodePermissions serializes a permission set for the admins table.
func encodePermissions(perms []models.Permission) (string, error) {
	if perms == nil {
		perms = []models.Permission{}
	}
	data, err := json.Marshal(perms)
	if err != nil {
		return "", fmt.Errorf("encode permissions: %w", err)
	}
	return string(data), nil
}

// Package models defines the core data structures for the dealerbot service.
//
// It includes the catalog, admin, and booking types shared across modules, plus
// the inbound/outbound message envelopes used by the messaging layer.
package models

import (
	"errors"
	"time"
)

// Permission identifies a single admin capability.
type Permission string

const (
	PermManageCars     Permission = "manage_cars"
	PermManageUsers    Permission = "manage_users"
	PermManageBookings Permission = "manage_bookings"
	PermManageReviews  Permission = "manage_reviews"
	PermViewAnalytics  Permission = "view_analytics"
	PermManageAdmins   Permission = "manage_admins"
	PermManageSettings Permission = "manage_settings"
)

// Validation constants shared by the flow and store layers.
const (
	// MinListingYear is the oldest model year accepted for a listing.
	MinListingYear = 1950
	// MaxReplyLength is the maximum outbound message body length.
	MaxReplyLength = 4096
)

// Error variables for better error handling and testability
var (
	ErrCarNotFound      = errors.New("car not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrUnknownSender    = errors.New("sender is not a verified admin")
	ErrInvalidArgument  = errors.New("invalid command argument")
	ErrStoreClosed      = errors.New("store is closed")
)

// FuelType enumerates the accepted fuel types for a listing.
type FuelType string

const (
	FuelPetrol   FuelType = "Petrol"
	FuelDiesel   FuelType = "Diesel"
	FuelElectric FuelType = "Electric"
	FuelHybrid   FuelType = "Hybrid"
	FuelCNG      FuelType = "CNG"
)

// IsValidFuelType checks whether the given fuel type is supported.
func IsValidFuelType(ft FuelType) bool {
	switch ft {
	case FuelPetrol, FuelDiesel, FuelElectric, FuelHybrid, FuelCNG:
		return true
	default:
		return false
	}
}

// Transmission enumerates the accepted transmission kinds.
type Transmission string

const (
	TransmissionManual    Transmission = "Manual"
	TransmissionAutomatic Transmission = "Automatic"
)

// IsValidTransmission checks whether the given transmission kind is supported.
func IsValidTransmission(tr Transmission) bool {
	return tr == TransmissionManual || tr == TransmissionAutomatic
}

// CarStatus tracks the lifecycle of a listing.
type CarStatus string

const (
	CarStatusActive CarStatus = "active"
	CarStatusSold   CarStatus = "sold"
)

// Car represents one catalog listing.
type Car struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"` // "{brand} {model}"
	Brand          string       `json:"brand"`
	Model          string       `json:"model"`
	Year           int          `json:"year"`
	Price          int64        `json:"price"`
	KmsDriven      int          `json:"kms_driven"`
	FuelType       FuelType     `json:"fuel_type"`
	Transmission   Transmission `json:"transmission"`
	Color          string       `json:"color"`
	Owners         int          `json:"owners"`
	Image          string       `json:"image"`
	Mileage        string       `json:"mileage"`
	EngineCapacity string       `json:"engine_capacity"`
	Seating        int          `json:"seating"`
	Featured       bool         `json:"featured"`
	Available      bool         `json:"available"`
	Sold           bool         `json:"sold"`
	SoldAt         *time.Time   `json:"sold_at,omitempty"`
	Status         CarStatus    `json:"status"`
	CreatedBy      string       `json:"created_by,omitempty"`
	LastUpdatedBy  string       `json:"last_updated_by,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Admin represents a back-office user allowed to drive the bot.
type Admin struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	WhatsAppNumber   string       `json:"whatsapp_number"`
	WhatsAppVerified bool         `json:"whatsapp_verified"`
	Permissions      []Permission `json:"permissions"`
}

// HasPermission reports whether the admin carries the given permission.
func (a Admin) HasPermission(p Permission) bool {
	for _, have := range a.Permissions {
		if have == p {
			return true
		}
	}
	return false
}

// BookingStatus tracks the lifecycle of a test-drive booking.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Booking represents a customer test-drive or purchase-inquiry request.
type Booking struct {
	ID            string        `json:"id"`
	CarID         string        `json:"car_id"`
	CarName       string        `json:"car_name"`
	CustomerName  string        `json:"customer_name"`
	CustomerPhone string        `json:"customer_phone"`
	PreferredDate time.Time     `json:"preferred_date"`
	Status        BookingStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
}

// CarCounts summarizes the catalog for the /stats command.
type CarCounts struct {
	Total     int `json:"total"`
	Available int `json:"available"`
	Sold      int `json:"sold"`
}

// SalesSummary aggregates sold listings over a window for the /stats command.
type SalesSummary struct {
	Count   int   `json:"count"`
	Revenue int64 `json:"revenue"`
}

// Response represents an incoming message from a WhatsApp sender.
type Response struct {
	From string `json:"from"`
	Body string `json:"body"`
	Time int64  `json:"time"`
}

// StatusType defines the status of an outbound message.
type StatusType string

const (
	StatusTypeSent      StatusType = "sent"
	StatusTypeDelivered StatusType = "delivered"
	StatusTypeRead      StatusType = "read"
	StatusTypeFailed    StatusType = "failed"
)

// Receipt represents a delivery status update for an outbound message.
type Receipt struct {
	To     string     `json:"to"`
	Status StatusType `json:"status"`
	Time   int64      `json:"time"`
}

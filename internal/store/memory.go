// Package store provides storage backends for the dealerbot.
//
// This file implements an in-memory store used in tests and ephemeral dev runs.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/fusioncars/dealerbot/internal/models"
)

// InMemoryStore keeps the catalog, admins, and bookings in process memory.
type InMemoryStore struct {
	mu       sync.RWMutex
	cars     map[string]models.Car
	admins   map[string]models.Admin
	bookings map[string]models.Booking

	// FailCreates forces CreateCar to fail, for exercising commit-error paths.
	FailCreates bool
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		cars:     make(map[string]models.Car),
		admins:   make(map[string]models.Admin),
		bookings: make(map[string]models.Booking),
	}
}

func (s *InMemoryStore) CreateCar(car *models.Car) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailCreates {
		return models.ErrStoreClosed
	}
	prepareNewCar(car)
	s.cars[car.ID] = *car
	return nil
}

func (s *InMemoryStore) GetCar(id string) (*models.Car, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	car, ok := s.cars[id]
	if !ok {
		return nil, nil
	}
	return &car, nil
}

func (s *InMemoryStore) UpdateCar(car models.Car) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cars[car.ID]; !ok {
		return models.ErrCarNotFound
	}
	car.UpdatedAt = time.Now().UTC()
	s.cars[car.ID] = car
	return nil
}

func (s *InMemoryStore) DeleteCar(id string) (*models.Car, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	car, ok := s.cars[id]
	if !ok {
		return nil, nil
	}
	delete(s.cars, id)
	return &car, nil
}

func (s *InMemoryStore) ListCars(page, pageSize int) ([]models.Car, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if page < 1 {
		page = 1
	}

	var active []models.Car
	for _, car := range s.cars {
		if car.Available && !car.Sold {
			active = append(active, car)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.After(active[j].CreatedAt)
	})

	total := len(active)
	start := (page - 1) * pageSize
	if start >= total {
		return nil, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return active[start:end], total, nil
}

func (s *InMemoryStore) MarkCarSold(id string) (*models.Car, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	car, ok := s.cars[id]
	if !ok {
		return nil, nil
	}
	now := time.Now().UTC()
	car.Sold = true
	car.Available = false
	car.Status = models.CarStatusSold
	car.SoldAt = &now
	car.UpdatedAt = now
	s.cars[id] = car
	return &car, nil
}

func (s *InMemoryStore) ToggleCarFeatured(id string) (*models.Car, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	car, ok := s.cars[id]
	if !ok {
		return nil, nil
	}
	car.Featured = !car.Featured
	car.UpdatedAt = time.Now().UTC()
	s.cars[id] = car
	return &car, nil
}

func (s *InMemoryStore) CarCounts() (models.CarCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var counts models.CarCounts
	for _, car := range s.cars {
		counts.Total++
		if car.Available && !car.Sold {
			counts.Available++
		}
		if car.Sold {
			counts.Sold++
		}
	}
	return counts, nil
}

func (s *InMemoryStore) SalesSummary(since time.Time) (models.SalesSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var summary models.SalesSummary
	for _, car := range s.cars {
		if car.Sold && car.SoldAt != nil && !car.SoldAt.Before(since) {
			summary.Count++
			summary.Revenue += car.Price
		}
	}
	return summary, nil
}

func (s *InMemoryStore) CreateAdmin(admin models.Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admins[admin.ID] = admin
	return nil
}

func (s *InMemoryStore) ListVerifiedAdmins() ([]models.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var admins []models.Admin
	for _, admin := range s.admins {
		if admin.WhatsAppVerified && admin.WhatsAppNumber != "" {
			admins = append(admins, admin)
		}
	}
	sort.Slice(admins, func(i, j int) bool { return admins[i].ID < admins[j].ID })
	return admins, nil
}

func (s *InMemoryStore) CreateBooking(booking models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prepareNewBooking(&booking)
	s.bookings[booking.ID] = booking
	return nil
}

func (s *InMemoryStore) ListPendingBookings(limit int) ([]models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var bookings []models.Booking
	for _, booking := range s.bookings {
		if booking.Status == models.BookingStatusPending {
			bookings = append(bookings, booking)
		}
	}
	sort.Slice(bookings, func(i, j int) bool {
		return bookings[i].CreatedAt.After(bookings[j].CreatedAt)
	})
	if len(bookings) > limit {
		bookings = bookings[:limit]
	}
	return bookings, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}

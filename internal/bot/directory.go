package bot

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/fusioncars/dealerbot/internal/messaging"
	"github.com/fusioncars/dealerbot/internal/models"
	"github.com/fusioncars/dealerbot/internal/store"
)

// AdminDirectory maps canonical phone numbers to verified admin profiles.
//
// It is rebuilt wholesale by Load; a failed load keeps the previous roster so a
// transient database error never locks every admin out.
type AdminDirectory struct {
	mu     sync.RWMutex
	admins map[string]models.Admin
}

// NewAdminDirectory creates an empty directory.
func NewAdminDirectory() *AdminDirectory {
	return &AdminDirectory{admins: make(map[string]models.Admin)}
}

// Load replaces the roster with the store's current verified admins. On error
// the existing roster is left untouched.
func (d *AdminDirectory) Load(st store.Store) error {
	admins, err := st.ListVerifiedAdmins()
	if err != nil {
		return fmt.Errorf("failed to load admin roster: %w", err)
	}

	next := make(map[string]models.Admin, len(admins))
	for _, admin := range admins {
		canonical, err := messaging.CanonicalizePhone(admin.WhatsAppNumber)
		if err != nil {
			slog.Warn("AdminDirectory skipping admin with invalid number", "admin_id", admin.ID, "number", admin.WhatsAppNumber, "error", err)
			continue
		}
		next[canonical] = admin
	}

	d.mu.Lock()
	d.admins = next
	d.mu.Unlock()
	slog.Info("AdminDirectory roster loaded", "admins", len(next))
	return nil
}

// Resolve returns the admin registered under the canonical sender number.
func (d *AdminDirectory) Resolve(canonical string) (models.Admin, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	admin, ok := d.admins[canonical]
	return admin, ok
}

// IsAuthorized reports whether the canonical sender number belongs to a
// verified admin.
func (d *AdminDirectory) IsAuthorized(canonical string) bool {
	_, ok := d.Resolve(canonical)
	return ok
}

// Numbers returns the canonical numbers of every admin in the roster.
func (d *AdminDirectory) Numbers() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	numbers := make([]string, 0, len(d.admins))
	for n := range d.admins {
		numbers = append(numbers, n)
	}
	return numbers
}

// Len returns the roster size.
func (d *AdminDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.admins)
}

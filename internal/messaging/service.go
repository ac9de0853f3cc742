// Package messaging provides the pluggable message delivery abstraction for the
// dealerbot: an outbound send primitive plus a channel of inbound responses.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/fusioncars/dealerbot/internal/models"
)

// ErrServiceStopped is returned when sending through a stopped service.
var ErrServiceStopped = errors.New("messaging service is stopped")

// phoneNumberRegex matches everything that is not a digit.
var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// MinPhoneDigits is the minimum digit count for a canonical phone number.
const MinPhoneDigits = 6

// Service defines a pluggable message delivery abstraction.
// It supports sending messages and provides a channel of inbound responses.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient
	// identifier. Returns the canonicalized recipient and an error if validation fails.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// Start begins any background processing (e.g., polling for events).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Responses returns a channel of incoming sender messages.
	Responses() <-chan models.Response
}

// CanonicalizePhone reduces a phone number to its canonical digits-only form.
// This is the single canonicalization applied everywhere a number is stored or
// looked up, so differently formatted inputs (with +, spaces, dashes, or a JID
// suffix) always compare equal.
func CanonicalizePhone(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}

	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < MinPhoneDigits {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum %d digits required)", canonical, MinPhoneDigits)
	}

	return canonical, nil
}

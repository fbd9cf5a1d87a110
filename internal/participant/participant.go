package participant

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is a participant's attendance state.
type Status string

const (
	StatusNotEntered    Status = "Not Entered Yet"
	StatusInCampus      Status = "In Campus"
	StatusOutsideCampus Status = "Outside Campus"
)

// Placeholders used when the upload form omits a contact field.
const (
	DefaultName  = "Unknown"
	DefaultEmail = "unknown@example.com"
	DefaultPhone = "000-000-0000"
)

var (
	ErrMalformedID  = errors.New("invalid participant id format")
	ErrNotFound     = errors.New("participant not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrNoImage      = errors.New("image not found")
	ErrQRDisabled   = errors.New("qr codes are disabled")
)

// Valid reports whether s is one of the three known states.
func (s Status) Valid() bool {
	switch s {
	case StatusNotEntered, StatusInCampus, StatusOutsideCampus:
		return true
	}
	return false
}

// ParseTransition validates a status submitted by staff. Only the two
// on-site states are accepted; a participant cannot be moved back to the
// default state.
func ParseTransition(raw string) (Status, error) {
	s := Status(raw)
	if s == StatusInCampus || s == StatusOutsideCampus {
		return s, nil
	}
	return "", fmt.Errorf("%w: invalid status %q", ErrInvalidInput, raw)
}

// Participant is one registrant record. Image bytes live either inline in
// Data or behind ImageID in a blob store, never both.
type Participant struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Filename    string    `json:"filename"`
	Data        []byte    `json:"-"`
	ContentType string    `json:"content_type,omitempty"`
	ImageID     string    `json:"image_id,omitempty"`
	Status      Status    `json:"status"`
	QRCode      string    `json:"qr_code,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// HasImage reports whether the record references any image payload.
func (p *Participant) HasImage() bool {
	return len(p.Data) > 0 || p.ImageID != ""
}

// Registration is the raw upload submitted through the form.
type Registration struct {
	Name     string
	Email    string
	Phone    string
	Filename string
	Data     []byte
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

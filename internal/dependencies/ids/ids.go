package ids

import "github.com/google/uuid"

// Generator produces unique identifiers and can be mocked for testing
type Generator interface {
	// NewID returns a new unique identifier
	NewID() string
}

// UUIDGenerator implements Generator with time-ordered UUIDs
type UUIDGenerator struct{}

// New creates a new UUIDGenerator
func New() *UUIDGenerator {
	return &UUIDGenerator{}
}

// NewID returns a UUIDv7, falling back to a random UUIDv4
func (g *UUIDGenerator) NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

package storage

import (
	"fmt"
	"strings"
)

// Tier names
const (
	NameHot  = "hot"
	NameWarm = "warm"
	NameCold = "cold"
)

// Blob is the content of one module as held by a tier. Data is always the
// reconstructed payload; Compressed reports whether the tier that returned
// it keeps the payload compressed at rest.
type Blob struct {
	Data       []byte
	SizeTokens int
	Compressed bool
}

// Tier is one level of the storage hierarchy
type Tier interface {
	// Name returns the tier name (hot, warm or cold)
	Name() string

	// Store saves blob under id, replacing any previous content. It
	// returns false with a nil error when the tier has no room.
	Store(id string, blob Blob) (bool, error)

	// Retrieve returns the blob stored under id. The boolean is false
	// when the tier does not hold id.
	Retrieve(id string) (Blob, bool, error)

	// Remove deletes id and reports whether it was present
	Remove(id string) (bool, error)

	// Has reports whether the tier holds id. An error means the tier
	// could not be queried, not that id is absent.
	Has(id string) (bool, error)

	// IDs returns the stored ids in sorted order
	IDs() ([]string, error)
}

// validateID rejects ids that could escape a tier's namespace on disk
func validateID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

package version

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// IDStrategy names how record ids are generated.
type IDStrategy string

const (
	IDSequential IDStrategy = "sequential"
	IDUUID       IDStrategy = "uuid"
)

// IDGenerator produces the public id of a record once the store has
// assigned its sequence number.
type IDGenerator interface {
	NextID(seq int64) string
}

// SequentialIDs uses the decimal sequence number as the id.
type SequentialIDs struct{}

func (SequentialIDs) NextID(seq int64) string {
	return strconv.FormatInt(seq, 10)
}

// UUIDIDs issues random v4 UUIDs. The store sequence still provides the
// tie-break for records sharing a timestamp.
type UUIDIDs struct{}

func (UUIDIDs) NextID(int64) string {
	return uuid.NewString()
}

// ParseIDStrategy maps a configuration value to a generator.
func ParseIDStrategy(value string) (IDGenerator, error) {
	switch IDStrategy(strings.ToLower(strings.TrimSpace(value))) {
	case "", IDSequential:
		return SequentialIDs{}, nil
	case IDUUID:
		return UUIDIDs{}, nil
	default:
		return nil, fmt.Errorf("invalid id strategy: %s (valid values: sequential, uuid)", value)
	}
}

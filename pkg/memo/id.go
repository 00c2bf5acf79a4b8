package memo

import (
	"fmt"

	"github.com/google/uuid"
)

// IDPrefix is the prefix used for all memo IDs.
const IDPrefix = "memo_"

// NewID generates a new memo identifier. It is built on a version 7 UUID:
// a millisecond timestamp followed by 74 random bits, so collisions are
// negligible without any retry on insert.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// The OS random source failed, which is unrecoverable.
		panic(fmt.Errorf("memo: generate id: %w", err))
	}
	return IDPrefix + id.String()
}

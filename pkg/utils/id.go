package utils

import (
	"fmt"

	"github.com/google/uuid"
)

// NewUUID7 returns a time-ordered UUID string. Build and run ids are
// v7 so lexicographic order matches creation order.
func NewUUID7() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("uuid v7: %w", err)
	}
	return id.String(), nil
}

package utils

import (
	"github.com/google/uuid"
)

// UUID generates new random UUID and returns value as string. They are used
// as exchange handles and message IDs.
func UUID() string {
	return uuid.New().String()
}

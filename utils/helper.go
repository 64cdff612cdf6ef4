package utils

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateUniqueFilename returns a collision-safe object key suffix.
func GenerateUniqueFilename() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), uuid.NewString())
}

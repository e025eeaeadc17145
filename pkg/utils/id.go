package utils

import "github.com/google/uuid"

// GenerateID returns a random identifier such as "job_3f2b...".
func GenerateID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

package cache

import (
	"fmt"
	"time"
)

// DatasetKey addresses a cached dataset body by its content hash.
func DatasetKey(contentHash string) string {
	return fmt.Sprintf("dataset:%s", contentHash)
}

// RateLimitKey addresses one fixed rate-limit window for a caller.
func RateLimitKey(subject string, window time.Duration) string {
	return fmt.Sprintf("ratelimit:%s:%ds", subject, int(window.Seconds()))
}

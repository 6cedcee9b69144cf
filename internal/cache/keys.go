package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

func RateLimitKey(clientIP string) string {
	return fmt.Sprintf("ratelimit:%s", clientIP)
}

func SuggestKey(query string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(query)))
	return fmt.Sprintf("suggest:%s", hex.EncodeToString(sum[:8]))
}

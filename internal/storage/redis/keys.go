package redis

import (
	"fmt"
	"strings"
)

// Key prefix for all player account data
const keyPrefix = "playeracct"

// lockoutKey returns the Redis key for the failed attempt LIST of an (email, ip) pair
func lockoutKey(email, ip string) string {
	return fmt.Sprintf("%s:lockout:%s:%s", keyPrefix, email, ip)
}

// lockoutPattern returns a SCAN pattern matching every lockout key for an email
func lockoutPattern(email string) string {
	return fmt.Sprintf("%s:lockout:%s:*", keyPrefix, globEscaper.Replace(email))
}

var globEscaper = strings.NewReplacer(
	`\`, `\\`,
	`*`, `\*`,
	`?`, `\?`,
	`[`, `\[`,
	`]`, `\]`,
)

// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import (
	"strconv"
	"strings"
)

// ParseInt64 parses a base-10 int64 after trimming surrounding spaces.
// Telegram ids are int64 and may be negative for group chats.
func ParseInt64(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

// ParseID parses a positive database id such as the numeric suffix of a
// callback payload ("complete_task:42").
func ParseID(s string) (uint, bool) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || n == 0 || n > uint64(^uint(0)) {
		return 0, false
	}
	return uint(n), true
}

// SplitPayload splits "prefix:rest" at the first colon. ok is false when no
// colon is present.
func SplitPayload(s string) (prefix, rest string, ok bool) {
	return strings.Cut(s, ":")
}

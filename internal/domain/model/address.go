package model

import "strings"

// NormalizeAddress lowercases an address so every identity derived from it
// (balance ids, registry keys, membership sets) is case-stable.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

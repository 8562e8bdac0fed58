package model

import (
	"fmt"
	"strings"
)

// Version identifies the pool design a swap event was emitted by.
type Version string

const (
	// VersionV2 is the constant-product pair design (gross in/out amounts).
	VersionV2 Version = "v2"
	// VersionV3 is the concentrated-liquidity design (signed deltas + sqrtPriceX96).
	VersionV3 Version = "v3"
)

// ParseVersion normalizes a user-supplied version string. Empty input is
// returned as-is so callers can treat it as "probe the pool".
func ParseVersion(input string) (Version, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "":
		return "", nil
	case "v2", "2":
		return VersionV2, nil
	case "v3", "3":
		return VersionV3, nil
	default:
		return "", fmt.Errorf("unsupported pool version: %s", input)
	}
}

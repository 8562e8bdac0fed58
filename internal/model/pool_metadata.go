package model

// PoolMetadata captures the immutable facts about a pool, resolved once per
// run and cached by lower-cased pool address.
type PoolMetadata struct {
	Address   string  `json:"address"`
	Version   Version `json:"version"`
	Token0    string  `json:"token0"`
	Token1    string  `json:"token1"`
	Decimals0 uint8   `json:"decimals0"`
	Decimals1 uint8   `json:"decimals1"`
	FeeTier   uint32  `json:"fee_tier,omitempty"`

	// VersionAssumed is set when both version probes failed and the
	// resolver fell back to V2.
	VersionAssumed bool `json:"version_assumed,omitempty"`
}

// HasToken reports whether the lower-cased token address is one of the
// pool's two tokens.
func (m PoolMetadata) HasToken(token string) bool {
	return token == m.Token0 || token == m.Token1
}

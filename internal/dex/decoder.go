package dex

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"priceScope/internal/model"
)

// SwapDecoder turns a raw log record into a version-tagged decoded swap.
// Decoding is pure and deterministic; a malformed payload fails with an
// error the caller converts into a per-event skip, never a retry.
type SwapDecoder interface {
	// Topic0 is the Swap event signature hash this decoder accepts.
	Topic0() common.Hash
	DecodeSwap(log model.LogRecord) (*model.DecodedSwap, error)
}

// NewSwapDecoder returns the decoder implementation for a pool version.
func NewSwapDecoder(version model.Version) (SwapDecoder, error) {
	switch version {
	case model.VersionV2:
		return newV2SwapDecoder()
	case model.VersionV3:
		return newV3SwapDecoder()
	default:
		return nil, fmt.Errorf("unsupported pool version: %s", version)
	}
}

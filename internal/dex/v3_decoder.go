package dex

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"priceScope/internal/model"
)

// v3SwapDecoder decodes the concentrated-liquidity pool Swap event: signed
// int256 deltas (two's complement), sqrtPriceX96, liquidity, and tick.
type v3SwapDecoder struct {
	event abi.Event
}

func newV3SwapDecoder() (*v3SwapDecoder, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, err
	}
	return &v3SwapDecoder{event: poolABI.Events["Swap"]}, nil
}

func (d *v3SwapDecoder) Topic0() common.Hash {
	return d.event.ID
}

func (d *v3SwapDecoder) DecodeSwap(log model.LogRecord) (*model.DecodedSwap, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	if !strings.EqualFold(log.Topics[0], d.event.ID.Hex()) {
		return nil, fmt.Errorf("unexpected topic0: %s", log.Topics[0])
	}

	indexedTopics, err := parseIndexedTopics(d.event, log.Topics)
	if err != nil {
		return nil, err
	}

	var indexed struct {
		Sender    common.Address
		Recipient common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(d.event.Inputs), indexedTopics); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(d.event, log.Data)
	if err != nil {
		return nil, err
	}
	if len(values) != 5 {
		return nil, fmt.Errorf("unexpected swap values: %d", len(values))
	}

	amount0, err := asBigInt(values[0])
	if err != nil {
		return nil, err
	}
	amount1, err := asBigInt(values[1])
	if err != nil {
		return nil, err
	}
	sqrtPrice, err := asBigInt(values[2])
	if err != nil {
		return nil, err
	}
	liquidity, err := asBigInt(values[3])
	if err != nil {
		return nil, err
	}
	tickInt, err := asBigInt(values[4])
	if err != nil {
		return nil, err
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return nil, err
	}

	if sqrtPrice.Sign() < 0 {
		return nil, fmt.Errorf("negative sqrtPriceX96: %s", sqrtPrice)
	}

	return &model.DecodedSwap{
		Version: model.VersionV3,
		V3: &model.V3SwapData{
			Sender:       indexed.Sender.Hex(),
			Recipient:    indexed.Recipient.Hex(),
			Amount0:      amount0,
			Amount1:      amount1,
			SqrtPriceX96: sqrtPrice,
			Liquidity:    liquidity,
			Tick:         tick,
		},
	}, nil
}

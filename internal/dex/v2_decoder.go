package dex

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"priceScope/internal/model"
)

// v2SwapDecoder decodes the constant-product pair Swap event: four unsigned
// 256-bit amounts in the payload, sender and recipient in indexed topics.
type v2SwapDecoder struct {
	event abi.Event
}

func newV2SwapDecoder() (*v2SwapDecoder, error) {
	pairABI, err := V2PairABI()
	if err != nil {
		return nil, err
	}
	return &v2SwapDecoder{event: pairABI.Events["Swap"]}, nil
}

func (d *v2SwapDecoder) Topic0() common.Hash {
	return d.event.ID
}

func (d *v2SwapDecoder) DecodeSwap(log model.LogRecord) (*model.DecodedSwap, error) {
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
		Sender common.Address
		To     common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(d.event.Inputs), indexedTopics); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(d.event, log.Data)
	if err != nil {
		return nil, err
	}
	if len(values) != 4 {
		return nil, fmt.Errorf("unexpected swap values: %d", len(values))
	}

	amount0In, err := asBigInt(values[0])
	if err != nil {
		return nil, err
	}
	amount1In, err := asBigInt(values[1])
	if err != nil {
		return nil, err
	}
	amount0Out, err := asBigInt(values[2])
	if err != nil {
		return nil, err
	}
	amount1Out, err := asBigInt(values[3])
	if err != nil {
		return nil, err
	}

	return &model.DecodedSwap{
		Version: model.VersionV2,
		V2: &model.V2SwapData{
			Sender:     indexed.Sender.Hex(),
			Recipient:  indexed.To.Hex(),
			Amount0In:  amount0In,
			Amount1In:  amount1In,
			Amount0Out: amount0Out,
			Amount1Out: amount1Out,
		},
	}, nil
}

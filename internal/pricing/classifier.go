package pricing

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"go.uber.org/zap"

	"priceScope/internal/model"
)

// ReferencePricer reports the base token's USD price in micro-units at a
// historical block.
type ReferencePricer interface {
	BasePriceMicros(ctx context.Context, blockNumber uint64) (int64, error)
}

// ClassifierConfig sets the tokens and size thresholds for trade grading.
type ClassifierConfig struct {
	// BaseToken denominates trade sizes, typically the chain's wrapped
	// native token.
	BaseToken string
	// StableToken lets pools that pair the target directly against a USD
	// stable be graded without the oracle.
	StableToken string
	// BaseThreshold is the minimum base-token volume for a large trade.
	BaseThreshold *big.Rat
	// RefThresholdMicros is the minimum USD volume in micro-units.
	RefThresholdMicros int64
}

// Classifier grades decoded swaps into buys and sells and flags the ones
// large enough to report.
type Classifier struct {
	pricer ReferencePricer
	cfg    ClassifierConfig
	logger *zap.Logger
}

// NewClassifier builds a Classifier. Token addresses are compared
// case-insensitively.
func NewClassifier(pricer ReferencePricer, cfg ClassifierConfig, logger *zap.Logger) *Classifier {
	cfg.BaseToken = strings.ToLower(cfg.BaseToken)
	cfg.StableToken = strings.ToLower(cfg.StableToken)
	if cfg.BaseThreshold == nil {
		cfg.BaseThreshold = new(big.Rat)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{pricer: pricer, cfg: cfg, logger: logger}
}

// Classify grades one swap from a pool trading the target token. The pool
// must pair the target against either the base token or the stable token.
func (c *Classifier) Classify(ctx context.Context, swap *model.DecodedSwap, meta *model.PoolMetadata, blockNumber uint64, txHash string) (*model.TradeClassification, error) {
	trade := &model.TradeClassification{
		BlockNumber: blockNumber,
		TxHash:      txHash,
		Counterpart: swap.SwapRecipient(),
	}

	switch {
	case meta.HasToken(c.cfg.BaseToken):
		if err := c.gradeAgainstBase(ctx, swap, meta, trade); err != nil {
			return nil, err
		}
	case c.cfg.StableToken != "" && meta.HasToken(c.cfg.StableToken):
		if err := c.gradeAgainstStable(swap, meta, trade); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("pool %s pairs neither base nor stable token: %w",
			meta.Address, model.ErrTokenNotInPool)
	}

	trade.LargeByBase = trade.BaseAmount.Cmp(c.cfg.BaseThreshold) >= 0 && trade.BaseAmount.Sign() > 0
	trade.LargeByRef = trade.RefKnown && trade.RefAmountMicros >= c.cfg.RefThresholdMicros
	return trade, nil
}

// gradeAgainstBase reads the base-token leg. Base flowing into the pool
// bought the target token.
func (c *Classifier) gradeAgainstBase(ctx context.Context, swap *model.DecodedSwap, meta *model.PoolMetadata, trade *model.TradeClassification) error {
	in, out, err := legFlow(swap, meta, c.cfg.BaseToken)
	if err != nil {
		return err
	}

	switch {
	case in.Sign() > 0 && out.Sign() == 0:
		trade.Direction = model.DirectionBuy
		trade.BaseAmount = in
	case out.Sign() > 0 && in.Sign() == 0:
		trade.Direction = model.DirectionSell
		trade.BaseAmount = out
	default:
		trade.Direction = model.DirectionAmbiguous
		trade.BaseAmount = new(big.Rat)
		return nil
	}

	micros, err := c.pricer.BasePriceMicros(ctx, trade.BlockNumber)
	if err != nil {
		c.logger.Warn("reference price unavailable, grading by base volume only",
			zap.Uint64("block", trade.BlockNumber),
			zap.Error(err))
		return nil
	}
	trade.RefKnown = true
	trade.RefAmountMicros = ratToMicros(new(big.Rat).Mul(trade.BaseAmount, new(big.Rat).SetInt64(micros)))
	return nil
}

// gradeAgainstStable reads the stable-token leg, which is already a USD
// amount and needs no oracle.
func (c *Classifier) gradeAgainstStable(swap *model.DecodedSwap, meta *model.PoolMetadata, trade *model.TradeClassification) error {
	in, out, err := legFlow(swap, meta, c.cfg.StableToken)
	if err != nil {
		return err
	}

	var stableAmount *big.Rat
	switch {
	case in.Sign() > 0 && out.Sign() == 0:
		trade.Direction = model.DirectionBuy
		stableAmount = in
	case out.Sign() > 0 && in.Sign() == 0:
		trade.Direction = model.DirectionSell
		stableAmount = out
	default:
		trade.Direction = model.DirectionAmbiguous
		trade.BaseAmount = new(big.Rat)
		return nil
	}

	trade.BaseAmount = new(big.Rat)
	trade.RefKnown = true
	trade.RefAmountMicros = ratToMicros(new(big.Rat).Mul(stableAmount, new(big.Rat).SetInt64(microsPerUnit)))
	return nil
}

// legFlow returns the pool-inbound and pool-outbound volume of one token in
// decimal units. V2 events report both directions separately; V3 events
// report one signed delta where positive means into the pool.
func legFlow(swap *model.DecodedSwap, meta *model.PoolMetadata, token string) (in, out *big.Rat, err error) {
	if !meta.HasToken(token) {
		return nil, nil, fmt.Errorf("token %s: %w", token, model.ErrTokenNotInPool)
	}
	isToken0 := token == meta.Token0

	switch swap.Version {
	case model.VersionV2:
		data := swap.V2
		rawIn, rawOut := data.Amount0In, data.Amount0Out
		dec := meta.Decimals0
		if !isToken0 {
			rawIn, rawOut = data.Amount1In, data.Amount1Out
			dec = meta.Decimals1
		}
		return ratFromUnits(rawIn, dec), ratFromUnits(rawOut, dec), nil
	case model.VersionV3:
		data := swap.V3
		raw := data.Amount0
		dec := meta.Decimals0
		if !isToken0 {
			raw = data.Amount1
			dec = meta.Decimals1
		}
		if raw.Sign() >= 0 {
			return ratFromUnits(raw, dec), new(big.Rat), nil
		}
		return new(big.Rat), ratFromUnits(new(big.Int).Abs(raw), dec), nil
	default:
		return nil, nil, fmt.Errorf("version %q: %w", swap.Version, model.ErrPriceUndetermined)
	}
}

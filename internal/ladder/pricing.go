package ladder

import (
	"math"
	"math/rand"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/core"
)

// priceSignificantDigits is the fixed significant-digit budget for prices.
const priceSignificantDigits = 5

// Pricer derives rung prices. Pricing is deterministic and incremental:
// each rung is the previous rung's price moved one step away from the spread,
// the first rung deriving from the mid-price.
type Pricer struct {
	step          decimal.Decimal // fraction, e.g. 0.01 for 1%
	coin2Decimals int32
}

func NewPricer(stepPercent float64, coin2Decimals int32) *Pricer {
	return &Pricer{
		step:          decimal.NewFromFloat(stepPercent / 100),
		coin2Decimals: coin2Decimals,
	}
}

// Next returns the price one step beyond previous on the given side:
// buys step down, sells step up.
func (p *Pricer) Next(side core.Side, previous decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	factor := one.Add(p.step)
	if side == core.SideBuy {
		factor = one.Sub(p.step)
	}
	return p.roundPrice(previous.Mul(factor))
}

// roundPrice rounds to quote precision, then clamps to the significant-digit
// budget for markets with many quote decimals.
func (p *Pricer) roundPrice(price decimal.Decimal) decimal.Decimal {
	price = price.Round(p.coin2Decimals)
	return roundSignificant(price, priceSignificantDigits)
}

// roundSignificant rounds d to at most n significant digits.
func roundSignificant(d decimal.Decimal, n int32) decimal.Decimal {
	if d.IsZero() {
		return d
	}
	magnitude := int32(math.Floor(math.Log10(math.Abs(d.InexactFloat64()))))
	// Negative places round into the integer part.
	return d.Round(n - magnitude - 1)
}

// Sizer computes per-order amounts. The configured nominal amount names
// either the base or the quote coin; the other side derives from the price.
// Amounts carry a bounded uniform jitter so rung sizes do not repeat exactly.
type Sizer struct {
	amount        decimal.Decimal
	amountCoin    string // "base" or "quote"
	deviation     float64
	coin1Decimals int32

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSizer(amount decimal.Decimal, amountCoin string, deviation float64, coin1Decimals int32, seed int64) *Sizer {
	return &Sizer{
		amount:        amount,
		amountCoin:    amountCoin,
		deviation:     deviation,
		coin1Decimals: coin1Decimals,
		rng:           rand.New(rand.NewSource(seed)),
	}
}

// Amounts returns (coin1Amount, coin2Amount) for one rung at the given price,
// holding coin1 = coin2 / price up to base-precision rounding.
func (s *Sizer) Amounts(price decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	factor := decimal.NewFromFloat(s.jitter())

	if s.amountCoin == "quote" {
		coin2 := s.amount.Mul(factor)
		coin1 := coin2.Div(price).Round(s.coin1Decimals)
		return coin1, coin2
	}

	coin1 := s.amount.Mul(factor).Round(s.coin1Decimals)
	coin2 := coin1.Mul(price)
	return coin1, coin2
}

// jitter returns a uniform factor in [1-d, 1+d].
func (s *Sizer) jitter() float64 {
	if s.deviation == 0 {
		return 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return 1 + (s.rng.Float64()*2-1)*s.deviation
}

// Package ladder implements the grid maintenance engine: reconciling the
// desired ladder topology against the order journal and the venue's open
// orders, once per scheduled iteration.
package ladder

import (
	"github.com/shopspring/decimal"

	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/config"
	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/journal"
)

// Config is the resolved strategy configuration the engine runs with.
type Config struct {
	Pair     string
	Exchange string

	Count            int
	PriceStepPercent float64
	Amount           decimal.Decimal
	AmountCoin       string // "base" or "quote"
	AmountDeviation  float64

	InitialMidPrice decimal.Decimal
	MidPriceType    string
	ReInit          bool

	// PreviousFilledStates is the whitelist for the previous-order fill
	// heuristic applied when the venue cannot confirm a single order.
	PreviousFilledStates []journal.State

	NotifyName string
}

// FromConfig maps the loaded YAML configuration to engine parameters.
func FromConfig(c *config.Config) Config {
	states := make([]journal.State, 0, len(c.Ladder.PreviousFilledStates))
	for _, s := range c.Ladder.PreviousFilledStates {
		states = append(states, journal.State(s))
	}

	return Config{
		Pair:                 c.App.Pair,
		Exchange:             c.App.Exchange,
		Count:                c.Ladder.Count,
		PriceStepPercent:     c.Ladder.PriceStepPercent,
		Amount:               decimal.NewFromFloat(c.Ladder.Amount),
		AmountCoin:           c.Ladder.AmountCoin,
		AmountDeviation:      c.Ladder.AmountDeviation,
		InitialMidPrice:      decimal.NewFromFloat(c.Ladder.MidPrice),
		MidPriceType:         c.Ladder.MidPriceType,
		ReInit:               c.Ladder.ReInit,
		PreviousFilledStates: states,
		NotifyName:           c.App.NotifyName,
	}
}

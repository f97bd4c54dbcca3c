package core

import (
	"sort"

	"github.com/signalsfoundry/permit-simulator/model"
)

// Bid pairs an agent with its willingness to pay for one permit.
type Bid struct {
	AgentID int
	Amount  float64
}

// Market clears permit supply against bids. It is pure: Allocate returns the
// clearing price and winner ids, and the engine applies wealth and permit
// updates exactly once per winner.
type Market struct {
	mode       model.MarketMode
	permitCap  int
	fixedPrice float64
}

// NewMarket fixes the mechanism for the run from validated configuration.
func NewMarket(cfg model.MarketConfig) *Market {
	return &Market{
		mode:       cfg.Mode,
		permitCap:  cfg.PermitCap,
		fixedPrice: cfg.FixedPrice,
	}
}

// Allocate resolves one round of the market.
//
// Auction mode: bids are ranked descending with ties kept in submission
// order; the clearing price is the Q-th ranked bid and the top Q bidders
// win. With no more bidders than permits, every bidder wins at the lowest
// submitted bid.
//
// Fixed-price mode: the posted price clears and every bid at or above it
// wins, supply unlimited.
func (m *Market) Allocate(bids []Bid) (clearingPrice float64, winners []int) {
	if len(bids) == 0 {
		return 0, nil
	}

	if m.mode == model.MarketFixedPrice {
		for _, b := range bids {
			if b.Amount >= m.fixedPrice {
				winners = append(winners, b.AgentID)
			}
		}
		return m.fixedPrice, winners
	}

	ranked := append([]Bid(nil), bids...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Amount > ranked[j].Amount
	})

	if len(ranked) <= m.permitCap {
		clearingPrice = ranked[len(ranked)-1].Amount
		for _, b := range ranked {
			winners = append(winners, b.AgentID)
		}
		return clearingPrice, winners
	}

	clearingPrice = ranked[m.permitCap-1].Amount
	for _, b := range ranked[:m.permitCap] {
		winners = append(winners, b.AgentID)
	}
	return clearingPrice, winners
}

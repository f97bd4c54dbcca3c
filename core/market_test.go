package core

import (
	"reflect"
	"testing"

	"github.com/signalsfoundry/permit-simulator/model"
)

func TestAuctionClearsAtQthBid(t *testing.T) {
	m := NewMarket(model.MarketConfig{Mode: model.MarketAuction, PermitCap: 2})

	bids := []Bid{
		{AgentID: 0, Amount: 50},
		{AgentID: 1, Amount: 120},
		{AgentID: 2, Amount: 80},
		{AgentID: 3, Amount: 100},
	}
	price, winners := m.Allocate(bids)

	if price != 100 {
		t.Fatalf("clearing price = %v, want 100", price)
	}
	if !reflect.DeepEqual(winners, []int{1, 3}) {
		t.Fatalf("winners = %v, want [1 3]", winners)
	}
}

func TestAuctionTiesKeepSubmissionOrder(t *testing.T) {
	m := NewMarket(model.MarketConfig{Mode: model.MarketAuction, PermitCap: 2})

	bids := []Bid{
		{AgentID: 7, Amount: 90},
		{AgentID: 3, Amount: 90},
		{AgentID: 5, Amount: 90},
	}
	price, winners := m.Allocate(bids)

	if price != 90 {
		t.Fatalf("clearing price = %v, want 90", price)
	}
	if !reflect.DeepEqual(winners, []int{7, 3}) {
		t.Fatalf("winners = %v, want earliest submitters [7 3]", winners)
	}
}

func TestAuctionUndersubscribedClearsAtLowestBid(t *testing.T) {
	m := NewMarket(model.MarketConfig{Mode: model.MarketAuction, PermitCap: 5})

	bids := []Bid{
		{AgentID: 0, Amount: 60},
		{AgentID: 1, Amount: 30},
	}
	price, winners := m.Allocate(bids)

	if price != 30 {
		t.Fatalf("clearing price = %v, want lowest submitted bid 30", price)
	}
	if len(winners) != 2 {
		t.Fatalf("winners = %v, want both bidders", winners)
	}
}

func TestFixedPriceAdmitsBidsAtOrAbovePrice(t *testing.T) {
	m := NewMarket(model.MarketConfig{Mode: model.MarketFixedPrice, FixedPrice: 70})

	bids := []Bid{
		{AgentID: 0, Amount: 80},
		{AgentID: 1, Amount: 50},
		{AgentID: 2, Amount: 70},
	}
	price, winners := m.Allocate(bids)

	if price != 70 {
		t.Fatalf("clearing price = %v, want posted 70", price)
	}
	if !reflect.DeepEqual(winners, []int{0, 2}) {
		t.Fatalf("winners = %v, want [0 2]", winners)
	}
}

func TestAllocateWithNoBids(t *testing.T) {
	for _, cfg := range []model.MarketConfig{
		{Mode: model.MarketAuction, PermitCap: 3},
		{Mode: model.MarketFixedPrice, FixedPrice: 70},
	} {
		price, winners := NewMarket(cfg).Allocate(nil)
		if price != 0 || winners != nil {
			t.Fatalf("mode %s: Allocate(nil) = (%v, %v), want (0, nil)", cfg.Mode, price, winners)
		}
	}
}

func TestAllocateDoesNotMutateBids(t *testing.T) {
	m := NewMarket(model.MarketConfig{Mode: model.MarketAuction, PermitCap: 1})

	bids := []Bid{
		{AgentID: 0, Amount: 10},
		{AgentID: 1, Amount: 99},
	}
	orig := append([]Bid(nil), bids...)
	m.Allocate(bids)

	if !reflect.DeepEqual(bids, orig) {
		t.Fatalf("Allocate reordered caller's slice: %v", bids)
	}
}

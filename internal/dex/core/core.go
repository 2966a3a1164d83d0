package core

import (
	"context"
	"fmt"

	"github.com/m1amgn/cex-dex-arbitrager/internal/chain"
	"github.com/m1amgn/cex-dex-arbitrager/internal/types"
)

type VenueID string

const (
	VenueParaswap    VenueID = "paraswap"
	VenueKyberswap   VenueID = "kyberswap"
	VenueOpenOcean   VenueID = "openocean"
	VenueOneInch     VenueID = "1inch"
	VenueJupiter     VenueID = "jupiter"
	VenueDexscreener VenueID = "dexscreener"
	VenueStonFi      VenueID = "stonfi"
	VenueOsmosis     VenueID = "osmosis"
	VenueUniswapV2   VenueID = "uniswap_v2"
	VenueUniswapV3   VenueID = "uniswap_v3"
)

// DefaultVenues is every DEX source the engine knows about.
func DefaultVenues() []VenueID {
	return []VenueID{
		VenueParaswap, VenueKyberswap, VenueOpenOcean, VenueOneInch, VenueJupiter,
		VenueDexscreener, VenueStonFi, VenueOsmosis,
		VenueUniswapV2, VenueUniswapV3,
	}
}

// Family decides how a venue is scheduled and how its buy leg is derived.
type Family int

const (
	// FamilyAPI quotes a directed swap; the buy leg is the reciprocal of a dest->src call.
	FamilyAPI Family = iota
	// FamilyPool reads pool state on chain; buy leg derived like FamilyAPI.
	FamilyPool
	// FamilyListing returns the asset price in the quote currency; one call serves both legs.
	FamilyListing
)

func (f Family) String() string {
	switch f {
	case FamilyAPI:
		return "api"
	case FamilyPool:
		return "pool"
	case FamilyListing:
		return "listing"
	default:
		return "unknown"
	}
}

// QuoteRequest asks for the unit price of Src denominated in Dest.
type QuoteRequest struct {
	Network chain.Network
	Src     string
	Dest    string
	Amount  float64
}

type Quoter interface {
	ID() VenueID
	Family() Family
	// Supports is the declared network allow-list; unsupported pairs are never called.
	Supports(n chain.Network) bool
	Quote(ctx context.Context, req QuoteRequest) (types.DexQuote, error)
}

func Unsupported(id VenueID, n chain.Network) error {
	return fmt.Errorf("%w: %s on %s", types.ErrUnsupportedVenue, id, n.Name)
}

// DecimalsSource returns the decimals of an on-chain token.
type DecimalsSource interface {
	Decimals(ctx context.Context, n chain.Network, address string) (int, error)
}

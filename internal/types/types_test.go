package types

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCexQuoteValid(t *testing.T) {
	ok := CexQuote{BestBid: Level{Price: 99, Volume: 1}, BestAsk: Level{Price: 100, Volume: 2}}
	assert.True(t, ok.Valid())

	zeroVol := ok
	zeroVol.BestAsk.Volume = 0
	assert.False(t, zeroVol.Valid())

	nan := ok
	nan.BestBid.Price = math.NaN()
	assert.False(t, nan.Valid())

	inf := ok
	inf.BestAsk.Price = math.Inf(1)
	assert.False(t, inf.Valid())
}

func TestAssetNetworksSortedAndSkipsEmpty(t *testing.T) {
	a := Asset{Name: "PEPE", Blockchains: map[string]string{
		"Ethereum": "0x6982508145454Ce325dDbE47a25d4ec3d2311933",
		"Base":     "0x1",
		"Polygon":  "  ",
	}}
	assert.Equal(t, []string{"Base", "Ethereum"}, a.Networks())
}

func TestReasonOf(t *testing.T) {
	assert.Equal(t, "ok", ReasonOf(nil))
	assert.Equal(t, "transport", ReasonOf(fmt.Errorf("get: %w", ErrTransport)))
	assert.Equal(t, "upstream", ReasonOf(fmt.Errorf("status 500: %w", ErrUpstream)))
	assert.Equal(t, "unsupported", ReasonOf(fmt.Errorf("x: %w", ErrUnsupportedVenue)))
	assert.Equal(t, "absent", ReasonOf(fmt.Errorf("x: %w", ErrDataAbsent)))
	assert.Equal(t, "store", ReasonOf(fmt.Errorf("x: %w", ErrStore)))
	assert.Equal(t, "error", ReasonOf(errors.New("boom")))
	assert.Equal(t, "error", ReasonOf(context.Canceled))
}

package cex

import "sort"

var (
	concatUpper     = Joiner{}
	concatLower     = Joiner{Lower: true}
	dashUpper       = Joiner{Sep: "-"}
	underscoreUpper = Joiner{Sep: "_"}
	underscoreLower = Joiner{Sep: "_", Lower: true}

	usdtAsUSD = map[string]string{"USDT": "USD"}
	btcAsXBT  = map[string]string{"BTC": "XBT"}
)

// Venues returns the order-book endpoints of every supported exchange, keyed by name.
// Each call builds fresh values.
func Venues() map[string]Spec {
	list := []Spec{
		{
			Name:   "binance",
			URL:    "https://api.binance.com/api/v3/depth",
			Params: map[string]string{"symbol": "{pair}", "limit": "5"},
			Pair:   concatUpper,
			Parser: LevelParser{Bids: Path{"bids"}, Asks: Path{"asks"}},
		},
		{
			Name:   "bybit",
			URL:    "https://api.bybit.com/v5/market/orderbook",
			Params: map[string]string{"category": "spot", "symbol": "{pair}"},
			Pair:   concatUpper,
			Parser: LevelParser{Bids: Path{"result", "b"}, Asks: Path{"result", "a"}},
		},
		{
			Name:   "bingx",
			URL:    "https://open-api.bingx.com/openApi/spot/v1/market/depth",
			Params: map[string]string{"symbol": "{pair}", "limit": "100"},
			Pair:   dashUpper,
			// asks приходят по убыванию, лучшая в конце
			Parser: LevelParser{Bids: Path{"data", "bids"}, Asks: Path{"data", "asks"}, AskTail: true},
		},
		{
			Name:   "bitfinex",
			URL:    "https://api.bitfinex.com/v1/book/{pair}",
			Pair:   Joiner{Rename: usdtAsUSD},
			Parser: ObjectParser{Bids: Path{"bids"}, Asks: Path{"asks"}, PriceKey: "price", VolumeKey: "amount"},
		},
		{
			Name:   "bitget",
			URL:    "https://api.bitget.com/data/v1/market/depth",
			Params: map[string]string{"symbol": "{pair}"},
			Pair:   underscoreLower,
			Parser: LevelParser{Bids: Path{"data", "bids"}, Asks: Path{"data", "asks"}},
		},
		{
			Name:   "bitmex",
			URL:    "https://www.bitmex.com/api/v1/orderBook/L2",
			Params: map[string]string{"symbol": "{pair}", "depth": "1"},
			Pair:   Joiner{Rename: btcAsXBT},
			Parser: SideParser{SideKey: "side", BuyValue: "Buy", SellValue: "Sell", PriceKey: "price", VolumeKey: "size"},
		},
		{
			Name:   "bitstamp",
			URL:    "https://www.bitstamp.net/api/v2/order_book/{pair}",
			Pair:   concatLower,
			Parser: LevelParser{Bids: Path{"bids"}, Asks: Path{"asks"}},
		},
		{
			Name:   "coinbase",
			URL:    "https://api.exchange.coinbase.com/products/{pair}/book",
			Params: map[string]string{"level": "1"},
			Pair:   dashUpper,
			Parser: LevelParser{Bids: Path{"bids"}, Asks: Path{"asks"}},
		},
		{
			Name:   "coinw",
			URL:    "https://api.coinw.com/api/v1/public",
			Params: map[string]string{"command": "returnOrderBook", "symbol": "{pair}", "limit": "20"},
			Pair:   underscoreUpper,
			Parser: LevelParser{Bids: Path{"data", "bids"}, Asks: Path{"data", "asks"}},
		},
		{
			Name:   "cryptocom",
			URL:    "https://api.crypto.com/v2/public/get-book",
			Params: map[string]string{"instrument_name": "{pair}", "depth": "5"},
			Pair:   underscoreUpper,
			Parser: LevelParser{Bids: Path{"result", "data", "0", "bids"}, Asks: Path{"result", "data", "0", "asks"}},
		},
		{
			Name:   "deribit",
			URL:    "https://www.deribit.com/api/v2/public/get_order_book",
			Params: map[string]string{"instrument_name": "{pair}", "depth": "5"},
			Pair:   Joiner{Sep: "-", Rename: map[string]string{"USDT": "PERPETUAL"}},
			Parser: LevelParser{Bids: Path{"result", "bids"}, Asks: Path{"result", "asks"}},
		},
		{
			Name:   "dydx",
			URL:    "https://api.dydx.exchange/v3/orderbook/{pair}",
			Pair:   Joiner{Sep: "-", Rename: usdtAsUSD},
			Parser: ObjectParser{Bids: Path{"bids"}, Asks: Path{"asks"}, PriceKey: "price", VolumeKey: "size"},
		},
		{
			Name:   "garantex",
			URL:    "https://garantex.org/api/v2/depth",
			Params: map[string]string{"market": "{pair}"},
			Pair:   concatLower,
			Parser: ObjectParser{Bids: Path{"bids"}, Asks: Path{"asks"}, PriceKey: "price", VolumeKey: "volume"},
		},
		{
			Name:   "gateio",
			URL:    "https://api.gate.io/api2/1/orderBook/{pair}",
			Pair:   underscoreLower,
			Parser: LevelParser{Bids: Path{"bids"}, Asks: Path{"asks"}},
		},
		{
			Name:   "gemini",
			URL:    "https://api.gemini.com/v1/book/{pair}",
			Pair:   Joiner{Lower: true, Rename: usdtAsUSD},
			Parser: ObjectParser{Bids: Path{"bids"}, Asks: Path{"asks"}, PriceKey: "price", VolumeKey: "amount"},
		},
		{
			Name:   "huobi",
			URL:    "https://api.huobi.pro/market/depth",
			Params: map[string]string{"symbol": "{pair}", "type": "step1", "depth": "5"},
			Pair:   concatLower,
			Parser: LevelParser{Bids: Path{"tick", "bids"}, Asks: Path{"tick", "asks"}},
		},
		{
			Name:   "kraken",
			URL:    "https://api.kraken.com/0/public/Depth",
			Params: map[string]string{"pair": "{pair}", "count": "1"},
			Pair:   Joiner{Rename: btcAsXBT},
			// kraken отвечает под своим именем пары (XXBTZUSD), берём первый ключ
			Parser: LevelParser{Bids: Path{"result", "*", "bids"}, Asks: Path{"result", "*", "asks"}},
		},
		{
			Name:   "kucoin",
			URL:    "https://api.kucoin.com/api/v1/market/orderbook/level2_20",
			Params: map[string]string{"symbol": "{pair}"},
			Pair:   dashUpper,
			Parser: LevelParser{Bids: Path{"data", "bids"}, Asks: Path{"data", "asks"}},
		},
		{
			Name:   "mexc",
			URL:    "https://api.mexc.com/api/v3/depth",
			Params: map[string]string{"symbol": "{pair}", "limit": "5"},
			Pair:   concatUpper,
			Parser: LevelParser{Bids: Path{"bids"}, Asks: Path{"asks"}},
		},
		{
			Name:   "okx",
			URL:    "https://www.okx.com/api/v5/market/books",
			Params: map[string]string{"instId": "{pair}", "sz": "5"},
			Pair:   dashUpper,
			Parser: LevelParser{Bids: Path{"data", "0", "bids"}, Asks: Path{"data", "0", "asks"}},
		},
		{
			Name:   "phemex",
			URL:    "https://api.phemex.com/md/orderbook",
			Params: map[string]string{"symbol": "{pair}"},
			Pair:   Joiner{Rename: usdtAsUSD},
			Parser: LevelParser{Bids: Path{"result", "book", "bids"}, Asks: Path{"result", "book", "asks"}, Divisor: 10_000},
		},
		{
			Name:   "poloniex",
			URL:    "https://api.poloniex.com/markets/{pair}/orderBook",
			Pair:   underscoreUpper,
			Parser: FlatParser{Bids: Path{"bids"}, Asks: Path{"asks"}},
		},
		{
			Name:   "yobit",
			URL:    "https://yobit.net/api/3/depth/{pair}",
			Params: map[string]string{"limit": "5"},
			Pair:   underscoreLower,
			Parser: LevelParser{Bids: Path{"{pair}", "bids"}, Asks: Path{"{pair}", "asks"}},
		},
		{
			Name:   "coinex",
			URL:    "https://api.coinex.com/v2/spot/depth",
			Params: map[string]string{"market": "{pair}", "limit": "50", "interval": "0"},
			Pair:   concatUpper,
			Parser: LevelParser{Bids: Path{"data", "depth", "bids"}, Asks: Path{"data", "depth", "asks"}},
		},
		{
			Name:   "backpack",
			URL:    "https://api.backpack.exchange/api/v1/depth",
			Params: map[string]string{"symbol": "{pair}"},
			Pair:   underscoreUpper,
			// bids по возрастанию
			Parser: LevelParser{Bids: Path{"bids"}, Asks: Path{"asks"}, BidTail: true},
		},
		{
			Name:   "zigzag",
			URL:    "https://zigzag-exchange.herokuapp.com/api/coinmarketcap/v1/orderbook/{pair}/1",
			Pair:   Joiner{Sep: "-", Lower: true, Rename: map[string]string{"BTC": "WBTC"}},
			Parser: LevelParser{Bids: Path{"bids"}, Asks: Path{"asks"}},
		},
	}
	out := make(map[string]Spec, len(list))
	for _, s := range list {
		out[s.Name] = s
	}
	return out
}

// Names lists every supported venue in alphabetical order.
func Names() []string {
	v := Venues()
	out := make([]string, 0, len(v))
	for n := range v {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

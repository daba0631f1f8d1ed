package bitfinex

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/core"
	apperrors "github.com/Adamant-im/adamant-coinoptimus-sub001/pkg/errors"
)

func TestToSymbol(t *testing.T) {
	cases := []struct {
		pair string
		want string
	}{
		{"BTC/USD", "tBTCUSD"},
		{"BTC/USDT", "tBTCUST"},
		{"TUSD/USD", "tTSDUSD"},
		{"DUSK/USD", "tDUSK:USD"},
		{"BTC/DOGE", "tBTC:DOGE"},
	}
	for _, tc := range cases {
		got, err := toSymbol(tc.pair)
		if err != nil {
			t.Errorf("%s: %v", tc.pair, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: expected %s, got %s", tc.pair, tc.want, got)
		}
	}

	if _, err := toSymbol("BTCUSD"); err == nil {
		t.Error("expected an error for a pair without a separator")
	}
}

func TestFromSymbolRoundTrip(t *testing.T) {
	cases := []struct {
		symbol string
		want   string
	}{
		{"tBTCUSD", "BTC/USD"},
		{"BTCUST", "BTC/USDT"},
		{"tDUSK:USD", "DUSK/USD"},
		{"tTSDUSD", "TUSD/USD"},
	}
	for _, tc := range cases {
		if got := fromSymbol(tc.symbol); got != tc.want {
			t.Errorf("%s: expected %s, got %s", tc.symbol, tc.want, got)
		}
	}
}

func TestFromStatus(t *testing.T) {
	cases := []struct {
		status string
		want   core.OrderStatus
	}{
		{"ACTIVE", core.OrderStatusNew},
		{"PARTIALLY FILLED @ 101.0(0.2)", core.OrderStatusPartFilled},
		{"EXECUTED @ 101.0(0.5)", core.OrderStatusFilled},
		{"CANCELED", core.OrderStatusCancelled},
		{"CANCELED was: PARTIALLY FILLED @ 101.0(0.2)", core.OrderStatusCancelled},
		{"POSTONLY CANCELED", core.OrderStatusCancelled},
		{"SOMETHING NEW", core.OrderStatusNew},
	}
	for _, tc := range cases {
		if got := fromStatus(tc.status); got != tc.want {
			t.Errorf("%q: expected %s, got %s", tc.status, tc.want, got)
		}
	}
}

func TestParseOrderFromRawArray(t *testing.T) {
	// A resting sell for 0.5 BTC at 101.5 with 0.2 executed.
	payload := `[123456789, null, 42, "tBTCUST", 1700000000000, 1700000001000,
		-0.3, -0.5, "EXCHANGE LIMIT", null, null, null, null,
		"PARTIALLY FILLED @ 101.5(0.2)", null, null, 101.5, 101.5, 0, 0, null]`

	raw, err := decodeArray([]byte(payload))
	if err != nil {
		t.Fatal(err)
	}

	order := parseOrder(raw)
	if order == nil {
		t.Fatal("expected an order")
	}
	if order.OrderID != "123456789" {
		t.Errorf("order id: %s", order.OrderID)
	}
	if order.Pair != "BTC/USDT" {
		t.Errorf("pair: %s", order.Pair)
	}
	if order.Side != core.SideSell {
		t.Errorf("side: %s", order.Side)
	}
	if order.Type != "limit" {
		t.Errorf("type: %s", order.Type)
	}
	if !order.Price.Equal(decimal.RequireFromString("101.5")) {
		t.Errorf("price: %s", order.Price)
	}
	if !order.Amount.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("amount: %s", order.Amount)
	}
	if !order.AmountExecuted.Equal(decimal.RequireFromString("0.2")) {
		t.Errorf("executed: %s", order.AmountExecuted)
	}
	if !order.AmountLeft.Equal(decimal.RequireFromString("0.3")) {
		t.Errorf("left: %s", order.AmountLeft)
	}
	if order.Status != core.OrderStatusPartFilled {
		t.Errorf("status: %s", order.Status)
	}
	if order.CreatedAt.UnixMilli() != 1700000000000 {
		t.Errorf("created at: %s", order.CreatedAt)
	}
}

func TestParseOrderRejectsShortArrays(t *testing.T) {
	raw, err := decodeArray([]byte(`[1, 2, 3]`))
	if err != nil {
		t.Fatal(err)
	}
	if parseOrder(raw) != nil {
		t.Error("a truncated array must not yield an order")
	}
}

func TestParseErrorCodes(t *testing.T) {
	cases := []struct {
		body string
		want error
	}{
		{`["error", 10100, "apikey: invalid"]`, apperrors.ErrAuthenticationFailed},
		{`["error", 11010, "ratelimit: error"]`, apperrors.ErrRateLimitExceeded},
		{`["error", 20060, "maintenance"]`, apperrors.ErrExchangeMaintenance},
		{`["error", 10001, "not enough exchange balance"]`, apperrors.ErrInsufficientFunds},
		{`["error", 10001, "amount: invalid (minimum size)"]`, apperrors.ErrMinimalAmount},
		{`["error", 10001, "order: invalid"]`, apperrors.ErrOrderNotFound},
		{`["error", 10001, "symbol: invalid"]`, apperrors.ErrInvalidPair},
		{`["error", 10001, "price: invalid"]`, apperrors.ErrInvalidOrderParameter},
		{`["error", 10001, "computer says no"]`, apperrors.ErrOrderRejected},
		{`not json at all`, apperrors.ErrNetwork},
	}
	for _, tc := range cases {
		if got := parseError([]byte(tc.body)); !errors.Is(got, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.body, tc.want, got)
		}
	}
}

func TestDecodeHelpersKeepPrecision(t *testing.T) {
	raw, err := decodeArray([]byte(`[123456789012345678, "0.00000001", 1700000000000]`))
	if err != nil {
		t.Fatal(err)
	}

	if got := asOrderID(raw[0]); got != "123456789012345678" {
		t.Errorf("large id mangled: %s", got)
	}
	if got := asDecimal(raw[1]); !got.Equal(decimal.RequireFromString("0.00000001")) {
		t.Errorf("decimal mangled: %s", got)
	}
	if got := asTime(raw[2]); got.UnixMilli() != 1700000000000 {
		t.Errorf("timestamp mangled: %s", got)
	}
}

func TestDecodeArrayUsesNumbers(t *testing.T) {
	raw, err := decodeArray([]byte(`[1, 2.5]`))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := raw[0].(json.Number); !ok {
		t.Errorf("expected json.Number, got %T", raw[0])
	}
}

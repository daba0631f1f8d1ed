package bitfinex

import (
	"encoding/json"
	"strings"

	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/core"
	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/exchange/base"
	apperrors "github.com/Adamant-im/adamant-coinoptimus-sub001/pkg/errors"
)

// Bitfinex trades a few currencies under legacy tickers.
var coinAliases = map[string]string{
	"USDT": "UST",
	"TUSD": "TSD",
}

var coinAliasesReverse = func() map[string]string {
	out := make(map[string]string, len(coinAliases))
	for k, v := range coinAliases {
		out[v] = k
	}
	return out
}()

// toSymbol converts "BASE/QUOTE" to the venue trading symbol, e.g.
// "BTC/USDT" -> "tBTCUST". Currencies longer than three characters use the
// colon form: "DUSK/USD" -> "tDUSK:USD".
func toSymbol(pair string) (string, error) {
	coin1, coin2, err := base.SplitPair(pair)
	if err != nil {
		return "", err
	}
	coin1 = aliasCoin(coin1)
	coin2 = aliasCoin(coin2)
	if len(coin1) > 3 || len(coin2) > 3 {
		return "t" + coin1 + ":" + coin2, nil
	}
	return "t" + coin1 + coin2, nil
}

// fromSymbol converts a venue pair code (without the "t" prefix) back to
// "BASE/QUOTE" form.
func fromSymbol(symbol string) string {
	symbol = strings.TrimPrefix(symbol, "t")
	var coin1, coin2 string
	if i := strings.IndexByte(symbol, ':'); i >= 0 {
		coin1, coin2 = symbol[:i], symbol[i+1:]
	} else if len(symbol) >= 6 {
		coin1, coin2 = symbol[:3], symbol[3:]
	} else {
		return symbol
	}
	return unaliasCoin(coin1) + "/" + unaliasCoin(coin2)
}

func aliasCoin(coin string) string {
	if alias, ok := coinAliases[coin]; ok {
		return alias
	}
	return coin
}

func unaliasCoin(coin string) string {
	if orig, ok := coinAliasesReverse[coin]; ok {
		return orig
	}
	return coin
}

// fromStatus normalizes a Bitfinex order status string. Executed and
// cancelled statuses carry a fill summary suffix, e.g. "EXECUTED @ 101.0(0.5)".
func fromStatus(status string) core.OrderStatus {
	switch {
	case strings.HasPrefix(status, "PARTIALLY FILLED"):
		return core.OrderStatusPartFilled
	case strings.HasPrefix(status, "EXECUTED"):
		return core.OrderStatusFilled
	case strings.HasPrefix(status, "CANCELED"),
		strings.HasPrefix(status, "POSTONLY CANCELED"),
		strings.HasPrefix(status, "RSN_"):
		return core.OrderStatusCancelled
	default:
		// ACTIVE and anything unrecognized count as resting.
		return core.OrderStatusNew
	}
}

// parseError maps a Bitfinex error payload ["error", CODE, "message"] onto a
// standardized sentinel.
func parseError(body []byte) error {
	var raw []interface{}
	if err := json.Unmarshal(body, &raw); err != nil || len(raw) < 3 {
		return apperrors.ErrNetwork
	}

	code := asInt64(raw[1])
	message := strings.ToLower(asString(raw[2]))

	switch code {
	case 10100, 10113, 10114:
		return apperrors.ErrAuthenticationFailed
	case 11010:
		return apperrors.ErrRateLimitExceeded
	case 20060:
		return apperrors.ErrExchangeMaintenance
	}

	switch {
	case strings.Contains(message, "not enough"),
		strings.Contains(message, "balance"):
		return apperrors.ErrInsufficientFunds
	case strings.Contains(message, "minimum size"),
		strings.Contains(message, "amount: invalid"):
		return apperrors.ErrMinimalAmount
	case strings.Contains(message, "order: invalid"),
		strings.Contains(message, "not found"):
		return apperrors.ErrOrderNotFound
	case strings.Contains(message, "symbol: invalid"),
		strings.Contains(message, "unknown symbol"):
		return apperrors.ErrInvalidPair
	case strings.Contains(message, "price"):
		return apperrors.ErrInvalidOrderParameter
	default:
		return apperrors.ErrOrderRejected
	}
}

// parseOrder decodes one order array from the v2 API. Fields by position:
// [0]=ID [3]=SYMBOL [4]=MTS_CREATE [6]=AMOUNT (remaining, signed)
// [7]=AMOUNT_ORIG (signed) [8]=TYPE [13]=STATUS [16]=PRICE.
func parseOrder(raw []interface{}) *core.Order {
	if len(raw) < 17 {
		return nil
	}

	amountOrig := asDecimal(raw[7])
	side := core.SideBuy
	if amountOrig.IsNegative() {
		side = core.SideSell
	}

	orderType := "limit"
	if strings.Contains(strings.ToUpper(asString(raw[8])), "MARKET") {
		orderType = "market"
	}

	left := asDecimal(raw[6]).Abs()
	orig := amountOrig.Abs()

	return &core.Order{
		OrderID:        asOrderID(raw[0]),
		Pair:           fromSymbol(asString(raw[3])),
		Side:           side,
		Type:           orderType,
		Price:          asDecimal(raw[16]),
		Amount:         orig,
		AmountExecuted: orig.Sub(left),
		AmountLeft:     left,
		Status:         fromStatus(asString(raw[13])),
		CreatedAt:      asTime(raw[4]),
	}
}

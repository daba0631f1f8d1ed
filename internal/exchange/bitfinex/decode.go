package bitfinex

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// The v2 API returns positional JSON arrays with mixed number/string cells.
// Responses are decoded with json.Number to keep order ids and prices exact.

func decodeArray(body []byte) ([]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw []interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func asString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	}
	return ""
}

func asInt64(v interface{}) int64 {
	switch x := v.(type) {
	case json.Number:
		n, _ := x.Int64()
		return n
	case float64:
		return int64(x)
	}
	return 0
}

func asDecimal(v interface{}) decimal.Decimal {
	switch x := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		if err == nil {
			return d
		}
	case string:
		d, err := decimal.NewFromString(x)
		if err == nil {
			return d
		}
	case float64:
		return decimal.NewFromFloat(x)
	}
	return decimal.Zero
}

func asOrderID(v interface{}) string {
	if n := asInt64(v); n != 0 {
		return strconv.FormatInt(n, 10)
	}
	return asString(v)
}

func asTime(v interface{}) time.Time {
	ms := asInt64(v)
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func asArray(v interface{}) []interface{} {
	if arr, ok := v.([]interface{}); ok {
		return arr
	}
	return nil
}

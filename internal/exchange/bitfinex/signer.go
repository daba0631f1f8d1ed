package bitfinex

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// signer implements httpclient.Signer for the Bitfinex v2 authenticated API:
// HMAC-SHA384 over "/api" + path + nonce + body, hex-encoded.
type signer struct {
	apiKey    string
	secretKey string
	lastNonce int64
}

// nonce returns a strictly increasing value even when requests are signed
// within the same microsecond.
func (s *signer) nonce() string {
	for {
		last := atomic.LoadInt64(&s.lastNonce)
		next := time.Now().UnixMicro()
		if next <= last {
			next = last + 1
		}
		if atomic.CompareAndSwapInt64(&s.lastNonce, last, next) {
			return strconv.FormatInt(next, 10)
		}
	}
}

func (s *signer) SignRequest(req *http.Request, body []byte) error {
	nonce := s.nonce()

	payload := "/api" + req.URL.Path + nonce + string(body)
	mac := hmac.New(sha512.New384, []byte(s.secretKey))
	mac.Write([]byte(payload))

	req.Header.Set("bfx-nonce", nonce)
	req.Header.Set("bfx-apikey", s.apiKey)
	req.Header.Set("bfx-signature", hex.EncodeToString(mac.Sum(nil)))
	return nil
}

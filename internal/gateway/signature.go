package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var ErrSignatureMismatch = errors.New("signature mismatch")

// Sign returns the lowercase hex HMAC-SHA256 of payload.
func Sign(secret, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares in constant time. An empty secret never verifies.
func Verify(secret, payload []byte, signature string) error {
	if len(secret) == 0 || signature == "" {
		return ErrSignatureMismatch
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return ErrSignatureMismatch
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	if !hmac.Equal(mac.Sum(nil), got) {
		return ErrSignatureMismatch
	}
	return nil
}

// PaymentPayload is what the checkout callback signature covers.
func PaymentPayload(orderID, paymentID string) []byte {
	return []byte(orderID + "|" + paymentID)
}

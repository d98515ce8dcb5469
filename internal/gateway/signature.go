package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sign derives the callback signature for an order/payment pair.
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature recomputes the signature and compares it in constant time.
// A mismatch is reported as false; only empty inputs are errors.
func VerifySignature(secret, orderID, paymentID, signature string) (bool, error) {
	if secret == "" {
		return false, ErrNotConfigured
	}
	if strings.TrimSpace(orderID) == "" ||
		strings.TrimSpace(paymentID) == "" ||
		strings.TrimSpace(signature) == "" {
		return false, ErrMalformedInput
	}

	expected := Sign(secret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))), nil
}

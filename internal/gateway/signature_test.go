package gateway

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "rzp_test_secret"

func TestVerifySignature_Valid(t *testing.T) {
	sig := Sign(testSecret, "order_123", "pay_456")

	ok, err := VerifySignature(testSecret, "order_123", "pay_456", sig)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifySignature_Tampered(t *testing.T) {
	sig := Sign(testSecret, "order_123", "pay_456")
	tampered := []byte(sig)
	if tampered[0] == 'a' {
		tampered[0] = 'b'
	} else {
		tampered[0] = 'a'
	}

	ok, err := VerifySignature(testSecret, "order_123", "pay_456", string(tampered))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = VerifySignature(testSecret, "order_123", "pay_999", sig)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = VerifySignature("other_secret", "order_123", "pay_456", sig)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifySignature_MalformedInput(t *testing.T) {
	cases := []struct {
		name                        string
		secret, order, payment, sig string
		want                        error
	}{
		{"empty secret", "", "o", "p", "s", ErrNotConfigured},
		{"empty order", testSecret, "", "p", "s", ErrMalformedInput},
		{"empty payment", testSecret, "o", " ", "s", ErrMalformedInput},
		{"empty signature", testSecret, "o", "p", "", ErrMalformedInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := VerifySignature(tc.secret, tc.order, tc.payment, tc.sig)
			assert.False(t, ok)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(1667), ToMinorUnits(decimal.RequireFromString("16.67")))
	assert.Equal(t, int64(5000), ToMinorUnits(decimal.NewFromInt(50)))
	assert.Equal(t, int64(100), ToMinorUnits(decimal.NewFromInt(1)))
}

func TestBuildReceipt(t *testing.T) {
	assert.Equal(t, "extra-table-42", BuildReceipt("Extra Table", "42"))

	long := BuildReceipt("renewal", "1789012345678901234567890123456789012345")
	assert.Len(t, long, MaxReceiptLength)
	assert.Equal(t, "renewal-", long[:8])
}

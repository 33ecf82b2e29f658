package security

import (
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestPaymentLink_RoundTrip(t *testing.T) {
	signer := NewPaymentLinkSigner(testSecret, time.Hour)

	link, err := signer.Link("https://pay.example.com/checkout?plan=team", 42, decimal.RequireFromString("50"))
	require.NoError(t, err)

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "team", u.Query().Get("plan"))

	claims, err := signer.Verify(u.Query().Get("token"))
	require.NoError(t, err)
	assert.Equal(t, int32(42), claims.TenantID)
	assert.Equal(t, "50.00", claims.Amount)
}

func TestPaymentLink_Disabled(t *testing.T) {
	signer := NewPaymentLinkSigner("", time.Hour)
	link, err := signer.Link("https://pay.example.com", 1, decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com", link)

	link, err = NewPaymentLinkSigner(testSecret, time.Hour).Link("", 1, decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.Empty(t, link)
}

func TestPaymentLink_Rejections(t *testing.T) {
	signer := NewPaymentLinkSigner(testSecret, time.Hour).(*paymentLinkSigner)
	issued := time.Now()
	signer.now = func() time.Time { return issued }

	link, err := signer.Link("https://pay.example.com", 7, decimal.NewFromInt(10))
	require.NoError(t, err)
	u, _ := url.Parse(link)
	token := u.Query().Get("token")

	t.Run("Expired", func(t *testing.T) {
		signer.now = func() time.Time { return issued.Add(2 * time.Hour) }
		defer func() { signer.now = func() time.Time { return issued } }()
		_, err := signer.Verify(token)
		assert.Equal(t, ErrExpiredToken, err)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		other := NewPaymentLinkSigner("ffffffffffffffffffffffffffffffff", time.Hour)
		_, err := other.Verify(token)
		assert.Equal(t, ErrInvalidToken, err)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := signer.Verify("not-a-token")
		assert.Equal(t, ErrInvalidToken, err)
	})
}

func TestAdminToken(t *testing.T) {
	hash, err := HashAdminToken("s3cret")
	require.NoError(t, err)

	assert.True(t, VerifyAdminToken(hash, "s3cret"))
	assert.False(t, VerifyAdminToken(hash, "wrong"))
	assert.False(t, VerifyAdminToken("", "s3cret"))
	assert.False(t, VerifyAdminToken(hash, ""))
}

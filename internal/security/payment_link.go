package security

import (
	"errors"
	"net/url"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

const paymentLinkAudience = "subscription-payment"

// PaymentClaims identify the tenant and amount a payment link was issued for
type PaymentClaims struct {
	TenantID int32  `json:"tenant_id"`
	Amount   string `json:"amount"`
	jwt.RegisteredClaims
}

type PaymentLinkSigner interface {
	// Link appends a signed token to base. It returns base unchanged when signing is disabled.
	Link(base string, tenantID int32, amount decimal.Decimal) (string, error)
	Verify(tokenString string) (*PaymentClaims, error)
}

type paymentLinkSigner struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewPaymentLinkSigner returns a signer issuing HS256 tokens. An empty secret disables signing.
func NewPaymentLinkSigner(secret string, expiry time.Duration) PaymentLinkSigner {
	return &paymentLinkSigner{secret: []byte(secret), expiry: expiry, now: time.Now}
}

func (s *paymentLinkSigner) Link(base string, tenantID int32, amount decimal.Decimal) (string, error) {
	if base == "" || len(s.secret) == 0 {
		return base, nil
	}

	now := s.now()
	claims := PaymentClaims{
		TenantID: tenantID,
		Amount:   amount.StringFixed(2),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(int(tenantID)),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "teambilling",
			Audience:  jwt.ClaimStrings{paymentLinkAudience},
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", err
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", signed)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *paymentLinkSigner) Verify(tokenString string) (*PaymentClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &PaymentClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithAudience(paymentLinkAudience), jwt.WithTimeFunc(s.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*PaymentClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

package api

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TrackingTokens mints the per-record token returned at intake so a submitter
// can later prove they hold the original registration envelope.
type TrackingTokens struct {
	Secret []byte
	TTL    time.Duration
}

type trackingClaims struct {
	PublicID string `json:"public_id"`
	jwt.RegisteredClaims
}

func (t TrackingTokens) Mint(publicID string) (string, error) {
	claims := trackingClaims{
		PublicID: publicID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(t.TTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.Secret)
}

package broadcast

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

// TokenIssuer mints subscribe-only client tokens for the relay, scoped to the
// three public channels. Clients hand the token to the relay when opening
// their subscription; it grants no publish capability.
type TokenIssuer struct {
	secret []byte
	clock  clockwork.Clock
	ttl    time.Duration
}

// ClientToken is the issued credential returned to the caller.
type ClientToken struct {
	Token      string              `json:"token"`
	ClientID   string              `json:"clientId"`
	Capability map[string][]string `json:"capability"`
	ExpiresAt  time.Time           `json:"expiresAt"`
}

// NewTokenIssuer creates an issuer signing with the relay secret.
func NewTokenIssuer(secret string, clock clockwork.Clock, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), clock: clock, ttl: ttl}
}

// GenerateClientToken issues a subscribe-only token bound to the user.
func (i *TokenIssuer) GenerateClientToken(userID string) (*ClientToken, error) {
	capability := map[string][]string{
		ChannelActiveRooms:  {"subscribe"},
		ChannelRoomUpdates:  {"subscribe"},
		ChannelUserPresence: {"subscribe"},
	}

	now := i.clock.Now()
	expiresAt := now.Add(i.ttl)
	claims := jwt.MapClaims{
		"sub":        userID,
		"capability": capability,
		"iat":        now.Unix(),
		"exp":        expiresAt.Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return nil, fmt.Errorf("sign relay token: %w", err)
	}

	return &ClientToken{
		Token:      signed,
		ClientID:   userID,
		Capability: capability,
		ExpiresAt:  expiresAt,
	}, nil
}

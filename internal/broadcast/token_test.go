package broadcast

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateClientTokenIsSubscribeOnly(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	issuer := NewTokenIssuer("relay-secret", clock, time.Hour)

	token, err := issuer.GenerateClientToken("u-1")
	require.NoError(t, err)

	assert.Equal(t, "u-1", token.ClientID)
	assert.Equal(t, clock.Now().Add(time.Hour), token.ExpiresAt)
	for _, channel := range []string{ChannelActiveRooms, ChannelRoomUpdates, ChannelUserPresence} {
		assert.Equal(t, []string{"subscribe"}, token.Capability[channel])
	}

	parsed, err := jwt.Parse(token.Token, func(tok *jwt.Token) (interface{}, error) {
		return []byte("relay-secret"), nil
	}, jwt.WithTimeFunc(clock.Now))
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, "u-1", claims["sub"])

	capability, ok := claims["capability"].(map[string]interface{})
	require.True(t, ok)
	assert.Len(t, capability, 3)
}

func TestTokenTTLDefaultsToOneHour(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	issuer := NewTokenIssuer("relay-secret", clock, 0)

	token, err := issuer.GenerateClientToken("u-1")
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(time.Hour), token.ExpiresAt)
}

package main

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/fokashive/fokashive/internal/auth"
	"github.com/fokashive/fokashive/internal/broadcast"
	"github.com/fokashive/fokashive/internal/gateway"
	"github.com/fokashive/fokashive/internal/presence"
	"github.com/fokashive/fokashive/internal/room"
)

// Services holds the wired dependency chain:
// repository → lifecycle app → transports.
type Services struct {
	Rooms    *room.App
	RoomsAPI *room.Handler
	WS       *gateway.WebSocketHandler
	Conns    *gateway.ConnectionManager
	Relay    *broadcast.RelayPublisher
}

func setupServices(pool *pgxpool.Pool, config *Config) *Services {
	clock := clockwork.NewRealClock()
	verifier := auth.NewJWTVerifier(config.Auth.JWTSecret)
	tracker := presence.NewMemoryTracker()
	repo := room.NewPostgresRepository(pool)

	conns := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	publishers := []broadcast.Publisher{conns}

	// The relay is a second, independent delivery path. Losing it degrades
	// service to WebSocket-only rather than failing startup.
	var relay *broadcast.RelayPublisher
	if config.Relay.Enabled {
		relayCfg := broadcast.DefaultRelayConfig()
		relayCfg.URL = config.Relay.URL
		r, err := broadcast.NewRelayPublisher(relayCfg)
		if err != nil {
			log.Warn().Err(err).Str("url", relayCfg.URL).Msg("relay unavailable, continuing websocket-only")
		} else {
			relay = r
			publishers = append(publishers, r)
		}
	}

	broadcaster := broadcast.NewBroadcaster(clock, publishers...)
	app := room.NewApp(repo, tracker, broadcaster, clock)

	tokens := broadcast.NewTokenIssuer(config.Auth.JWTSecret, clock, config.Auth.RelayTokenTTL)

	return &Services{
		Rooms:    app,
		RoomsAPI: room.NewHandler(app, verifier, tokens),
		WS:       gateway.NewWebSocketHandler(conns, app, verifier, tracker, clock),
		Conns:    conns,
		Relay:    relay,
	}
}

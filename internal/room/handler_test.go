package room

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fokashive/fokashive/internal/auth"
	"github.com/fokashive/fokashive/internal/broadcast"
	"github.com/fokashive/fokashive/internal/models"
	"github.com/fokashive/fokashive/internal/presence"
)

const handlerTestSecret = "handler-test-secret"

func newTestServer(t *testing.T) (*httptest.Server, *App) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	app := NewApp(NewMemoryRepository(), presence.NewMemoryTracker(), &recordingBroadcaster{}, clock)
	handler := NewHandler(app, auth.NewJWTVerifier(handlerTestSecret), broadcast.NewTokenIssuer("relay-secret", clock, time.Hour))

	mux := http.NewServeMux()
	handler.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, app
}

func bearerFor(t *testing.T, userID, name string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID,
		"name": name,
	}).SignedString([]byte(handlerTestSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

func doRequest(t *testing.T, method, url, authz string, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestCreateRoomEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	authz := bearerFor(t, "u-alice", "Alice")

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/rooms", authz,
		`{"name":"Math","focusDuration":25,"shortBreakDuration":5,"longBreakDuration":15}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var view models.RoomView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.Equal(t, "Math", view.Name)
	assert.Equal(t, "u-alice", view.Host.ID)
	assert.Equal(t, 1500, view.TimerSettings.FocusDuration)
	assert.Equal(t, 1, view.UserCount)
}

func TestCreateRoomEndpointErrors(t *testing.T) {
	srv, _ := newTestServer(t)
	authz := bearerFor(t, "u-alice", "Alice")

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/rooms", "", `{"name":"Math"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, http.MethodPost, srv.URL+"/api/rooms", authz, `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, http.MethodPost, srv.URL+"/api/rooms", authz, `{"name":"Math","focusDuration":500}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "focusDuration", body.Field)

	resp = doRequest(t, http.MethodPost, srv.URL+"/api/rooms", authz, `{"name":"Math"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = doRequest(t, http.MethodPost, srv.URL+"/api/rooms", authz, `{"name":"Math"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestGetAndListRooms(t *testing.T) {
	srv, app := newTestServer(t)
	authz := bearerFor(t, "u-alice", "Alice")

	created, err := app.Create(context.Background(), auth.Identity{UserID: "u-alice", DisplayName: "Alice"}, CreateRoomRequest{Name: "Math"})
	require.NoError(t, err)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/rooms", authz, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var views []models.RoomView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&views))
	require.Len(t, views, 1)
	assert.Equal(t, created.ID, views[0].ID)

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/rooms/"+created.ID, authz, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/rooms/not-a-uuid", authz, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/rooms/00000000-0000-0000-0000-000000000000", authz, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestJoinRoomEndpoint(t *testing.T) {
	srv, app := newTestServer(t)

	created, err := app.Create(context.Background(), auth.Identity{UserID: "u-alice", DisplayName: "Alice"}, CreateRoomRequest{Name: "Math"})
	require.NoError(t, err)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/rooms/"+created.ID+"/join", bearerFor(t, "u-bob", "Bob"), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view models.RoomView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.Equal(t, 2, view.UserCount)
}

func TestRealtimeTokenEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/auth/realtime-token", bearerFor(t, "u-alice", "Alice"), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var token broadcast.ClientToken
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&token))
	assert.Equal(t, "u-alice", token.ClientID)
	assert.NotEmpty(t, token.Token)
	assert.Equal(t, []string{"subscribe"}, token.Capability[broadcast.ChannelRoomUpdates])

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/auth/realtime-token", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/npezzotti/harmony-hub/internal/config"
	"github.com/npezzotti/harmony-hub/internal/database"
	"github.com/npezzotti/harmony-hub/internal/server"
	"github.com/npezzotti/harmony-hub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(room server.RoomId, event string, payload any) int {
	return m.Called(room, event, payload).Int(0)
}

func (m *mockPublisher) PublishToMany(rooms []server.RoomId, event string, payload any) int {
	return m.Called(rooms, event, payload).Int(0)
}

type mockStatusUpdater struct {
	mock.Mock
}

func (m *mockStatusUpdater) UpdateStatus(_ context.Context, userId int, status string) error {
	return m.Called(userId, status).Error(0)
}

// statusUpdater returns the status mock installed by newTestApp.
func statusUpdater(app *HarmonyApp) *mockStatusUpdater {
	return app.statuses.(*mockStatusUpdater)
}

var testSigningKey = []byte("test-signing-key")

func newTestApp(t *testing.T, db database.HarmonyRepository) (*HarmonyApp, *mockPublisher) {
	app := NewHarmonyApp(http.NewServeMux(), testutil.TestLogger(t), nil, db, &config.Config{
		ServerAddr:     "localhost:0",
		SigningKey:     testSigningKey,
		AllowedOrigins: []string{"http://localhost:3000"},
	})

	pub := &mockPublisher{}
	app.relay = pub
	app.statuses = &mockStatusUpdater{}
	return app, pub
}

// authed builds a request carrying a bearer token for userId.
func authed(t *testing.T, app *HarmonyApp, req *http.Request, userId int) *http.Request {
	token, err := app.tokens.Issue(userId)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func serve(app *HarmonyApp, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	app.Handler().ServeHTTP(rr, req)
	return rr
}

func TestNewHarmonyApp(t *testing.T) {
	db := &database.MockHarmonyRepository{}
	cfg := &config.Config{
		ServerAddr:     "localhost:8080",
		SigningKey:     []byte("secret"),
		AllowedOrigins: []string{"http://localhost:3000"},
	}

	app := NewHarmonyApp(http.NewServeMux(), testutil.TestLogger(t), nil, db, cfg)

	assert.NotNil(t, app.srv, "expected http server to be initialized")
	assert.Equal(t, cfg.ServerAddr, app.srv.Addr, "expected server address to match config")
	assert.Equal(t, db, app.db, "expected db to be set")
	assert.NotNil(t, app.tokens, "expected token manager to be set")
	assert.Equal(t, cfg.AllowedOrigins, app.allowedOrigins)
	assert.Nil(t, app.relay, "expected no relay without a chat server")
	assert.Nil(t, app.statuses, "expected no status updater without a chat server")
}

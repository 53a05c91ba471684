package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"factortrader/internal/app"
	"factortrader/internal/domain"
	l1_service "factortrader/internal/service/l1"
	"factortrader/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/require"
)

type fakeCommandApp struct {
	received []string
}

func (f *fakeCommandApp) Execute(ctx context.Context, raw string) app.Response {
	f.received = append(f.received, raw)
	if raw == "bogus" {
		return app.Response{Type: domain.CommandError, Message: "Unknown command: \"bogus\"", Status: 400}
	}
	return app.Response{Type: domain.CommandHelp, Data: []string{"help"}, Message: "Commands:", Status: 200}
}

func (f *fakeCommandApp) Dispatch(ctx context.Context, cmd domain.Command) app.Response {
	return app.Response{Type: cmd.Type(), Status: 200}
}

func newTestEngine(secret string) (*gin.Engine, *fakeCommandApp) {
	gin.SetMode(gin.TestMode)
	commandApp := &fakeCommandApp{}
	handler := ApiHandler{
		CommandApp: commandApp,
		FactorService: l1_service.NewFactorService(
			testutil.NewInMemoryFactorRepository(testutil.NewFactor("Tech", testutil.Asset("AAPL", 1))),
			testutil.NewInMemoryAllocationRepository(),
		),
		JwtSecret: secret,
	}
	return handler.InitializeRouterEngine(), commandApp
}

func doRequest(engine *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func Test_command(t *testing.T) {
	t.Run("passes text through and uses the envelope status", func(t *testing.T) {
		engine, commandApp := newTestEngine("")

		w := doRequest(engine, "POST", "/command", map[string]string{"command": "help"}, nil)
		require.Equal(t, 200, w.Code)
		require.Equal(t, []string{"help"}, commandApp.received)
		body := decodeEnvelope(t, w)
		require.Equal(t, "help", body["type"])
		require.Equal(t, "Commands:", body["message"])
		require.NotEmpty(t, w.Header().Get("X-Request-ID"))

		w = doRequest(engine, "POST", "/command", map[string]string{"command": "bogus"}, nil)
		require.Equal(t, 400, w.Code)
		body = decodeEnvelope(t, w)
		require.Equal(t, "error", body["type"])
		require.Nil(t, body["data"])
	})

	t.Run("bad body still returns the envelope", func(t *testing.T) {
		engine, commandApp := newTestEngine("")

		w := doRequest(engine, "POST", "/command", map[string]int{"command": 5}, nil)
		require.Equal(t, 400, w.Code)
		require.Empty(t, commandApp.received)
		require.Equal(t, "error", decodeEnvelope(t, w)["type"])
	})
}

func signedToken(t *testing.T, secret string, expiresAt time.Time) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
		Subject:   "tester",
		ExpiresAt: expiresAt.Unix(),
	})
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func Test_authMiddleware(t *testing.T) {
	engine, _ := newTestEngine("shh")
	body := map[string]string{"command": "help"}

	w := doRequest(engine, "POST", "/command", body, nil)
	require.Equal(t, 401, w.Code)

	w = doRequest(engine, "POST", "/command", body, map[string]string{
		"Authorization": "Bearer " + signedToken(t, "wrong", time.Now().Add(time.Hour)),
	})
	require.Equal(t, 401, w.Code)

	w = doRequest(engine, "POST", "/command", body, map[string]string{
		"Authorization": "Bearer " + signedToken(t, "shh", time.Now().Add(-time.Hour)),
	})
	require.Equal(t, 401, w.Code)

	w = doRequest(engine, "POST", "/command", body, map[string]string{
		"Authorization": "Bearer " + signedToken(t, "shh", time.Now().Add(time.Hour)),
	})
	require.Equal(t, 200, w.Code)

	// health check stays open
	w = doRequest(engine, "GET", "/", nil, nil)
	require.Equal(t, 200, w.Code)
}

func Test_factors(t *testing.T) {
	engine, _ := newTestEngine("")

	w := doRequest(engine, "POST", "/factors", map[string]any{
		"name":   "Crypto Majors",
		"assets": []map[string]any{{"symbol": "BTC", "weight": "0.6", "type": "crypto"}, {"symbol": "ETH", "weight": "0.4", "type": "crypto"}},
	}, nil)
	require.Equal(t, 200, w.Code, w.Body.String())
	require.Equal(t, "crypto-majors", decodeEnvelope(t, w)["id"])

	w = doRequest(engine, "POST", "/factors", map[string]any{
		"name":   "Lopsided",
		"assets": []map[string]any{{"symbol": "BTC", "weight": "0.6"}},
	}, nil)
	require.Equal(t, 400, w.Code)
	require.Contains(t, decodeEnvelope(t, w)["error"], "60.00%")

	w = doRequest(engine, "GET", "/factors", nil, nil)
	require.Equal(t, 200, w.Code)
	list := []map[string]any{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 2)

	w = doRequest(engine, "PATCH", "/factors/tech", map[string]any{"color": "#ff0000"}, nil)
	require.Equal(t, 200, w.Code)
	require.Equal(t, "#ff0000", decodeEnvelope(t, w)["color"])

	w = doRequest(engine, "DELETE", "/factors/tech", nil, nil)
	require.Equal(t, 200, w.Code)

	w = doRequest(engine, "GET", "/factors/tech", nil, nil)
	require.Equal(t, 404, w.Code)
}

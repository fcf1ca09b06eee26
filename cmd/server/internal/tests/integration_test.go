package tests

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gorilla/websocket" // Using Gorilla for the test CLIENT
	"go.uber.org/zap"

	"github.com/Samane-mnejad/real-time-trading/cmd/server/internal/api"
	"github.com/Samane-mnejad/real-time-trading/cmd/server/internal/auth"
	"github.com/Samane-mnejad/real-time-trading/cmd/server/internal/gateway"
	"github.com/Samane-mnejad/real-time-trading/cmd/server/internal/hub"
	"github.com/Samane-mnejad/real-time-trading/cmd/server/internal/market"
)

func startServer(t *testing.T, tickInterval time.Duration) *httptest.Server {
	t.Helper()

	sessions := auth.NewMemoryStore(auth.DemoCredentials())
	rnd := market.RealRand{Rand: rand.New(rand.NewSource(time.Now().UnixNano()))}
	feed := market.NewFeed(zap.NewNop(), market.DefaultInstruments(), tickInterval, 30, market.RealClock{}, rnd)

	wsHub := hub.NewHub(zap.NewNop())
	feed.Subscribe(wsHub.BroadcastPrice)
	feed.Start()

	mux := http.NewServeMux()
	api.NewHandler(sessions, feed, zap.NewNop()).Register(mux)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		token := gateway.ExtractToken(r)
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			return
		}
		gateway.NewClient(conn, wsHub, sessions, feed, zap.NewNop()).Start(token)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		feed.Stop()
		wsHub.Shutdown()
		server.Close()
	})
	return server
}

func loginHTTP(t *testing.T, serverURL string) string {
	t.Helper()

	resp, err := http.Post(serverURL+"/api/auth/login", "application/json",
		bytes.NewBufferString(`{"email":"user-a@demo.com","password":"demo"}`))
	if err != nil {
		t.Fatalf("Login request failed: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Token == "" {
		t.Fatalf("Login did not yield a token: %v", err)
	}
	return body.Token
}

func wsURL(serverURL, suffix string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http") + suffix
}

func readFrame(t *testing.T, conn *websocket.Conn) (map[string]interface{}, error) {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Server sent non-JSON frame: %s", raw)
	}
	return decoded, nil
}

// readUntilType skips frames (e.g. interleaved price updates) until one
// with the wanted type arrives.
func readUntilType(t *testing.T, conn *websocket.Conn, msgType string) map[string]interface{} {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		frame, err := readFrame(t, conn)
		if err != nil {
			t.Fatalf("Connection died waiting for %q: %v", msgType, err)
		}
		if frame["type"] == msgType {
			return frame
		}
	}
	t.Fatalf("Never received a %q frame", msgType)
	return nil
}

func TestEndToEnd_NoTokenRejected(t *testing.T) {
	server := startServer(t, time.Hour)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server.URL, "/ws"), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	frame, err := readFrame(t, conn)
	if err != nil {
		t.Fatalf("Expected an error payload before close: %v", err)
	}
	if frame["error"] != "Authentication required" {
		t.Errorf("Unexpected rejection payload: %v", frame)
	}

	_, err = readFrame(t, conn)
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Errorf("Expected close code 1008, got %v", err)
	}
}

func TestEndToEnd_InvalidTokenRejected(t *testing.T) {
	server := startServer(t, time.Hour)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server.URL, "/ws?token=tok-bogus"), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	frame, err := readFrame(t, conn)
	if err != nil {
		t.Fatalf("Expected an error payload before close: %v", err)
	}
	if frame["error"] != "Invalid authentication token" {
		t.Errorf("Unexpected rejection payload: %v", frame)
	}

	_, err = readFrame(t, conn)
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Errorf("Expected close code 1008, got %v", err)
	}
}

func TestEndToEnd_HeaderTokenAccepted(t *testing.T) {
	server := startServer(t, time.Hour)
	token := loginHTTP(t, server.URL)

	header := http.Header{"Authorization": []string{"Bearer " + token}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server.URL, "/ws"), header)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	frame, err := readFrame(t, conn)
	if err != nil {
		t.Fatalf("Expected initial snapshot: %v", err)
	}
	if frame["type"] != "initialPrices" {
		t.Errorf("First frame must be the snapshot, got %v", frame["type"])
	}
}

func TestEndToEnd_FullFlow(t *testing.T) {
	server := startServer(t, 20*time.Millisecond)
	token := loginHTTP(t, server.URL)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server.URL, "/ws?token="+token), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	// Snapshot is always the first frame, even with the feed ticking fast
	first, err := readFrame(t, conn)
	if err != nil {
		t.Fatalf("Expected initial snapshot: %v", err)
	}
	if first["type"] != "initialPrices" {
		t.Fatalf("First frame must be initialPrices, got %v", first["type"])
	}
	if len(first["data"].([]interface{})) != 3 {
		t.Errorf("Snapshot must cover all supported tickers: %v", first["data"])
	}

	// Subscribe narrows fan-out to AAPL
	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"subscribe","tickers":["AAPL"]}`))
	ack := readUntilType(t, conn, "subscriptionSuccess")
	if tickers := ack["tickers"].([]interface{}); len(tickers) != 1 || tickers[0] != "AAPL" {
		t.Errorf("Expected interest set [AAPL], got %v", ack["tickers"])
	}

	sawUpdate := false
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		frame, err := readFrame(t, conn)
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if frame["type"] != "priceUpdate" {
			continue
		}
		sawUpdate = true
		data := frame["data"].(map[string]interface{})
		if data["ticker"] != "AAPL" {
			t.Fatalf("Subscribed to AAPL only, received %v", data["ticker"])
		}
	}
	if !sawUpdate {
		t.Fatal("Expected at least one AAPL update")
	}

	// Exhaustive unsubscribe reverts to wildcard
	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"unsubscribe","tickers":["AAPL"]}`))
	ack = readUntilType(t, conn, "unsubscriptionSuccess")
	if tickers, ok := ack["tickers"].([]interface{}); ok && len(tickers) != 0 {
		t.Errorf("Expected empty interest set, got %v", tickers)
	}

	seen := map[string]bool{}
	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && len(seen) < 3 {
		frame, err := readFrame(t, conn)
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if frame["type"] == "priceUpdate" {
			seen[frame["data"].(map[string]interface{})["ticker"].(string)] = true
		}
	}
	if len(seen) < 3 {
		t.Errorf("Wildcard connection should see every ticker again, saw %v", seen)
	}
}

func TestEndToEnd_ProtocolErrorsKeepConnectionOpen(t *testing.T) {
	server := startServer(t, time.Hour)
	token := loginHTTP(t, server.URL)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server.URL, "/ws?token="+token), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	readUntilType(t, conn, "initialPrices")

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type": "subsc`))
	frame, err := readFrame(t, conn)
	if err != nil {
		t.Fatalf("Expected error frame: %v", err)
	}
	if frame["error"] != "Invalid message format" {
		t.Errorf("Unexpected error payload: %v", frame)
	}

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"teleport"}`))
	frame, err = readFrame(t, conn)
	if err != nil {
		t.Fatalf("Expected error frame: %v", err)
	}
	if frame["error"] != "Unknown message type" {
		t.Errorf("Unexpected error payload: %v", frame)
	}

	// Still in business
	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"subscribe","tickers":["TSLA"]}`))
	readUntilType(t, conn, "subscriptionSuccess")
}

func TestEndToEnd_LogoutKillsNextConnect(t *testing.T) {
	server := startServer(t, time.Hour)
	token := loginHTTP(t, server.URL)

	req, _ := http.NewRequest("POST", server.URL+"/api/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	resp.Body.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server.URL, "/ws?token="+token), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	frame, err := readFrame(t, conn)
	if err != nil {
		t.Fatalf("Expected rejection payload: %v", err)
	}
	if frame["error"] != "Invalid authentication token" {
		t.Errorf("Logged-out token should be rejected, got %v", frame)
	}
}

package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"github.com/veritas-ledger/gateway/internal/blocks"
	"github.com/veritas-ledger/gateway/internal/codec"
	"github.com/veritas-ledger/gateway/internal/config"
	"github.com/veritas-ledger/gateway/internal/datamodel"
	"github.com/veritas-ledger/gateway/internal/events"
	"github.com/veritas-ledger/gateway/internal/ledger"
	"github.com/veritas-ledger/gateway/internal/logging"
	"github.com/veritas-ledger/gateway/internal/metrics"
	"github.com/veritas-ledger/gateway/internal/pipeline"
	"github.com/veritas-ledger/gateway/internal/queue"
	"github.com/veritas-ledger/gateway/internal/respond"
	"github.com/veritas-ledger/gateway/internal/signature"
	"github.com/veritas-ledger/gateway/pkg/testutil"
)

const testAdminSecret = "gateway-test-secret"

type testGateway struct {
	server *httptest.Server
	kp     testutil.Keypair
	world  *ledger.World
	queue  *queue.Queue
	broker *events.Broker
	chain  *blocks.Store
}

func newTestGateway(t *testing.T) *testGateway {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{
			Address:       ":0",
			MaxContentLen: 1 << 20,
		},
		Protocol: config.ProtocolConfig{SupportedVersions: []uint8{1}},
		Queue:    config.QueueConfig{Capacity: 16, TransactionTTL: time.Hour},
		Events:   config.EventsConfig{BufferSize: 8, AckTimeout: time.Minute},
		CORS:     config.CORSConfig{AllowedOrigins: []string{"*"}},
		Admin:    config.AdminConfig{JWTSecret: testAdminSecret},
	}

	kp := testutil.NewKeypair(t)
	world := testutil.SeededWorld(kp.Public)
	log := logging.NewNop()
	m := metrics.New()

	pipe := pipeline.New(cfg.Protocol.SupportedVersions,
		signature.Ed25519Verifier{Keys: world}, pipeline.DomainScopeJudge{}, world, log, m)
	q := queue.New(cfg.Queue.Capacity, cfg.Queue.TransactionTTL)
	broker := events.NewBroker(cfg.Events.BufferSize)
	t.Cleanup(broker.Close)
	chain := blocks.NewStore(broker)

	h := NewHandler(cfg, log, m, pipe, q, broker, chain)
	server := httptest.NewServer(NewRouter(h))
	t.Cleanup(server.Close)
	t.Cleanup(h.Close)

	return &testGateway{server: server, kp: kp, world: world, queue: q, broker: broker, chain: chain}
}

func (g *testGateway) post(t *testing.T, path string, body []byte) *http.Response {
	t.Helper()
	resp, err := http.Post(g.server.URL+path, codec.ContentType, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) respond.Body {
	t.Helper()
	defer resp.Body.Close()
	var body respond.Body
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func TestSubmitTransaction(t *testing.T) {
	g := newTestGateway(t)
	raw := testutil.SignedTransaction(t, g.kp, testutil.Alice, 1)

	resp := g.post(t, "/transaction", raw)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var ack map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	resp.Body.Close()
	if ack["hash"] == "" {
		t.Error("ack is missing the transaction hash")
	}
	if g.queue.Len() != 1 {
		t.Errorf("queue length = %d, want 1", g.queue.Len())
	}

	// The same envelope again is a duplicate.
	resp = g.post(t, "/transaction", raw)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("duplicate status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSubmitTransaction_Failures(t *testing.T) {
	g := newTestGateway(t)
	stranger := testutil.NewKeypair(t)

	tests := []struct {
		name   string
		body   []byte
		status int
		code   string
	}{
		{
			name:   "garbage",
			body:   []byte("garbage"),
			status: http.StatusBadRequest,
			code:   "MALFORMED",
		},
		{
			name:   "unsupported version",
			body:   testutil.SignedTransaction(t, g.kp, testutil.Alice, 9),
			status: http.StatusBadRequest,
			code:   "MALFORMED",
		},
		{
			name:   "unknown signer",
			body:   testutil.SignedTransaction(t, stranger, testutil.Alice, 1),
			status: http.StatusUnauthorized,
			code:   "UNAUTHENTICATED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := g.post(t, "/transaction", tt.body)
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if body := decodeBody(t, resp); body.Code != tt.code {
				t.Errorf("code = %q, want %q", body.Code, tt.code)
			}
		})
	}
}

func TestExecuteQuery(t *testing.T) {
	g := newTestGateway(t)
	target := datamodel.AssetID{Definition: testutil.Roses, Account: testutil.Alice}
	raw := testutil.SignedQuery(t, g.kp, testutil.FindAsset(testutil.Alice, target), 1)

	resp := g.post(t, "/query", raw)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != codec.ContentType {
		t.Errorf("content type = %q, want %q", ct, codec.ContentType)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	result, err := codec.DecodeQueryResult(buf.Bytes())
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(result.Objects) != 1 || result.Objects[0].Asset.Quantity != 42 {
		t.Errorf("result = %+v, want the seeded asset", result)
	}
}

func TestExecuteQuery_NotFoundHint(t *testing.T) {
	g := newTestGateway(t)
	missing := datamodel.AssetID{
		Definition: testutil.Roses,
		Account:    datamodel.AccountID{Name: "bob", Domain: "wonderland"},
	}
	raw := testutil.SignedQuery(t, g.kp, testutil.FindAsset(testutil.Alice, missing), 1)

	resp := g.post(t, "/query", raw)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body.Hint != "account" {
		t.Errorf("hint = %q, want account", body.Hint)
	}
}

func TestExecuteQuery_DenialLooksLikeAbsence(t *testing.T) {
	g := newTestGateway(t)
	foreign := datamodel.AssetID{
		Definition: datamodel.AssetDefinitionID{Name: "bread", Domain: "bakery"},
		Account:    datamodel.AccountID{Name: "bob", Domain: "bakery"},
	}
	raw := testutil.SignedQuery(t, g.kp, testutil.FindAsset(testutil.Alice, foreign), 1)

	resp := g.post(t, "/query", raw)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body.Code != "NOT_FOUND" || body.Hint != "" {
		t.Errorf("body = %+v, want bare NOT_FOUND without hint", body)
	}
}

func TestExecuteQuery_BadPagination(t *testing.T) {
	g := newTestGateway(t)
	target := datamodel.AssetID{Definition: testutil.Roses, Account: testutil.Alice}
	raw := testutil.SignedQuery(t, g.kp, testutil.FindAsset(testutil.Alice, target), 1)

	for _, qs := range []string{"?start=abc", "?start=-1", "?limit=0"} {
		resp := g.post(t, "/query"+qs, raw)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", qs, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestPendingTransactions(t *testing.T) {
	g := newTestGateway(t)

	resp := g.post(t, "/transaction", testutil.SignedTransaction(t, g.kp, testutil.Alice, 1))
	resp.Body.Close()

	resp, err := http.Get(g.server.URL + "/pending_transactions")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	txs, err := codec.DecodeTransactions(buf.Bytes())
	if err != nil {
		t.Fatalf("decode pending transactions: %v", err)
	}
	if len(txs) != 1 || txs[0].Payload.Authority != testutil.Alice {
		t.Errorf("pending = %+v, want the one submitted transaction", txs)
	}
}

func TestHealthAndStatus(t *testing.T) {
	g := newTestGateway(t)

	resp, err := http.Get(g.server.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}

	resp2, err := http.Get(g.server.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	var status map[string]interface{}
	if err := json.NewDecoder(resp2.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if _, ok := status["pending_transactions"]; !ok {
		t.Errorf("status body = %v, want pending_transactions", status)
	}
}

func adminToken(t *testing.T, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ops",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func TestConfiguration(t *testing.T) {
	g := newTestGateway(t)

	resp, err := http.Get(g.server.URL + "/configuration?field=queue.capacity")
	if err != nil {
		t.Fatal(err)
	}
	var field struct {
		Field string          `json:"field"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&field); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if string(field.Value) != "16" {
		t.Errorf("queue.capacity = %s, want 16", field.Value)
	}

	resp, err = http.Get(g.server.URL + "/configuration?field=no.such.field")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown field status = %d, want 404", resp.StatusCode)
	}
}

func TestConfigurationUpdate(t *testing.T) {
	g := newTestGateway(t)
	t.Cleanup(func() { logging.SetGlobalLevel("info") })

	update := strings.NewReader(`{"log_level":"debug"}`)

	// Without a token the update is rejected.
	resp, err := http.Post(g.server.URL+"/configuration", "application/json", update)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated update status = %d, want 401", resp.StatusCode)
	}

	req, err := http.NewRequest(http.MethodPost, g.server.URL+"/configuration",
		strings.NewReader(`{"log_level":"debug"}`))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+adminToken(t, testAdminSecret))
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("authorized update status = %d, want 200", resp.StatusCode)
	}
	if got := logging.GlobalLevel(); got != "debug" {
		t.Errorf("global level = %q, want debug", got)
	}

	// A bad level is a client error even with a valid token.
	req, _ = http.NewRequest(http.MethodPost, g.server.URL+"/configuration",
		strings.NewReader(`{"log_level":"chatty"}`))
	req.Header.Set("Authorization", "Bearer "+adminToken(t, testAdminSecret))
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad level status = %d, want 400", resp.StatusCode)
	}
}

func TestEventsWebsocket(t *testing.T) {
	g := newTestGateway(t)

	wsURL := "ws" + strings.TrimPrefix(g.server.URL, "http") + "/events"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	if err := ws.WriteJSON(map[string]interface{}{"type": "subscription_request"}); err != nil {
		t.Fatal(err)
	}
	var accepted struct {
		Type string `json:"type"`
	}
	if err := ws.ReadJSON(&accepted); err != nil {
		t.Fatal(err)
	}
	if accepted.Type != "subscription_accepted" {
		t.Fatalf("handshake reply = %q, want subscription_accepted", accepted.Type)
	}

	// Submitting a transaction publishes a queued event to the stream.
	resp := g.post(t, "/transaction", testutil.SignedTransaction(t, g.kp, testutil.Alice, 1))
	resp.Body.Close()

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var delivery struct {
		Type  string `json:"type"`
		Event struct {
			Sequence uint64 `json:"sequence"`
			Kind     string `json:"kind"`
			Origin   string `json:"origin"`
		} `json:"event"`
	}
	if err := ws.ReadJSON(&delivery); err != nil {
		t.Fatal(err)
	}
	if delivery.Type != "event" || delivery.Event.Kind != "transaction_queued" {
		t.Fatalf("delivery = %+v, want a transaction_queued event", delivery)
	}
	if delivery.Event.Origin != "alice@wonderland" {
		t.Errorf("origin = %q, want alice@wonderland", delivery.Event.Origin)
	}

	if err := ws.WriteJSON(map[string]interface{}{
		"type":     "event_received",
		"sequence": delivery.Event.Sequence,
	}); err != nil {
		t.Fatal(err)
	}
}

func TestBlockStreamWebsocket(t *testing.T) {
	g := newTestGateway(t)
	g.chain.Append(blocks.Block{Hash: "aa"})
	g.chain.Append(blocks.Block{Hash: "bb"})

	wsURL := "ws" + strings.TrimPrefix(g.server.URL, "http") + "/block_stream"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))

	if err := ws.WriteJSON(map[string]interface{}{
		"type":        "block_subscription_request",
		"from_height": 2,
	}); err != nil {
		t.Fatal(err)
	}
	var accepted struct {
		Type string `json:"type"`
	}
	if err := ws.ReadJSON(&accepted); err != nil {
		t.Fatal(err)
	}
	if accepted.Type != "block_subscription_accepted" {
		t.Fatalf("handshake reply = %q, want block_subscription_accepted", accepted.Type)
	}

	var delivery struct {
		Type  string `json:"type"`
		Block struct {
			Height   uint64 `json:"height"`
			Hash     string `json:"hash"`
			PrevHash string `json:"prev_hash"`
		} `json:"block"`
	}
	if err := ws.ReadJSON(&delivery); err != nil {
		t.Fatal(err)
	}
	if delivery.Type != "block" || delivery.Block.Height != 2 || delivery.Block.Hash != "bb" {
		t.Fatalf("delivery = %+v, want block at height 2", delivery)
	}
	if delivery.Block.PrevHash != "aa" {
		t.Errorf("prev_hash = %q, want aa", delivery.Block.PrevHash)
	}

	if err := ws.WriteJSON(map[string]interface{}{
		"type":   "block_received",
		"height": delivery.Block.Height,
	}); err != nil {
		t.Fatal(err)
	}

	// A block committed after the stream caught up is delivered too.
	g.chain.Append(blocks.Block{Hash: "cc"})
	if err := ws.ReadJSON(&delivery); err != nil {
		t.Fatal(err)
	}
	if delivery.Block.Height != 3 || delivery.Block.Hash != "cc" {
		t.Fatalf("delivery = %+v, want block at height 3", delivery)
	}
}

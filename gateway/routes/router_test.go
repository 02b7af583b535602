package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"vaultchain/config"
	"vaultchain/core"
	"vaultchain/core/chain"
	"vaultchain/gateway/middleware"
)

func newTestRouter(t *testing.T, allowClock bool) (http.Handler, *core.Node) {
	t.Helper()
	node, err := core.NewNode(config.Default(), nil, core.WithClock(chain.NewSimClock(1_700_000_000)))
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	handler, err := New(Config{
		Node:              node,
		Observability:     middleware.NewObservability(middleware.ObservabilityConfig{Enabled: true}, nil),
		AllowClockControl: allowClock,
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	return handler, node
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	return res
}

func mustStatus(t *testing.T, res *httptest.ResponseRecorder, want int) {
	t.Helper()
	if res.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, res.Code, res.Body.String())
	}
}

func fundAndDeposit(t *testing.T, h http.Handler, amount string) {
	t.Helper()
	mustStatus(t, do(t, h, http.MethodPost, "/v1/faucet", map[string]string{"recipient": "@alice", "amount": amount}), http.StatusOK)
	mustStatus(t, do(t, h, http.MethodPost, "/v1/approve", map[string]string{"caller": "@alice", "amount": amount}), http.StatusOK)
	res := do(t, h, http.MethodPost, "/v1/deposit", map[string]string{"caller": "@alice", "amount": amount})
	mustStatus(t, res, http.StatusOK)
	var out map[string]Amount
	if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode deposit: %v", err)
	}
	if out["shares"].Units != amount {
		t.Fatalf("expected %s shares, got %+v", amount, out["shares"])
	}
}

func TestHealthAndMetrics(t *testing.T) {
	h, _ := newTestRouter(t, false)
	res := do(t, h, http.MethodGet, "/healthz", nil)
	mustStatus(t, res, http.StatusOK)
	if res.Header().Get(middleware.RequestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
	res = do(t, h, http.MethodGet, "/metrics", nil)
	mustStatus(t, res, http.StatusOK)
	if !strings.Contains(res.Body.String(), "gateway_requests_total") {
		t.Fatalf("expected gateway metrics in exposition")
	}
}

func TestDepositHarvestAndQuery(t *testing.T) {
	h, _ := newTestRouter(t, true)
	fundAndDeposit(t, h, "1000")

	mustStatus(t, do(t, h, http.MethodPost, "/v1/clock/advance", map[string]uint64{"seconds": 60, "blocks": 1}), http.StatusOK)
	res := do(t, h, http.MethodPost, "/v1/harvest", map[string]string{"caller": "@strategist"})
	mustStatus(t, res, http.StatusOK)

	res = do(t, h, http.MethodGet, "/v1/vault", nil)
	mustStatus(t, res, http.StatusOK)
	var summary vaultView
	if err := json.Unmarshal(res.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode vault: %v", err)
	}
	if summary.TotalDebt.Units != "1000" || summary.TotalIdle.Raw != "0" {
		t.Fatalf("unexpected vault view: %+v", summary)
	}
	if summary.PricePerShare.Units != "1" {
		t.Fatalf("unexpected price per share: %+v", summary.PricePerShare)
	}

	res = do(t, h, http.MethodGet, "/v1/strategy?callCost=0.01", nil)
	mustStatus(t, res, http.StatusOK)
	var strat strategyView
	if err := json.Unmarshal(res.Body.Bytes(), &strat); err != nil {
		t.Fatalf("decode strategy: %v", err)
	}
	if strat.Params == nil || strat.Params.DebtRatio != 10_000 {
		t.Fatalf("unexpected strategy params: %+v", strat.Params)
	}

	res = do(t, h, http.MethodGet, "/v1/reports?limit=5", nil)
	mustStatus(t, res, http.StatusOK)
	var reports []reportView
	if err := json.Unmarshal(res.Body.Bytes(), &reports); err != nil {
		t.Fatalf("decode reports: %v", err)
	}
	if len(reports) != 1 || reports[0].Seq != 0 {
		t.Fatalf("unexpected reports: %+v", reports)
	}

	res = do(t, h, http.MethodGet, "/v1/accounts/@alice", nil)
	mustStatus(t, res, http.StatusOK)
	var account accountView
	if err := json.Unmarshal(res.Body.Bytes(), &account); err != nil {
		t.Fatalf("decode account: %v", err)
	}
	if account.Shares.Units != "1000" || account.Want.Raw != "0" {
		t.Fatalf("unexpected account: %+v", account)
	}
}

func TestRevertMapsToConflict(t *testing.T) {
	h, node := newTestRouter(t, true)
	fundAndDeposit(t, h, "1000")
	mustStatus(t, do(t, h, http.MethodPost, "/v1/harvest", map[string]string{"caller": "@strategist"}), http.StatusOK)
	before := node.VaultSummary()

	res := do(t, h, http.MethodPost, "/v1/withdraw", map[string]any{"caller": "@alice", "maxLossBps": 0})
	mustStatus(t, res, http.StatusConflict)
	var out errorResponse
	if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if out.Error != "loss exceeds maxLoss" {
		t.Fatalf("unexpected revert reason %q", out.Error)
	}
	if after := node.VaultSummary(); after.TotalDebt.Cmp(before.TotalDebt) != 0 {
		t.Fatalf("expected reverted withdraw to leave debt untouched")
	}

	res = do(t, h, http.MethodPost, "/v1/debt-ratio", map[string]any{"caller": "@alice", "debtRatio": 5_000})
	mustStatus(t, res, http.StatusConflict)
}

func TestFeeRoutes(t *testing.T) {
	h, node := newTestRouter(t, true)
	fundAndDeposit(t, h, "1000")
	mustStatus(t, do(t, h, http.MethodPost, "/v1/harvest", map[string]string{"caller": "@strategist"}), http.StatusOK)

	mustStatus(t, do(t, h, http.MethodPost, "/v1/fees", map[string]any{"caller": "@governance", "performanceBps": 500}), http.StatusOK)
	summary := node.VaultSummary()
	if summary.PerformanceFee != 500 || summary.ManagementFee != 200 {
		t.Fatalf("unexpected fees: performance=%d management=%d", summary.PerformanceFee, summary.ManagementFee)
	}
	mustStatus(t, do(t, h, http.MethodPost, "/v1/fees", map[string]any{"caller": "@alice", "managementBps": 0}), http.StatusConflict)
	mustStatus(t, do(t, h, http.MethodPost, "/v1/fees", map[string]any{"caller": "@governance", "performanceBps": 6_000}), http.StatusConflict)
	mustStatus(t, do(t, h, http.MethodPost, "/v1/fees", map[string]any{"caller": "@governance"}), http.StatusBadRequest)
	if node.VaultSummary().PerformanceFee != 500 {
		t.Fatalf("rejected fee update must not apply")
	}

	mustStatus(t, do(t, h, http.MethodPost, "/v1/clock/advance", map[string]uint64{"seconds": 3_600, "blocks": 1}), http.StatusOK)
	res := do(t, h, http.MethodPost, "/v1/claim-fees", map[string]string{"caller": "@keeper"})
	mustStatus(t, res, http.StatusOK)
	var out map[string]Amount
	if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode claim: %v", err)
	}
	if _, ok := out["claimed"]; !ok {
		t.Fatalf("expected claimed amount, got %s", res.Body.String())
	}
	mustStatus(t, do(t, h, http.MethodPost, "/v1/claim-fees", map[string]string{"caller": "@alice"}), http.StatusConflict)
}

func TestSweepStrayToken(t *testing.T) {
	h, node := newTestRouter(t, true)
	mustStatus(t, do(t, h, http.MethodPost, "/v1/faucet", map[string]string{"recipient": "@strategy", "amount": "2.5", "token": "WETH"}), http.StatusOK)

	mustStatus(t, do(t, h, http.MethodPost, "/v1/sweep", map[string]string{"caller": "@alice", "token": "WETH"}), http.StatusConflict)
	res := do(t, h, http.MethodPost, "/v1/sweep", map[string]string{"caller": "@governance", "token": "weth"})
	mustStatus(t, res, http.StatusOK)
	var out struct {
		Token  string `json:"token"`
		Amount Amount `json:"amount"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode sweep: %v", err)
	}
	if out.Token != "WETH" || out.Amount.Units != "2.5" {
		t.Fatalf("unexpected sweep %+v", out)
	}
	weth, err := node.LookupToken("WETH")
	if err != nil {
		t.Fatalf("lookup weth: %v", err)
	}
	held, err := node.TokenBalance(weth.Address, core.StrategyAddress)
	if err != nil || held.Sign() != 0 {
		t.Fatalf("strategy still holds %v (%v)", held, err)
	}

	mustStatus(t, do(t, h, http.MethodPost, "/v1/sweep", map[string]string{"caller": "@governance", "token": "WANT"}), http.StatusConflict)
	mustStatus(t, do(t, h, http.MethodPost, "/v1/sweep", map[string]string{"caller": "@governance", "token": "DAI"}), http.StatusBadRequest)
	mustStatus(t, do(t, h, http.MethodPost, "/v1/faucet", map[string]string{"recipient": "@alice", "amount": "1", "token": "DAI"}), http.StatusBadRequest)
	mustStatus(t, do(t, h, http.MethodPost, "/v1/faucet", map[string]string{"recipient": "@alice", "amount": "1", "token": "yvWANT"}), http.StatusConflict)
}

func TestBadRequests(t *testing.T) {
	h, _ := newTestRouter(t, false)
	cases := []struct {
		name string
		path string
		body any
	}{
		{"unknown field", "/v1/deposit", map[string]string{"caller": "@alice", "amount": "1", "extra": "x"}},
		{"bad caller", "/v1/deposit", map[string]string{"caller": "0x12", "amount": "1"}},
		{"too precise", "/v1/deposit", map[string]string{"caller": "@alice", "amount": "0.0000000000000000001"}},
		{"negative", "/v1/deposit", map[string]string{"caller": "@alice", "amount": "-1"}},
		{"empty body", "/v1/harvest", nil},
		{"unknown module", "/v1/pause", map[string]any{"caller": "@governance", "module": "bank", "paused": true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mustStatus(t, do(t, h, http.MethodPost, tc.path, tc.body), http.StatusBadRequest)
		})
	}
	mustStatus(t, do(t, h, http.MethodGet, "/v1/reports?limit=-1", nil), http.StatusBadRequest)
}

func TestClockRoutesRequireOptIn(t *testing.T) {
	h, _ := newTestRouter(t, false)
	mustStatus(t, do(t, h, http.MethodPost, "/v1/clock/advance", map[string]uint64{"seconds": 1}), http.StatusNotFound)
	mustStatus(t, do(t, h, http.MethodPost, "/v1/faucet", map[string]string{"recipient": "@alice", "amount": "1"}), http.StatusNotFound)
}

func TestTradeRoutes(t *testing.T) {
	h, _ := newTestRouter(t, true)
	fundAndDeposit(t, h, "1000")
	mustStatus(t, do(t, h, http.MethodPost, "/v1/harvest", map[string]string{"caller": "@strategist"}), http.StatusOK)

	res := do(t, h, http.MethodPost, "/v1/trades", map[string]string{})
	mustStatus(t, res, http.StatusConflict)

	mustStatus(t, do(t, h, http.MethodPost, "/v1/clock/advance", map[string]uint64{"seconds": 3_600, "blocks": 1}), http.StatusOK)
	mustStatus(t, do(t, h, http.MethodPost, "/v1/claim-rewards", map[string]string{"caller": "@keeper"}), http.StatusOK)
	res = do(t, h, http.MethodPost, "/v1/trades", map[string]string{})
	mustStatus(t, res, http.StatusOK)
	var trade tradeView
	if err := json.Unmarshal(res.Body.Bytes(), &trade); err != nil {
		t.Fatalf("decode trade: %v", err)
	}
	if trade.ID == "" || trade.AmountOut.Raw == "0" {
		t.Fatalf("unexpected trade: %+v", trade)
	}

	res = do(t, h, http.MethodGet, "/v1/trades", nil)
	mustStatus(t, res, http.StatusOK)
	var trades []tradeView
	if err := json.Unmarshal(res.Body.Bytes(), &trades); err != nil {
		t.Fatalf("decode trades: %v", err)
	}
	if len(trades) != 1 || trades[0].ID != trade.ID {
		t.Fatalf("unexpected trade history: %+v", trades)
	}
}

func TestEventStream(t *testing.T) {
	h, node := newTestRouter(t, true)
	server := httptest.NewServer(h)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/events/ws?types=vault."
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	for node.Subscribers() == 0 {
		select {
		case <-ctx.Done():
			t.Fatalf("subscriber never registered")
		case <-time.After(10 * time.Millisecond):
		}
	}
	fundAndDeposit(t, h, "5")

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var evt eventPayload
	if err := json.Unmarshal(data, &evt); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if evt.Type != "vault.deposit" || evt.Height == 0 || evt.Attributes["amount"] != "5000000000000000000" {
		t.Fatalf("unexpected event: %+v", evt)
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		raw      string
		decimals uint8
		want     string
		ok       bool
	}{
		{"1", 18, "1000000000000000000", true},
		{"1_000.5", 6, "1000500000", true},
		{"0.1234567", 6, "", false},
		{"", 6, "", false},
		{"abc", 6, "", false},
	}
	for _, tc := range cases {
		got, err := parseAmount("amount", tc.raw, tc.decimals)
		if tc.ok != (err == nil) {
			t.Fatalf("%q: unexpected error state: %v", tc.raw, err)
		}
		if tc.ok && got.String() != tc.want {
			t.Fatalf("%q: expected %s, got %s", tc.raw, tc.want, got)
		}
	}
	if got := newAmount(nil, 18); got.Raw != "0" || got.Units != "0" {
		t.Fatalf("unexpected zero amount: %+v", got)
	}
}

package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"evregistry/core"
	"evregistry/native/bond"
	"evregistry/native/roles"
	"evregistry/storage"
)

const testAuthToken = "test-rpc-token"

type rpcHarness struct {
	server     *Server
	registry   *core.Registry
	government [20]byte
	maker      [20]byte
	supplier   [20]byte
	consumer   [20]byte
}

func newHarness(t *testing.T) *rpcHarness {
	t.Helper()
	t.Setenv("EVR_RPC_TOKEN", testAuthToken)

	registry := core.NewRegistry(storage.NewMemDB(), core.Config{CollateralFiat: "5000"})
	oracle := bond.NewManualOracle()
	oracle.Set(bond.CollateralCurrency, bond.NativeCurrency, big.NewRat(2000, 1), time.Now())
	registry.SetOracle(oracle)

	h := &rpcHarness{
		registry:   registry,
		government: addrByte(0x01),
		maker:      addrByte(0x02),
		supplier:   addrByte(0x03),
		consumer:   addrByte(0x04),
	}
	require.NoError(t, registry.Bootstrap(h.government))
	require.NoError(t, registry.GrantRole(h.government, roles.RoleSupplier, h.supplier))
	require.NoError(t, registry.GrantRole(h.government, roles.RoleConsumer, h.consumer))

	hub := NewEventHub()
	registry.SetEmitter(hub)
	h.server = NewServer(registry, hub)
	return h
}

func addrByte(fill byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = fill
	}
	return out
}

func (h *rpcHarness) call(t *testing.T, authed bool, method string, params interface{}) *RPCResponse {
	t.Helper()
	payload := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		payload["params"] = []interface{}{params}
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(string(body)))
	if authed {
		req.Header.Set("Authorization", "Bearer "+testAuthToken)
	}
	rec := httptest.NewRecorder()
	h.server.handle(rec, req)

	resp := &RPCResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), resp))
	return resp
}

func resultField(t *testing.T, resp *RPCResponse, key string) interface{} {
	t.Helper()
	require.Nil(t, resp.Error, "unexpected rpc error: %+v", resp.Error)
	obj, ok := resp.Result.(map[string]interface{})
	require.True(t, ok, "result is not an object: %T", resp.Result)
	value, ok := obj[key]
	require.True(t, ok, "result missing %q: %v", key, obj)
	return value
}

func TestMutationsRequireBearerToken(t *testing.T) {
	h := newHarness(t)

	params := map[string]string{
		"caller":       formatAddress(h.government),
		"manufacturer": formatAddress(h.maker),
	}
	resp := h.call(t, false, "roles_addManufacturer", params)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	resp = h.call(t, true, "roles_addManufacturer", params)
	require.Nil(t, resp.Error)
	require.Equal(t, true, resultField(t, resp, "added"))
}

func TestReadsOpenWithoutToken(t *testing.T) {
	h := newHarness(t)

	resp := h.call(t, false, "roles_has", map[string]string{
		"role":      roles.RoleGovernment,
		"principal": formatAddress(h.government),
	})
	require.Equal(t, true, resultField(t, resp, "hasRole"))

	resp = h.call(t, false, "bond_minimumDeposit", nil)
	require.Equal(t, "2500000000000000000", resultField(t, resp, "minimumDeposit"))
}

func TestComplianceFlowOverRPC(t *testing.T) {
	h := newHarness(t)
	maker := formatAddress(h.maker)

	resp := h.call(t, true, "roles_addManufacturer", map[string]string{
		"caller":       formatAddress(h.government),
		"manufacturer": maker,
	})
	require.Nil(t, resp.Error)

	resp = h.call(t, true, "bond_deposit", map[string]string{
		"caller": maker,
		"amount": "2500000000000000000",
	})
	require.Equal(t, "2500000000000000000", resultField(t, resp, "balance"))

	resp = h.call(t, true, "bond_lock", map[string]string{"caller": maker})
	require.Equal(t, true, resultField(t, resp, "locked"))

	resp = h.call(t, true, "passport_mint", map[string]string{
		"caller":            maker,
		"tokenId":           "BAT-0001",
		"batteryModel":      "LFP-72",
		"batteryType":       "LiFePO4",
		"productName":       "PowerCell 72",
		"manufacturingSite": "Sunderland",
		"offChainDataHash":  "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG",
	})
	require.Equal(t, "BAT-0001", resultField(t, resp, "tokenId"))
	require.Equal(t, maker, resultField(t, resp, "owner"))

	resp = h.call(t, false, "passport_view", map[string]string{
		"caller":  formatAddress(h.consumer),
		"tokenId": "BAT-0001",
	})
	require.Equal(t, "LFP-72", resultField(t, resp, "batteryModel"))
	require.Equal(t, false, resultField(t, resp, "recycled"))

	resp = h.call(t, false, "passport_ownerOf", map[string]string{"tokenId": "BAT-0001"})
	require.Equal(t, maker, resultField(t, resp, "owner"))

	resp = h.call(t, false, "passport_tokensOf", map[string]string{"principal": maker})
	require.Equal(t, []interface{}{"BAT-0001"}, resultField(t, resp, "tokens"))
}

func TestMintBatchOverRPC(t *testing.T) {
	h := newHarness(t)
	maker := formatAddress(h.maker)
	lockManufacturer(t, h)

	resp := h.call(t, true, "passport_mintBatch", map[string]interface{}{
		"caller":             maker,
		"tokenIds":           []string{"BAT-A", "BAT-B"},
		"batteryModels":      []string{"LFP-72", "LFP-72"},
		"batteryTypes":       []string{"LiFePO4", "LiFePO4"},
		"productNames":       []string{"PowerCell 72", "PowerCell 72"},
		"manufacturingSites": []string{"Sunderland", "Sunderland"},
		"offChainDataHashes": []string{"hash-a", "hash-b"},
	})
	minted, ok := resultField(t, resp, "minted").([]interface{})
	require.True(t, ok)
	require.Len(t, minted, 2)

	resp = h.call(t, false, "passport_tokensOf", map[string]string{"principal": maker})
	require.Equal(t, []interface{}{"BAT-A", "BAT-B"}, resultField(t, resp, "tokens"))
}

func TestMintBatchRejectsLengthMismatch(t *testing.T) {
	h := newHarness(t)
	lockManufacturer(t, h)

	resp := h.call(t, true, "passport_mintBatch", map[string]interface{}{
		"caller":             formatAddress(h.maker),
		"tokenIds":           []string{"BAT-A", "BAT-B"},
		"batteryModels":      []string{"LFP-72"},
		"batteryTypes":       []string{"LiFePO4", "LiFePO4"},
		"productNames":       []string{"PowerCell 72", "PowerCell 72"},
		"manufacturingSites": []string{"Sunderland", "Sunderland"},
		"offChainDataHashes": []string{"hash-a", "hash-b"},
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeInvalidParams, resp.Error.Code)

	resp = h.call(t, false, "passport_tokensOf", map[string]string{"principal": formatAddress(h.maker)})
	require.Equal(t, []interface{}{}, resultField(t, resp, "tokens"))
}

func TestErrorCodeMapping(t *testing.T) {
	h := newHarness(t)
	maker := formatAddress(h.maker)

	resp := h.call(t, true, "roles_addManufacturer", map[string]string{
		"caller":       formatAddress(h.government),
		"manufacturer": maker,
	})
	require.Nil(t, resp.Error)

	// Mint before the deposit is locked.
	resp = h.call(t, true, "passport_mint", map[string]string{
		"caller":  maker,
		"tokenId": "BAT-0001",
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeForbidden, resp.Error.Code)

	// Lock with an insufficient balance.
	resp = h.call(t, true, "bond_deposit", map[string]string{"caller": maker, "amount": "1"})
	require.Nil(t, resp.Error)
	resp = h.call(t, true, "bond_lock", map[string]string{"caller": maker})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeInsufficientDeposit, resp.Error.Code)

	// Locking an already-locked bond reports its own code, not a deposit
	// shortfall.
	minimum, err := h.registry.MinimumDeposit()
	require.NoError(t, err)
	resp = h.call(t, true, "bond_deposit", map[string]string{"caller": maker, "amount": minimum.String()})
	require.Nil(t, resp.Error)
	resp = h.call(t, true, "bond_lock", map[string]string{"caller": maker})
	require.Nil(t, resp.Error)
	resp = h.call(t, true, "bond_lock", map[string]string{"caller": maker})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeAlreadyLocked, resp.Error.Code)

	// Unknown passport.
	resp = h.call(t, false, "passport_view", map[string]string{
		"caller":  formatAddress(h.government),
		"tokenId": "missing",
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeNotFound, resp.Error.Code)

	// Unknown role name.
	resp = h.call(t, true, "roles_grant", map[string]string{
		"caller":    formatAddress(h.government),
		"role":      "ROLE_BOGUS",
		"principal": maker,
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestOracleUnavailableCode(t *testing.T) {
	h := newHarness(t)
	h.registry.SetOracle(bond.NewManualOracle())

	resp := h.call(t, false, "bond_minimumDeposit", nil)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeOracleUnavailable, resp.Error.Code)
}

func TestMethodNotFound(t *testing.T) {
	h := newHarness(t)
	resp := h.call(t, false, "passport_burn", map[string]string{})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestSingleParamEnforced(t *testing.T) {
	h := newHarness(t)
	resp := h.call(t, false, "roles_has", nil)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestEventHubDelivery(t *testing.T) {
	h := newHarness(t)
	lockManufacturer(t, h)

	updates, cancel := h.server.hub.Subscribe()
	defer cancel()

	resp := h.call(t, true, "passport_mint", map[string]string{
		"caller":            formatAddress(h.maker),
		"tokenId":           "BAT-0001",
		"batteryModel":      "LFP-72",
		"batteryType":       "LiFePO4",
		"productName":       "PowerCell 72",
		"manufacturingSite": "Sunderland",
		"offChainDataHash":  "hash",
	})
	require.Nil(t, resp.Error)

	select {
	case evt := <-updates:
		require.Equal(t, "passport.minted", evt.Type)
		require.Equal(t, "BAT-0001", evt.Attributes["tokenId"])
	case <-time.After(time.Second):
		t.Fatal("expected minted event on the hub")
	}
}

func TestFailedMutationEmitsNothing(t *testing.T) {
	h := newHarness(t)
	lockManufacturer(t, h)

	updates, cancel := h.server.hub.Subscribe()
	defer cancel()

	resp := h.call(t, true, "passport_mintBatch", map[string]interface{}{
		"caller":             formatAddress(h.maker),
		"tokenIds":           []string{"BAT-A", "BAT-A"},
		"batteryModels":      []string{"m", "m"},
		"batteryTypes":       []string{"t", "t"},
		"productNames":       []string{"p", "p"},
		"manufacturingSites": []string{"s", "s"},
		"offChainDataHashes": []string{"h", "h"},
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeConflict, resp.Error.Code)

	select {
	case evt := <-updates:
		t.Fatalf("unexpected event %q after failed batch", evt.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func lockManufacturer(t *testing.T, h *rpcHarness) {
	t.Helper()
	require.NoError(t, h.registry.AddManufacturer(h.government, h.maker))
	minimum, err := h.registry.MinimumDeposit()
	require.NoError(t, err)
	require.NoError(t, h.registry.Deposit(h.maker, minimum))
	require.NoError(t, h.registry.LockDeposit(h.maker))
}

func TestOversizedBodyRejected(t *testing.T) {
	h := newHarness(t)
	body := fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"roles_has","params":[{"pad":%q}]}`,
		strings.Repeat("x", maxRequestBytes))
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.server.handle(rec, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func (h *rpcHarness) callFrom(t *testing.T, remoteAddr, method string) *RPCResponse {
	t.Helper()
	body := fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":%q}`, method)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.server.handle(rec, req)

	resp := &RPCResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), resp))
	return resp
}

func TestRateLimitIsPerClient(t *testing.T) {
	h := newHarness(t)
	noisy := "203.0.113.7:4000"
	quiet := "203.0.113.8:4000"

	limited := false
	for i := 0; i < rateLimitBurst+20; i++ {
		resp := h.callFrom(t, noisy, "bond_minimumDeposit")
		if resp.Error != nil {
			require.Equal(t, codeRateLimited, resp.Error.Code)
			limited = true
			break
		}
	}
	require.True(t, limited, "noisy client was never rate limited")

	// Another client keeps its own budget.
	resp := h.callFrom(t, quiet, "bond_minimumDeposit")
	require.Nil(t, resp.Error, "unexpected error for second client: %+v", resp.Error)
}

package passport

import (
	"errors"
	"sort"
	"testing"

	"evregistry/core/events"
	"evregistry/native/roles"
)

type mockState struct {
	roles     map[string]map[[20]byte]bool
	locked    map[[20]byte]bool
	passports map[string]*Passport
	owned     map[[20]byte]map[string]bool
}

func newMockState() *mockState {
	return &mockState{
		roles:     make(map[string]map[[20]byte]bool),
		locked:    make(map[[20]byte]bool),
		passports: make(map[string]*Passport),
		owned:     make(map[[20]byte]map[string]bool),
	}
}

func (m *mockState) grant(role string, addr [20]byte) {
	if m.roles[role] == nil {
		m.roles[role] = make(map[[20]byte]bool)
	}
	m.roles[role][addr] = true
}

func (m *mockState) HasRole(role string, addr [20]byte) (bool, error) {
	return m.roles[role][addr], nil
}

func (m *mockState) BondLocked(addr [20]byte) (bool, error) {
	return m.locked[addr], nil
}

func (m *mockState) PassportGet(tokenID string) (*Passport, bool, error) {
	record, ok := m.passports[tokenID]
	if !ok {
		return nil, false, nil
	}
	return record.Clone(), true, nil
}

func (m *mockState) PassportPut(p *Passport) error {
	m.passports[p.TokenID] = p.Clone()
	return nil
}

func (m *mockState) OwnerTokenAdd(owner [20]byte, tokenID string) error {
	if m.owned[owner] == nil {
		m.owned[owner] = make(map[string]bool)
	}
	m.owned[owner][tokenID] = true
	return nil
}

func (m *mockState) OwnerTokenRemove(owner [20]byte, tokenID string) error {
	delete(m.owned[owner], tokenID)
	return nil
}

func (m *mockState) OwnerTokens(owner [20]byte) ([]string, error) {
	var out []string
	for tokenID := range m.owned[owner] {
		out = append(out, tokenID)
	}
	sort.Strings(out)
	return out, nil
}

type capturingEmitter struct {
	events []events.Event
}

func (c *capturingEmitter) Emit(evt events.Event) {
	c.events = append(c.events, evt)
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func newTestEngine(t *testing.T) (*Engine, *mockState, *capturingEmitter) {
	t.Helper()
	state := newMockState()
	emitter := &capturingEmitter{}
	engine := NewEngine()
	engine.SetState(state)
	engine.SetEmitter(emitter)
	engine.SetNowFunc(func() int64 { return 1700000000 })
	return engine, state, emitter
}

func lockedMaker(state *mockState, fill byte) [20]byte {
	maker := newTestAddress(fill)
	state.grant(roles.RoleManufacturer, maker)
	state.locked[maker] = true
	return maker
}

func testRequest(tokenID string) MintRequest {
	return MintRequest{
		TokenID:           tokenID,
		BatteryModel:      "LFP-72",
		BatteryType:       "lithium-iron-phosphate",
		ProductName:       "CityRunner Pack",
		ManufacturingSite: "Sunderland",
		OffChainDataHash:  "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG",
	}
}

func TestMintRequiresLockedManufacturer(t *testing.T) {
	engine, state, emitter := newTestEngine(t)
	outsider := newTestAddress(0x01)

	if _, err := engine.Mint(outsider, testRequest("T1")); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	maker := newTestAddress(0x02)
	state.grant(roles.RoleManufacturer, maker)
	if _, err := engine.Mint(maker, testRequest("T1")); !errors.Is(err, ErrDepositNotLocked) {
		t.Fatalf("expected ErrDepositNotLocked, got %v", err)
	}
	if len(state.passports) != 0 || len(emitter.events) != 0 {
		t.Fatalf("no state or events expected on refused mint")
	}
}

func TestMintCreatesRecord(t *testing.T) {
	engine, state, emitter := newTestEngine(t)
	maker := lockedMaker(state, 0x11)

	minted, err := engine.Mint(maker, testRequest("T1"))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if minted.Owner != maker {
		t.Fatalf("owner = %x, want minting manufacturer", minted.Owner)
	}
	if minted.SupplyChainInfo != "" || minted.Recycled || minted.ReturnedToManufacturer {
		t.Fatalf("fresh record must have empty annotation and unset flags: %+v", minted)
	}
	if minted.MintedAt != 1700000000 {
		t.Fatalf("mintedAt = %d, want fixed test clock", minted.MintedAt)
	}
	if minted.OffChainDataHash != "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG" {
		t.Fatalf("off-chain hash not preserved: %q", minted.OffChainDataHash)
	}
	evt, ok := emitter.events[0].(events.PassportMinted)
	if !ok || evt.TokenID != "T1" || evt.Manufacturer != maker {
		t.Fatalf("unexpected mint event %+v", emitter.events[0])
	}

	// Re-minting the same token fails and leaves the original untouched.
	dup := testRequest("T1")
	dup.BatteryModel = "other"
	if _, err := engine.Mint(maker, dup); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	stored, _, _ := state.PassportGet("T1")
	if stored.BatteryModel != "LFP-72" {
		t.Fatalf("original record mutated by failed re-mint")
	}

	if _, err := engine.Mint(maker, MintRequest{}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty token id, got %v", err)
	}
}

func TestMintBatchAtomic(t *testing.T) {
	engine, state, emitter := newTestEngine(t)
	maker := lockedMaker(state, 0x22)

	if _, err := engine.Mint(maker, testRequest("B2")); err != nil {
		t.Fatalf("seed mint: %v", err)
	}
	emitter.events = nil

	// One colliding token id aborts the whole batch.
	_, err := engine.MintBatch(maker, []MintRequest{testRequest("B1"), testRequest("B2"), testRequest("B3")})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if _, exists, _ := state.PassportGet("B1"); exists {
		t.Fatalf("failed batch must not create any token")
	}
	if len(emitter.events) != 0 {
		t.Fatalf("failed batch must not emit, got %d events", len(emitter.events))
	}

	// Duplicates inside the batch are rejected up front.
	if _, err := engine.MintBatch(maker, []MintRequest{testRequest("C1"), testRequest("C1")}); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists for in-batch duplicate, got %v", err)
	}
	if _, err := engine.MintBatch(maker, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty batch, got %v", err)
	}

	minted, err := engine.MintBatch(maker, []MintRequest{testRequest("D1"), testRequest("D2")})
	if err != nil {
		t.Fatalf("batch mint: %v", err)
	}
	if len(minted) != 2 {
		t.Fatalf("expected 2 minted records, got %d", len(minted))
	}
	if len(emitter.events) != 2 {
		t.Fatalf("expected one event per token, got %d", len(emitter.events))
	}
	first, _ := emitter.events[0].(events.PassportMinted)
	second, _ := emitter.events[1].(events.PassportMinted)
	if first.TokenID != "D1" || second.TokenID != "D2" {
		t.Fatalf("events out of order: %q then %q", first.TokenID, second.TokenID)
	}
}

func TestTransferRoundTrip(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	maker := lockedMaker(state, 0x33)
	buyer := newTestAddress(0x44)

	original, err := engine.Mint(maker, testRequest("T1"))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := engine.Transfer(buyer, buyer, maker, "T1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-owner transfer must fail, got %v", err)
	}
	if err := engine.Transfer(maker, maker, [20]byte{}, "T1"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("zero recipient must fail, got %v", err)
	}
	if err := engine.Transfer(maker, maker, buyer, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := engine.Transfer(maker, maker, buyer, "T1"); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if owner, _ := engine.OwnerOf("T1"); owner != buyer {
		t.Fatalf("owner = %x, want buyer", owner)
	}
	if err := engine.Transfer(buyer, buyer, maker, "T1"); err != nil {
		t.Fatalf("transfer back: %v", err)
	}

	stored, _, _ := state.PassportGet("T1")
	if stored.Owner != maker {
		t.Fatalf("owner = %x, want maker", stored.Owner)
	}
	// Descriptive fields survive the round trip untouched.
	roundTripped := stored.Clone()
	roundTripped.Owner = original.Owner
	if *roundTripped != *original {
		t.Fatalf("fields changed across transfers: %+v vs %+v", roundTripped, original)
	}

	tokens, err := engine.TokensOf(maker)
	if err != nil || len(tokens) != 1 || tokens[0] != "T1" {
		t.Fatalf("tokens of maker = %v err=%v", tokens, err)
	}
	tokens, _ = engine.TokensOf(buyer)
	if len(tokens) != 0 {
		t.Fatalf("buyer must hold no tokens after round trip, got %v", tokens)
	}
}

func TestUpdateSupplyChain(t *testing.T) {
	engine, state, emitter := newTestEngine(t)
	maker := lockedMaker(state, 0x55)
	supplier := newTestAddress(0x66)
	state.grant(roles.RoleSupplier, supplier)

	if _, err := engine.Mint(maker, testRequest("T1")); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := engine.UpdateSupplyChain(maker, "T1", "X"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-supplier update must fail, got %v", err)
	}
	stored, _, _ := state.PassportGet("T1")
	if stored.SupplyChainInfo != "" {
		t.Fatalf("annotation must be unchanged after refused update")
	}
	if err := engine.UpdateSupplyChain(supplier, "missing", "X"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := engine.UpdateSupplyChain(supplier, "T1", "cells sourced via Rotterdam"); err != nil {
		t.Fatalf("update: %v", err)
	}
	stored, _, _ = state.PassportGet("T1")
	if stored.SupplyChainInfo != "cells sourced via Rotterdam" {
		t.Fatalf("annotation = %q", stored.SupplyChainInfo)
	}
	last := emitter.events[len(emitter.events)-1]
	updated, ok := last.(events.SupplyChainUpdated)
	if !ok || updated.Supplier != supplier {
		t.Fatalf("unexpected event %+v", last)
	}
}

func TestMarkRecycledMonotonic(t *testing.T) {
	engine, state, emitter := newTestEngine(t)
	maker := lockedMaker(state, 0x77)
	recycler := newTestAddress(0x88)
	state.grant(roles.RoleRecycler, recycler)

	if _, err := engine.Mint(maker, testRequest("T1")); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := engine.MarkRecycled(maker, "T1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-recycler must fail, got %v", err)
	}
	if err := engine.MarkRecycled(recycler, "T1"); err != nil {
		t.Fatalf("mark recycled: %v", err)
	}
	before := len(emitter.events)
	// Idempotent: silent success, no second event.
	if err := engine.MarkRecycled(recycler, "T1"); err != nil {
		t.Fatalf("re-mark recycled: %v", err)
	}
	if len(emitter.events) != before {
		t.Fatalf("idempotent mark must not re-emit")
	}
	stored, _, _ := state.PassportGet("T1")
	if !stored.Recycled {
		t.Fatalf("expected recycled flag set")
	}
}

func TestMarkReturned(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	maker := lockedMaker(state, 0x99)
	if _, err := engine.Mint(maker, testRequest("T1")); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := engine.MarkReturned(newTestAddress(0x01), "T1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-manufacturer must fail, got %v", err)
	}
	if err := engine.MarkReturned(maker, "T1"); err != nil {
		t.Fatalf("mark returned: %v", err)
	}
	if err := engine.MarkReturned(maker, "T1"); err != nil {
		t.Fatalf("idempotent mark returned: %v", err)
	}
	stored, _, _ := state.PassportGet("T1")
	if !stored.ReturnedToManufacturer {
		t.Fatalf("expected returned flag set")
	}
	if stored.Recycled {
		t.Fatalf("returned flag must not imply recycled")
	}
}

func TestViewGated(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	maker := lockedMaker(state, 0xAA)
	consumer := newTestAddress(0xBB)
	gov := newTestAddress(0xCC)
	state.grant(roles.RoleConsumer, consumer)
	state.grant(roles.RoleGovernment, gov)

	if _, err := engine.Mint(maker, testRequest("T1")); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := engine.View(maker, "T1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("manufacturer view must fail without consumer role, got %v", err)
	}
	record, err := engine.View(consumer, "T1")
	if err != nil {
		t.Fatalf("consumer view: %v", err)
	}
	if record.BatteryModel != "LFP-72" || record.OffChainDataHash == "" {
		t.Fatalf("view must return all fields: %+v", record)
	}
	if _, err := engine.View(gov, "T1"); err != nil {
		t.Fatalf("government view: %v", err)
	}
	if _, err := engine.View(consumer, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

package events

import "evregistry/core/types"

const (
	TypePassportMinted       = "passport.minted"
	TypePassportTransferred  = "passport.transferred"
	TypeSupplyChainUpdated   = "passport.supply_chain_updated"
	TypePassportRecycled     = "passport.recycled"
	TypePassportReturned     = "passport.returned_to_manufacturer"
	TypeRegistryBootstrapped = "registry.bootstrapped"
)

// PassportMinted is emitted once per token and carries the descriptive
// fields supplied at mint time.
type PassportMinted struct {
	TokenID      string
	Manufacturer [20]byte
	BatteryModel string
	BatteryType  string
	ProductName  string
	MintedAt     int64
}

func (PassportMinted) EventType() string { return TypePassportMinted }

func (e PassportMinted) Event() *types.Event {
	return &types.Event{
		Type: TypePassportMinted,
		Attributes: map[string]string{
			"tokenId":      e.TokenID,
			"manufacturer": addrToString(e.Manufacturer),
			"batteryModel": e.BatteryModel,
			"batteryType":  e.BatteryType,
			"productName":  e.ProductName,
			"mintedAt":     intToString(e.MintedAt),
		},
	}
}

// PassportTransferred is emitted on every custody change.
type PassportTransferred struct {
	TokenID string
	From    [20]byte
	To      [20]byte
}

func (PassportTransferred) EventType() string { return TypePassportTransferred }

func (e PassportTransferred) Event() *types.Event {
	return &types.Event{
		Type: TypePassportTransferred,
		Attributes: map[string]string{
			"tokenId": e.TokenID,
			"from":    addrToString(e.From),
			"to":      addrToString(e.To),
		},
	}
}

// SupplyChainUpdated is emitted when a supplier annotates a passport.
type SupplyChainUpdated struct {
	TokenID  string
	Supplier [20]byte
	Info     string
}

func (SupplyChainUpdated) EventType() string { return TypeSupplyChainUpdated }

func (e SupplyChainUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeSupplyChainUpdated,
		Attributes: map[string]string{
			"tokenId":  e.TokenID,
			"supplier": addrToString(e.Supplier),
			"info":     e.Info,
		},
	}
}

// PassportRecycled is emitted the first time a recycler marks a token.
type PassportRecycled struct {
	TokenID  string
	Recycler [20]byte
}

func (PassportRecycled) EventType() string { return TypePassportRecycled }

func (e PassportRecycled) Event() *types.Event {
	return &types.Event{
		Type: TypePassportRecycled,
		Attributes: map[string]string{
			"tokenId":  e.TokenID,
			"recycler": addrToString(e.Recycler),
		},
	}
}

// PassportReturned is emitted when a manufacturer records a unit taken back.
type PassportReturned struct {
	TokenID      string
	Manufacturer [20]byte
}

func (PassportReturned) EventType() string { return TypePassportReturned }

func (e PassportReturned) Event() *types.Event {
	return &types.Event{
		Type: TypePassportReturned,
		Attributes: map[string]string{
			"tokenId":      e.TokenID,
			"manufacturer": addrToString(e.Manufacturer),
		},
	}
}

// RegistryBootstrapped is emitted once when the initial government principal
// is provisioned.
type RegistryBootstrapped struct {
	Government [20]byte
}

func (RegistryBootstrapped) EventType() string { return TypeRegistryBootstrapped }

func (e RegistryBootstrapped) Event() *types.Event {
	return &types.Event{
		Type: TypeRegistryBootstrapped,
		Attributes: map[string]string{
			"government": addrToString(e.Government),
		},
	}
}

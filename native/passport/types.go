package passport

// Passport is the per-battery custody record. Descriptive fields are fixed at
// mint; SupplyChainInfo, the lifecycle flags, and Owner change afterwards
// through role-gated operations.
type Passport struct {
	TokenID                string
	Owner                  [20]byte
	BatteryModel           string
	BatteryType            string
	ProductName            string
	ManufacturingSite      string
	SupplyChainInfo        string
	Recycled               bool
	ReturnedToManufacturer bool
	OffChainDataHash       string
	MintedAt               uint64
}

// Clone returns a defensive copy.
func (p *Passport) Clone() *Passport {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// MintRequest carries the caller-supplied fields for one token.
type MintRequest struct {
	TokenID           string
	BatteryModel      string
	BatteryType       string
	ProductName       string
	ManufacturingSite string
	OffChainDataHash  string
}

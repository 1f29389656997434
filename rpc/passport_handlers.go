package rpc

import (
	"fmt"
	"net/http"

	"evregistry/native/passport"
)

type mintParams struct {
	Caller            string `json:"caller"`
	TokenID           string `json:"tokenId"`
	BatteryModel      string `json:"batteryModel"`
	BatteryType       string `json:"batteryType"`
	ProductName       string `json:"productName"`
	ManufacturingSite string `json:"manufacturingSite"`
	OffChainDataHash  string `json:"offChainDataHash"`
}

// mintBatchParams carries one entry per parallel array; every array must have
// the same length as tokenIds.
type mintBatchParams struct {
	Caller             string   `json:"caller"`
	TokenIDs           []string `json:"tokenIds"`
	BatteryModels      []string `json:"batteryModels"`
	BatteryTypes       []string `json:"batteryTypes"`
	ProductNames       []string `json:"productNames"`
	ManufacturingSites []string `json:"manufacturingSites"`
	OffChainDataHashes []string `json:"offChainDataHashes"`
}

type transferParams struct {
	Caller  string `json:"caller"`
	From    string `json:"from"`
	To      string `json:"to"`
	TokenID string `json:"tokenId"`
}

type supplyChainParams struct {
	Caller  string `json:"caller"`
	TokenID string `json:"tokenId"`
	Info    string `json:"info"`
}

type tokenParams struct {
	Caller  string `json:"caller"`
	TokenID string `json:"tokenId"`
}

type ownerOfParams struct {
	TokenID string `json:"tokenId"`
}

type tokensOfParams struct {
	Principal string `json:"principal"`
}

type passportJSON struct {
	TokenID                string `json:"tokenId"`
	Owner                  string `json:"owner"`
	BatteryModel           string `json:"batteryModel"`
	BatteryType            string `json:"batteryType"`
	ProductName            string `json:"productName"`
	ManufacturingSite      string `json:"manufacturingSite"`
	SupplyChainInfo        string `json:"supplyChainInfo"`
	Recycled               bool   `json:"recycled"`
	ReturnedToManufacturer bool   `json:"returnedToManufacturer"`
	OffChainDataHash       string `json:"offChainDataHash"`
	MintedAt               uint64 `json:"mintedAt"`
}

func passportToJSON(record *passport.Passport) passportJSON {
	return passportJSON{
		TokenID:                record.TokenID,
		Owner:                  formatAddress(record.Owner),
		BatteryModel:           record.BatteryModel,
		BatteryType:            record.BatteryType,
		ProductName:            record.ProductName,
		ManufacturingSite:      record.ManufacturingSite,
		SupplyChainInfo:        record.SupplyChainInfo,
		Recycled:               record.Recycled,
		ReturnedToManufacturer: record.ReturnedToManufacturer,
		OffChainDataHash:       record.OffChainDataHash,
		MintedAt:               record.MintedAt,
	}
}

func (s *Server) handlePassportMint(w http.ResponseWriter, req *RPCRequest) {
	var params mintParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	record, err := s.registry.Mint(caller, passport.MintRequest{
		TokenID:           params.TokenID,
		BatteryModel:      params.BatteryModel,
		BatteryType:       params.BatteryType,
		ProductName:       params.ProductName,
		ManufacturingSite: params.ManufacturingSite,
		OffChainDataHash:  params.OffChainDataHash,
	})
	if err != nil {
		writeRegistryError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, passportToJSON(record))
}

func (s *Server) handlePassportMintBatch(w http.ResponseWriter, req *RPCRequest) {
	var params mintBatchParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	count := len(params.TokenIDs)
	if count == 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", "tokenIds required")
		return
	}
	for name, arr := range map[string][]string{
		"batteryModels":      params.BatteryModels,
		"batteryTypes":       params.BatteryTypes,
		"productNames":       params.ProductNames,
		"manufacturingSites": params.ManufacturingSites,
		"offChainDataHashes": params.OffChainDataHashes,
	} {
		if len(arr) != count {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params",
				fmt.Sprintf("%s length %d does not match tokenIds length %d", name, len(arr), count))
			return
		}
	}
	reqs := make([]passport.MintRequest, 0, count)
	for i := 0; i < count; i++ {
		reqs = append(reqs, passport.MintRequest{
			TokenID:           params.TokenIDs[i],
			BatteryModel:      params.BatteryModels[i],
			BatteryType:       params.BatteryTypes[i],
			ProductName:       params.ProductNames[i],
			ManufacturingSite: params.ManufacturingSites[i],
			OffChainDataHash:  params.OffChainDataHashes[i],
		})
	}
	records, err := s.registry.MintBatch(caller, reqs)
	if err != nil {
		writeRegistryError(w, req.ID, err)
		return
	}
	minted := make([]passportJSON, 0, len(records))
	for _, record := range records {
		minted = append(minted, passportToJSON(record))
	}
	writeResult(w, req.ID, map[string]interface{}{"minted": minted})
}

func (s *Server) handlePassportTransfer(w http.ResponseWriter, req *RPCRequest) {
	var params transferParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	from, err := parseBech32Address(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	to, err := parseBech32Address(params.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.registry.Transfer(caller, from, to, params.TokenID); err != nil {
		writeRegistryError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"transferred": true})
}

func (s *Server) handlePassportUpdateSupplyChain(w http.ResponseWriter, req *RPCRequest) {
	var params supplyChainParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.registry.UpdateSupplyChain(caller, params.TokenID, params.Info); err != nil {
		writeRegistryError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"updated": true})
}

func (s *Server) handlePassportMarkRecycled(w http.ResponseWriter, req *RPCRequest) {
	var params tokenParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.registry.MarkRecycled(caller, params.TokenID); err != nil {
		writeRegistryError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"recycled": true})
}

func (s *Server) handlePassportMarkReturned(w http.ResponseWriter, req *RPCRequest) {
	var params tokenParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.registry.MarkReturned(caller, params.TokenID); err != nil {
		writeRegistryError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"returned": true})
}

func (s *Server) handlePassportView(w http.ResponseWriter, req *RPCRequest) {
	var params tokenParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	record, err := s.registry.View(caller, params.TokenID)
	if err != nil {
		writeRegistryError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, passportToJSON(record))
}

func (s *Server) handlePassportOwnerOf(w http.ResponseWriter, req *RPCRequest) {
	var params ownerOfParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	owner, err := s.registry.OwnerOf(params.TokenID)
	if err != nil {
		writeRegistryError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"owner": formatAddress(owner)})
}

func (s *Server) handlePassportTokensOf(w http.ResponseWriter, req *RPCRequest) {
	var params tokensOfParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	principal, err := parseBech32Address(params.Principal)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	tokens, err := s.registry.TokensOf(principal)
	if err != nil {
		writeRegistryError(w, req.ID, err)
		return
	}
	if tokens == nil {
		tokens = []string{}
	}
	writeResult(w, req.ID, map[string][]string{"tokens": tokens})
}

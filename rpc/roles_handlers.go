package rpc

import (
	"net/http"
)

type roleParams struct {
	Caller    string `json:"caller"`
	Role      string `json:"role"`
	Principal string `json:"principal"`
}

type manufacturerParams struct {
	Caller       string `json:"caller"`
	Manufacturer string `json:"manufacturer"`
}

type hasRoleParams struct {
	Role      string `json:"role"`
	Principal string `json:"principal"`
}

type membersParams struct {
	Role string `json:"role"`
}

func (s *Server) handleRolesGrant(w http.ResponseWriter, req *RPCRequest) {
	var params roleParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	principal, err := parseBech32Address(params.Principal)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.registry.GrantRole(caller, params.Role, principal); err != nil {
		writeRegistryError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"granted": true})
}

func (s *Server) handleRolesRevoke(w http.ResponseWriter, req *RPCRequest) {
	var params roleParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	principal, err := parseBech32Address(params.Principal)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.registry.RevokeRole(caller, params.Role, principal); err != nil {
		writeRegistryError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"revoked": true})
}

func (s *Server) handleRolesHas(w http.ResponseWriter, req *RPCRequest) {
	var params hasRoleParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	principal, err := parseBech32Address(params.Principal)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	held, err := s.registry.HasRole(params.Role, principal)
	if err != nil {
		writeRegistryError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"hasRole": held})
}

func (s *Server) handleRolesMembers(w http.ResponseWriter, req *RPCRequest) {
	var params membersParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	members, err := s.registry.RoleMembers(params.Role)
	if err != nil {
		writeRegistryError(w, req.ID, err)
		return
	}
	encoded := make([]string, 0, len(members))
	for _, member := range members {
		encoded = append(encoded, formatAddress(member))
	}
	writeResult(w, req.ID, map[string][]string{"members": encoded})
}

func (s *Server) handleRolesAddManufacturer(w http.ResponseWriter, req *RPCRequest) {
	var params manufacturerParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	manufacturer, err := parseBech32Address(params.Manufacturer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.registry.AddManufacturer(caller, manufacturer); err != nil {
		writeRegistryError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"added": true})
}

func (s *Server) handleRolesRemoveManufacturer(w http.ResponseWriter, req *RPCRequest) {
	var params manufacturerParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	manufacturer, err := parseBech32Address(params.Manufacturer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.registry.RemoveManufacturer(caller, manufacturer); err != nil {
		writeRegistryError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"removed": true})
}

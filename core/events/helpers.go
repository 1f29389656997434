package events

import (
	"math/big"
	"strconv"

	"evregistry/crypto"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func intToString(v int64) string {
	return strconv.FormatInt(v, 10)
}

func boolToString(v bool) string {
	return strconv.FormatBool(v)
}

func addrToString(addr [20]byte) string {
	return crypto.NewAddress(crypto.EVRPrefix, addr[:]).String()
}

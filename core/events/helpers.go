package events

import (
	"encoding/hex"
	"math/big"
	"strconv"
)

func zeroBytes(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

func hexAttr(b []byte) string {
	return hex.EncodeToString(b)
}

func uintAttr(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func amountAttr(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

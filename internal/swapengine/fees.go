package swapengine

import (
	"math/big"

	"github.com/aman-zulfiqar/swap-router/internal/router"
)

// SplitFee returns floor(amount*feeBps/10000) and the remainder that is actually swapped.
func SplitFee(amount *big.Int, feeBps uint32) (fee, swapAmount *big.Int) {
	fee = new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(feeBps)))
	fee.Quo(fee, big.NewInt(router.BpsDenominator))
	return fee, new(big.Int).Sub(amount, fee)
}

package pool

import (
	"fmt"
	"math/big"
)

// FeeDenominator is the scale of FeePPM: fees are expressed in millionths of the input.
const FeeDenominator = 1_000_000

// AmountOut computes the constant-product output for amountIn with the fee taken from the input.
//
//	out = in*(D-fee)*rOut / (rIn*D + in*(D-fee))
func AmountOut(amountIn, reserveIn, reserveOut *big.Int, feePPM uint32) (*big.Int, error) {
	if amountIn.Sign() <= 0 || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, fmt.Errorf("invalid inputs: amounts and reserves must be > 0")
	}
	if feePPM >= FeeDenominator {
		return nil, fmt.Errorf("fee %d ppm leaves nothing to swap", feePPM)
	}

	inAfterFee := new(big.Int).Mul(amountIn, big.NewInt(int64(FeeDenominator-feePPM)))
	numerator := new(big.Int).Mul(inAfterFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, big.NewInt(FeeDenominator))
	denominator.Add(denominator, inAfterFee)

	return numerator.Div(numerator, denominator), nil
}

// AmountIn is the inverse of AmountOut: the smallest input that yields at least amountOut.
func AmountIn(amountOut, reserveIn, reserveOut *big.Int, feePPM uint32) (*big.Int, error) {
	if amountOut.Sign() <= 0 || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, fmt.Errorf("invalid inputs: amounts and reserves must be > 0")
	}
	if amountOut.Cmp(reserveOut) >= 0 {
		return nil, fmt.Errorf("requested %s exceeds reserve %s", amountOut, reserveOut)
	}
	if feePPM >= FeeDenominator {
		return nil, fmt.Errorf("fee %d ppm leaves nothing to swap", feePPM)
	}

	numerator := new(big.Int).Mul(reserveIn, amountOut)
	numerator.Mul(numerator, big.NewInt(FeeDenominator))
	denominator := new(big.Int).Sub(reserveOut, amountOut)
	denominator.Mul(denominator, big.NewInt(int64(FeeDenominator-feePPM)))

	in := numerator.Div(numerator, denominator)
	return in.Add(in, big.NewInt(1)), nil
}

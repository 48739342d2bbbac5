package issuance

import "math/big"

var ten = big.NewInt(10)

// pow10 returns 10^n as a big integer.
func pow10(n uint) *big.Int {
	return new(big.Int).Exp(ten, big.NewInt(int64(n)), nil)
}

// mulDiv computes a*b/den with floor rounding. den must be positive.
func mulDiv(a, b, den *big.Int) *big.Int {
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, den)
}

package services

import (
	"crypto/sha1"
	"math/big"
)

// variantKeySeparator and variantKeyModulus are part of the id contract:
// changing either renumbers every price variant.
const variantKeySeparator = "|"

var variantKeyModulus = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// VariantID derives the stable surrogate id of a (card, price variant) pair:
// SHA-1 of "card_id|variant_type" (UTF-8), read as an unsigned big-endian
// integer, modulo 10^18.
func VariantID(cardID, variantType string) int64 {
	sum := sha1.Sum([]byte(cardID + variantKeySeparator + variantType))
	n := new(big.Int).SetBytes(sum[:])
	return n.Mod(n, variantKeyModulus).Int64()
}

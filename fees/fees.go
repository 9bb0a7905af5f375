package fees

import "math/big"

// MaxBps is the whole of the fee-rate domain: 10000 basis points == 100%.
const MaxBps uint32 = 10_000

// DefaultPlatformBps is the platform commission applied when no rate is
// configured: 250 bps, i.e. 2.5%.
const DefaultPlatformBps uint32 = 250

// Split is the disbursement breakdown for a settled order. SellerAmount and
// Fee always sum to the gross total; the floor-division remainder stays with
// the seller.
type Split struct {
	SellerAmount *big.Int
	Fee          *big.Int
}

// Apply computes the platform fee for the gross amount at the supplied rate
// using integer floor division. The seller amount is derived by subtraction so
// conservation holds exactly for every input.
func Apply(gross *big.Int, rateBps uint32) Split {
	split := Split{SellerAmount: big.NewInt(0), Fee: big.NewInt(0)}
	if gross == nil || gross.Sign() <= 0 {
		return split
	}
	split.SellerAmount = new(big.Int).Set(gross)
	if rateBps == 0 {
		return split
	}
	if rateBps > MaxBps {
		rateBps = MaxBps
	}
	fee := new(big.Int).Mul(gross, big.NewInt(int64(rateBps)))
	fee.Div(fee, big.NewInt(int64(MaxBps)))
	if fee.Sign() <= 0 {
		return split
	}
	split.Fee = fee
	split.SellerAmount = new(big.Int).Sub(gross, fee)
	return split
}

// ValidBps reports whether the rate lies inside the supported domain.
func ValidBps(rateBps uint32) bool { return rateBps <= MaxBps }

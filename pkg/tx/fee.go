package tx

// DefaultFeeRate is the relay floor in sats per 1000 virtual bytes.
const DefaultFeeRate uint64 = 100

// EstimatePuzzleVSize returns the virtual size of a puzzle spend with the
// given number of inputs and outputs, assuming witnessBytes of witness data
// on the puzzle input and one P2WPKH-sized signature on every other input.
//
//	base:    version(4) + flag(1) + counts(2) + inputs(41*n) + outputs(77*m) + locktime(4)
//	witness: per input 2 proof bytes + stack + peg-in count, per output 2 proof bytes
func EstimatePuzzleVSize(numInputs, numOutputs, witnessBytes int) int {
	const overhead = 4 + 1 + 1 + 1 + 4
	const perInput = 32 + 4 + 1 + 4
	const perOutput = 33 + 9 + 1 + 1 + 34 // asset + value + nonce + len + taproot script
	const perSigInput = 1 + 1 + 72 + 1 + 33

	base := overhead + perInput*numInputs + perOutput*numOutputs
	wit := (2+1)*numInputs + 2*numOutputs + witnessBytes
	if numInputs > 1 {
		wit += perSigInput * (numInputs - 1)
	}
	weight := base*4 + wit
	return (weight + 3) / 4
}

// EstimateFee returns the fee for vsize at feeRate sats per 1000 vbytes,
// rounded up.
func EstimateFee(vsize int, feeRate uint64) uint64 {
	return (uint64(vsize)*feeRate + 999) / 1000
}

// RequiredFee returns the minimum fee for a fully built transaction at
// feeRate sats per 1000 vbytes.
func RequiredFee(transaction *Transaction, feeRate uint64) uint64 {
	return EstimateFee(transaction.VSize(), feeRate)
}

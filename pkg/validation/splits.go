package validation

// Split is one causal train/test partition. Train always starts at index 0
// and every test index is greater than every train index.
type Split struct {
	Train []int
	Test  []int
}

const (
	DefaultSplits           = 4
	DefaultMinTrainFraction = 0.5
)

// BlockedSplits returns up to nSplits expanding-window splits over n ordered
// observations. The first test block starts at floor(n·minTrainFraction);
// blocks are contiguous, non-overlapping and of equal size except for
// truncation at n. A split whose test block or train block would be empty is
// dropped.
func BlockedSplits(n, nSplits int, minTrainFraction float64) []Split {
	if n <= 0 || nSplits <= 0 {
		return nil
	}
	start := int(float64(n) * minTrainFraction)
	testSize := max((n-start)/nSplits, 1)

	splits := make([]Split, 0, nSplits)
	for i := 0; i < nSplits; i++ {
		trainEnd := start + i*testSize
		testEnd := min(trainEnd+testSize, n)
		if testEnd <= trainEnd || trainEnd <= 0 {
			continue
		}
		splits = append(splits, Split{
			Train: indexRange(0, trainEnd),
			Test:  indexRange(trainEnd, testEnd),
		})
	}
	return splits
}

func indexRange(from, to int) []int {
	out := make([]int, to-from)
	for i := range out {
		out[i] = from + i
	}
	return out
}

func take(values []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = values[j]
	}
	return out
}

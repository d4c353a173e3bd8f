package reference

import (
	"fmt"
	"strconv"
)

// cigarRun is one length/operator pair of a CIGAR string.
type cigarRun struct {
	length int
	op     byte
}

// parseCigar splits a CIGAR string into its runs.
func parseCigar(cigar string) ([]cigarRun, error) {
	var runs []cigarRun
	start := 0
	for i := 0; i < len(cigar); i++ {
		c := cigar[i]
		if c >= '0' && c <= '9' {
			continue
		}
		if i == start {
			return nil, fmt.Errorf("%w: %q: operator %q without length", ErrBadCigar, cigar, c)
		}
		n, err := strconv.Atoi(cigar[start:i])
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrBadCigar, cigar, err)
		}
		runs = append(runs, cigarRun{length: n, op: c})
		start = i + 1
	}
	if start != len(cigar) {
		return nil, fmt.Errorf("%w: %q: trailing length without operator", ErrBadCigar, cigar)
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: empty cigar", ErrBadCigar)
	}
	return runs, nil
}

// cigarMask expands a CIGAR into a per-base match mask. Runs alternate
// match/gap by position (even runs match, odd runs are gaps) regardless of
// the operator letter. On the minus strand the run order is reversed first,
// each run keeping its own length.
func cigarMask(cigar string, strand Strand) ([]bool, error) {
	runs, err := parseCigar(cigar)
	if err != nil {
		return nil, err
	}
	if strand == StrandMinus {
		for i, j := 0, len(runs)-1; i < j; i, j = i+1, j-1 {
			runs[i], runs[j] = runs[j], runs[i]
		}
	}

	var mask []bool
	for i, r := range runs {
		match := i%2 == 0
		for j := 0; j < r.length; j++ {
			mask = append(mask, match)
		}
	}
	return mask, nil
}

// maskPositions returns the genomic positions in [start, stop] whose mask bit is set.
func maskPositions(start, stop int64, mask []bool) ([]int64, error) {
	span := stop - start + 1
	if int64(len(mask)) < span {
		return nil, fmt.Errorf("%w: cigar covers %d bases, location spans %d", ErrCigarLength, len(mask), span)
	}
	var positions []int64
	for i := int64(0); i < span; i++ {
		if mask[i] {
			positions = append(positions, start+i)
		}
	}
	return positions, nil
}

// fullPositions returns every position of [start, stop].
func fullPositions(start, stop int64) []int64 {
	if stop < start {
		return nil
	}
	positions := make([]int64, 0, stop-start+1)
	for p := start; p <= stop; p++ {
		positions = append(positions, p)
	}
	return positions
}

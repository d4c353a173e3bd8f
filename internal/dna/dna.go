// Package dna provides nucleotide string helpers shared by the normalizer and writers.
package dna

// complement maps each byte to its Watson-Crick complement. Bytes without a
// complement map to themselves. U (RNA) complements to A.
var complement [256]byte

func init() {
	for i := range complement {
		complement[i] = byte(i)
	}
	pairs := []struct{ from, to byte }{
		{'A', 'T'}, {'T', 'A'}, {'G', 'C'}, {'C', 'G'}, {'U', 'A'},
		{'a', 't'}, {'t', 'a'}, {'g', 'c'}, {'c', 'g'}, {'u', 'a'},
	}
	for _, p := range pairs {
		complement[p.from] = p.to
	}
}

// Complement returns the complement of a single base.
func Complement(b byte) byte {
	return complement[b]
}

// Reverse returns s with its bytes in reverse order.
func Reverse(s string) string {
	n := len(s)
	if n < 2 {
		return s
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[n-1-i] = s[i]
	}
	return string(out)
}

// ReverseComplement returns the reverse complement of a DNA sequence.
func ReverseComplement(s string) string {
	n := len(s)
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[n-1-i] = complement[s[i]]
	}
	return string(out)
}

// Canonical returns the lexicographically smaller of a k-mer and its reverse complement.
func Canonical(kmer string) string {
	rc := ReverseComplement(kmer)
	if rc < kmer {
		return rc
	}
	return kmer
}

package normalize

// extendRepeat finds the left-most representation of allele placed just
// after ref[:p]. When the bases before p end in a period of allele, the
// anchor walks left over every whole copy of that period and then one more
// base. It returns ref[anchor:p] and anchor; ok is false when p lies outside
// ref.
func extendRepeat(allele string, p int, ref string) (full string, anchor int, ok bool) {
	if p <= 0 || p > len(ref) {
		return "", 0, false
	}
	anchor = p - 1
	last := ref[p-1]

	period := 0
	for r := 0; r < len(allele) && p-1-r >= 0; r++ {
		if allele[r] != last || ref[p-1-r] != allele[0] {
			continue
		}
		if matchesAt(allele[r:], ref, p-1) {
			period = r + 1
			break
		}
	}
	if period == 0 {
		return ref[anchor:p], anchor, true
	}

	pattern := ref[p-period : p]
	anchor = p - period
	for anchor-period >= 0 && ref[anchor-period:anchor] == pattern {
		anchor -= period
	}
	if anchor > 0 {
		anchor--
	}
	return ref[anchor:p], anchor, true
}

// matchesAt reports whether s occurs in ref starting at i.
func matchesAt(s, ref string, i int) bool {
	if i < 0 || i+len(s) > len(ref) {
		return false
	}
	return ref[i:i+len(s)] == s
}

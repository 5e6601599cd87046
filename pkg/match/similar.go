package match

// SimilarText returns the number of characters a and b have in common,
// counted by repeatedly taking the longest common substring and recursing
// into the text on either side of it.
func SimilarText(a, b string) int {
	return similarChars(a, b)
}

// SimilarPercent is SimilarText as a percentage of the combined length
func SimilarPercent(a, b string) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 0
	}
	return float64(SimilarText(a, b)) * 2 * 100 / float64(total)
}

func similarChars(a, b string) int {
	pos1, pos2, length, count := longestCommon(a, b)
	if length == 0 {
		return 0
	}
	sum := length
	if pos1 > 0 && pos2 > 0 && count > 1 {
		sum += similarChars(a[:pos1], b[:pos2])
	}
	if pos1+length < len(a) && pos2+length < len(b) {
		sum += similarChars(a[pos1+length:], b[pos2+length:])
	}
	return sum
}

// longestCommon finds the first longest common substring of a and b.
// count is the number of times a longer match replaced the previous best.
func longestCommon(a, b string) (pos1, pos2, length, count int) {
	for p := 0; p < len(a); p++ {
		for q := 0; q < len(b); q++ {
			l := 0
			for p+l < len(a) && q+l < len(b) && a[p+l] == b[q+l] {
				l++
			}
			if l > length {
				length = l
				count++
				pos1, pos2 = p, q
			}
		}
	}
	return pos1, pos2, length, count
}

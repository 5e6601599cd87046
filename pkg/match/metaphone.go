package match

import "strings"

// Metaphone returns the classic metaphone key of s. Letters outside A-Z are
// treated as word breaks, so callers should Fold accented text first.
func Metaphone(s string) string {
	w := []byte(strings.ToUpper(s))
	n := len(w)

	at := func(i int) byte {
		if i < 0 || i >= n {
			return 0
		}
		return w[i]
	}
	// ahead returns the letter k positions after i, stopping at the end of input
	ahead := func(i, k int) byte {
		for j := 1; j <= k; j++ {
			if at(i+j) == 0 {
				return 0
			}
		}
		return at(i + k)
	}

	var out strings.Builder
	i := 0
	for i < n && !isAlpha(w[i]) {
		i++
	}
	if i >= n {
		return ""
	}

	// initial letter exceptions
	switch cur, next := w[i], at(i+1); cur {
	case 'A':
		if next == 'E' {
			out.WriteByte('E')
			i += 2
		} else {
			out.WriteByte('A')
			i++
		}
	case 'G', 'K', 'P':
		if next == 'N' {
			out.WriteByte('N')
			i += 2
		}
	case 'W':
		if next == 'R' {
			out.WriteByte('R')
			i += 2
		} else if next == 'H' || isVowel(next) {
			out.WriteByte('W')
			i += 2
		}
	case 'X':
		out.WriteByte('S')
		i++
	case 'E', 'I', 'O', 'U':
		out.WriteByte(cur)
		i++
	}

	for ; i < n; i++ {
		cur := w[i]
		if !isAlpha(cur) {
			continue
		}
		last := at(i - 1)
		if cur == last && cur != 'C' {
			continue
		}
		next := at(i + 1)
		var afterNext byte
		if next != 0 {
			afterNext = at(i + 2)
		}
		skip := 0

		switch cur {
		case 'B':
			if !(last == 'M' && next == 0) {
				out.WriteByte('B')
			}
		case 'C':
			switch {
			case makesSoft(next):
				if next == 'I' && afterNext == 'A' {
					out.WriteByte('X')
				} else if last != 'S' {
					out.WriteByte('S')
				}
			case next == 'H':
				out.WriteByte('X')
				skip++
			default:
				out.WriteByte('K')
			}
		case 'D':
			if next == 'G' && makesSoft(afterNext) {
				out.WriteByte('J')
				skip++
			} else {
				out.WriteByte('T')
			}
		case 'G':
			switch {
			case next == 'H':
				if !(noGhToF(at(i-3)) || at(i-4) == 'H') {
					out.WriteByte('F')
					skip++
				}
			case next == 'N':
				if !(!isAlpha(afterNext) || (afterNext == 'E' && ahead(i, 3) == 'D')) {
					out.WriteByte('K')
				}
			case makesSoft(next) && last != 'G':
				out.WriteByte('J')
			default:
				out.WriteByte('K')
			}
		case 'H':
			if isVowel(next) && !affectsH(last) {
				out.WriteByte('H')
			}
		case 'K':
			if last != 'C' {
				out.WriteByte('K')
			}
		case 'P':
			if next == 'H' {
				out.WriteByte('F')
			} else {
				out.WriteByte('P')
			}
		case 'Q':
			out.WriteByte('K')
		case 'S':
			switch {
			case next == 'I' && (afterNext == 'O' || afterNext == 'A'):
				out.WriteByte('X')
			case next == 'H':
				out.WriteByte('X')
				skip++
			default:
				out.WriteByte('S')
			}
		case 'T':
			switch {
			case next == 'I' && (afterNext == 'O' || afterNext == 'A'):
				out.WriteByte('X')
			case next == 'H':
				out.WriteByte('0')
				skip++
			case !(next == 'C' && afterNext == 'H'):
				out.WriteByte('T')
			}
		case 'V':
			out.WriteByte('F')
		case 'W', 'Y':
			if isVowel(next) {
				out.WriteByte(cur)
			}
		case 'X':
			out.WriteString("KS")
		case 'Z':
			out.WriteByte('S')
		case 'F', 'J', 'L', 'M', 'N', 'R':
			out.WriteByte(cur)
		}

		i += skip
	}

	return out.String()
}

func isAlpha(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func isVowel(c byte) bool {
	switch c {
	case 'A', 'E', 'I', 'O', 'U':
		return true
	}
	return false
}

func makesSoft(c byte) bool {
	return c == 'E' || c == 'I' || c == 'Y'
}

func noGhToF(c byte) bool {
	return c == 'B' || c == 'D' || c == 'H'
}

func affectsH(c byte) bool {
	switch c {
	case 'C', 'G', 'P', 'S', 'T':
		return true
	}
	return false
}

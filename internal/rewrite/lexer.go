package rewrite

// MaskLiterals returns a copy of the query with every string literal,
// backquoted identifier, and comment replaced by spaces. The copy has the
// same length as the input, so positions computed on the mask are valid
// spans in the original text. All structural scanning runs on the mask;
// the rewritten output is always assembled from the original text.
func MaskLiterals(query string) string {
	src := []byte(query)
	out := make([]byte, len(src))
	copy(out, src)

	i := 0
	for i < len(src) {
		switch c := src[i]; c {
		case '\'', '"', '`':
			j := i + 1
			for j < len(src) {
				if src[j] == '\\' && c != '`' && j+1 < len(src) {
					j += 2
					continue
				}
				if src[j] == c {
					j++
					break
				}
				j++
			}
			for k := i; k < j && k < len(src); k++ {
				out[k] = ' '
			}
			i = j
		case '/':
			if i+1 < len(src) && src[i+1] == '/' {
				j := i
				for j < len(src) && src[j] != '\n' {
					out[j] = ' '
					j++
				}
				i = j
			} else if i+1 < len(src) && src[i+1] == '*' {
				j := i
				for j < len(src) {
					if src[j] == '*' && j+1 < len(src) && src[j+1] == '/' {
						out[j], out[j+1] = ' ', ' '
						j += 2
						break
					}
					out[j] = ' '
					j++
				}
				i = j
			} else {
				i++
			}
		default:
			i++
		}
	}
	return string(out)
}

// isIdentByte reports whether b can appear in an identifier.
func isIdentByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// isIdentStart reports whether b can start an identifier.
func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// skipSpace returns the first index >= i that is not whitespace.
func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	return i
}

// lastNonSpace returns the index just past the last non-whitespace byte in
// s[start:end], or start if the span is all whitespace.
func lastNonSpace(s string, start, end int) int {
	for end > start {
		c := s[end-1]
		if c != ' ' && c != '\t' && c != '\n' && c != '\r' {
			return end
		}
		end--
	}
	return start
}

package storage

// matchPattern reports whether key matches a Redis glob pattern.
//
// Supported syntax:
//   - * matches any number of characters (including zero)
//   - ? matches a single character
//   - [abc], [a-z] and [^a] match character classes
//   - \x matches x literally
//
// "*" does not match the empty key, as in Redis KEYS.
func matchPattern(key, pattern string) bool {
	if pattern == "" {
		return key == ""
	}
	if pattern == "*" {
		return key != ""
	}
	return globMatch(key, pattern)
}

// globMatch walks key and pattern together, remembering the last star so a
// mismatch can backtrack to it instead of recursing.
func globMatch(key, pattern string) bool {
	k, p := 0, 0
	starP, starK := -1, 0

	for k < len(key) {
		if p < len(pattern) {
			switch pattern[p] {
			case '*':
				starP, starK = p, k
				p++
				continue
			case '?':
				k++
				p++
				continue
			case '[':
				if matched, next, ok := matchClass(key[k], pattern, p); ok && matched {
					k++
					p = next
					continue
				}
			case '\\':
				if p+1 < len(pattern) && pattern[p+1] == key[k] {
					k++
					p += 2
					continue
				}
			default:
				if pattern[p] == key[k] {
					k++
					p++
					continue
				}
			}
		}

		if starP < 0 {
			return false
		}
		starK++
		k = starK
		p = starP + 1
	}

	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}

// matchClass matches c against the class starting at pattern[start] == '['.
// It returns whether c matched, the index after the class, and false if the
// class is not terminated.
func matchClass(c byte, pattern string, start int) (bool, int, bool) {
	i := start + 1
	negate := false
	if i < len(pattern) && pattern[i] == '^' {
		negate = true
		i++
	}

	matched := false
	first := true
	for i < len(pattern) && (first || pattern[i] != ']') {
		first = false
		lo := pattern[i]
		if lo == '\\' && i+1 < len(pattern) {
			i++
			lo = pattern[i]
		}
		hi := lo
		if i+2 < len(pattern) && pattern[i+1] == '-' && pattern[i+2] != ']' {
			hi = pattern[i+2]
			i += 2
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		if c >= lo && c <= hi {
			matched = true
		}
		i++
	}

	if i >= len(pattern) {
		return false, 0, false
	}
	return matched != negate, i + 1, true
}

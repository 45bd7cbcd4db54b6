package tracking

import "bytes"

// History rows are produced by a JSON encoder that writes the non-standard
// tokens NaN, Infinity and -Infinity. They are rewritten into these strings
// before decoding and turned back into floats by numeric.
const (
	nanToken    = "NaN"
	posInfToken = "Infinity"
	negInfToken = "-Infinity"
)

// sanitizeJSON quotes bare NaN and Infinity tokens outside of strings. Input
// without such tokens is returned unchanged.
func sanitizeJSON(in []byte) []byte {
	if !bytes.Contains(in, []byte(nanToken)) && !bytes.Contains(in, []byte(posInfToken)) {
		return in
	}

	out := make([]byte, 0, len(in)+16)
	inString, escaped := false, false
	for i := 0; i < len(in); i++ {
		b := in[i]
		if inString {
			out = append(out, b)
			switch {
			case escaped:
				escaped = false
			case b == '\\':
				escaped = true
			case b == '"':
				inString = false
			}
			continue
		}

		switch {
		case b == '"':
			inString = true
		case bytes.HasPrefix(in[i:], []byte(negInfToken)):
			out = append(out, '"')
			out = append(out, negInfToken...)
			out = append(out, '"')
			i += len(negInfToken) - 1
			continue
		case bytes.HasPrefix(in[i:], []byte(posInfToken)):
			out = append(out, '"')
			out = append(out, posInfToken...)
			out = append(out, '"')
			i += len(posInfToken) - 1
			continue
		case bytes.HasPrefix(in[i:], []byte(nanToken)):
			out = append(out, '"')
			out = append(out, nanToken...)
			out = append(out, '"')
			i += len(nanToken) - 1
			continue
		}
		out = append(out, b)
	}
	return out
}

package whmi

// Command is a frame to be written to the display: either Text or Raw.
type Command interface {
	isCommand()
}

// Text is a hybrid command string decoded by the escape scanner.
type Text string

// Raw is a byte sequence written as is.
type Raw []byte

func (Text) isCommand() {}
func (Raw) isCommand()  {}

// Encode converts cmd into the bytes written to the wire.
//
// Raw commands pass through unchanged. Text commands are scanned left to right:
// "0x" followed by two hex digits becomes one byte, any other character is
// emitted as its ordinal value.
func Encode(cmd Command) ([]byte, error) {
	switch c := cmd.(type) {
	case Raw:
		return []byte(c), nil
	case Text:
		return encodeText(string(c))
	default:
		return nil, ErrConfig
	}
}

// MustEncode is like Encode but panics on error. It is intended for
// constant command texts.
func MustEncode(cmd Command) []byte {
	b, err := Encode(cmd)
	if err != nil {
		panic(err)
	}

	return b
}

func encodeText(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))

	for i := 0; i < len(s); {
		c := s[i]
		if c >= 0x80 {
			return nil, ErrNonASCII
		}

		if c == '0' && i+1 < len(s) && s[i+1] == 'x' {
			if i+4 > len(s) {
				return nil, &MalformedEscapeError{Text: s, Offset: i}
			}
			hi, ok1 := hexValue(s[i+2])
			lo, ok2 := hexValue(s[i+3])
			if !ok1 || !ok2 {
				return nil, &MalformedEscapeError{Text: s, Offset: i}
			}
			out = append(out, hi<<4|lo)
			i += 4

			continue
		}

		out = append(out, c)
		i++
	}

	return out, nil
}

func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

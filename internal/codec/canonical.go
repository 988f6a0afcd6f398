package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const hexDigits = "0123456789abcdef"

// Marshal produces canonical JSON for v. Strings are kept byte for byte;
// a string that is not valid UTF-8 is an error.
//
// v is first encoded with encoding/json (so struct tags and Marshaler
// implementations are honored) and then rewritten into canonical form.
func Marshal(v any) ([]byte, error) {
	raw, err := encode(v)
	if err != nil {
		return nil, err
	}
	return Canonicalize(raw)
}

// MarshalNFC is Marshal with every string NFC normalized. It is meant for
// human-facing snapshots, where visually equal text should compare equal;
// never for data that is stored and read back.
func MarshalNFC(v any) ([]byte, error) {
	raw, err := encode(v)
	if err != nil {
		return nil, err
	}
	return canonicalize(raw, true)
}

// Canonicalize rewrites an arbitrary JSON document into canonical form.
func Canonicalize(raw []byte) ([]byte, error) {
	return canonicalize(raw, false)
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("canonical marshal: %w", err)
	}
	if err := checkReplacement(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("canonical marshal: %w", err)
	}
	return buf.Bytes(), nil
}

// checkReplacement reports invalid UTF-8 in the encoded value. encoding/json
// writes each invalid byte as the escape \ufffd, while a genuine U+FFFD is
// written literally, so the escape only ever comes from invalid input.
func checkReplacement(raw []byte) error {
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' {
			continue
		}
		if bytes.HasPrefix(raw[i+1:], []byte("ufffd")) {
			return fmt.Errorf("string is not valid UTF-8")
		}
		i++
	}
	return nil
}

func canonicalize(raw []byte, nfc bool) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("canonicalize: trailing data after JSON value")
	}

	w := writer{nfc: nfc}
	if err := w.value(tree); err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}
	return w.buf.Bytes(), nil
}

// Unmarshal decodes canonical (or any) JSON into v.
func Unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("canonical unmarshal: %w", err)
	}
	return nil
}

type writer struct {
	buf bytes.Buffer
	nfc bool
}

func (w *writer) value(v any) error {
	buf := &w.buf
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		buf.WriteString(val.String())
	case string:
		w.string(val)
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := w.value(elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.SortFunc(keys, compareUTF16)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			w.string(k)
			buf.WriteByte(':')
			if err := w.value(val[k]); err != nil {
				return fmt.Errorf("value for key %q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported decoded type %T", v)
	}
	return nil
}

// string writes s escaping only what JSON requires. U+2028 and U+2029 are
// written literally.
func (w *writer) string(s string) {
	if w.nfc {
		s = norm.NFC.String(s)
	}
	buf := &w.buf

	buf.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == '"':
			buf.WriteString(`\"`)
		case r == '\\':
			buf.WriteString(`\\`)
		case r == '\b':
			buf.WriteString(`\b`)
		case r == '\f':
			buf.WriteString(`\f`)
		case r == '\n':
			buf.WriteString(`\n`)
		case r == '\r':
			buf.WriteString(`\r`)
		case r == '\t':
			buf.WriteString(`\t`)
		case r < 0x20:
			buf.WriteString(`\u00`)
			buf.WriteByte(hexDigits[r>>4])
			buf.WriteByte(hexDigits[r&0xF])
		default:
			buf.WriteString(s[i : i+size])
		}
		i += size
	}
	buf.WriteByte('"')
}

// compareUTF16 orders strings by UTF-16 code units as RFC 8785 requires.
// Plain string comparison orders by UTF-8 bytes, which differs for
// characters outside the BMP.
func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

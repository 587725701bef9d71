package listener

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return unicode.UTF8, nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("listener: unknown encoding %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("listener: encoding %q is not supported", name)
	}

	return enc, nil
}

// decodeLine converts raw device output to trimmed text. Invalid sequences
// become U+FFFD instead of failing the line.
func decodeLine(enc encoding.Encoding, raw []byte) string {
	s, err := enc.NewDecoder().Bytes(raw)
	if err != nil || !utf8.Valid(s) {
		return strings.TrimSpace(strings.ToValidUTF8(string(raw), string(utf8.RuneError)))
	}

	return strings.TrimSpace(string(s))
}

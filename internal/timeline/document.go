package timeline

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode"
)

// ParseDocument reads an export. The top level is either an array of
// semantic segments or an object with semanticSegments and/or rawSignals.
// Elements whose fields have unexpected types are decoded as far as
// possible rather than failing the whole document.
func ParseDocument(r io.Reader) (*Document, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err != nil {
		return nil, fmt.Errorf("failed to parse timeline JSON: %w", err)
	}

	dec := json.NewDecoder(br)
	var doc Document

	switch first {
	case '[':
		if err := tolerant(dec.Decode(&doc.SemanticSegments)); err != nil {
			return nil, fmt.Errorf("failed to parse timeline JSON: %w", err)
		}
		return &doc, nil

	case '{':
		var top map[string]json.RawMessage
		if err := dec.Decode(&top); err != nil {
			return nil, fmt.Errorf("failed to parse timeline JSON: %w", err)
		}
		segs, hasSegs := top["semanticSegments"]
		raw, hasRaw := top["rawSignals"]
		if !hasSegs && !hasRaw {
			return nil, ErrUnrecognizedShape
		}
		if hasSegs {
			if err := tolerant(json.Unmarshal(segs, &doc.SemanticSegments)); err != nil {
				return nil, fmt.Errorf("decoding semanticSegments: %w", err)
			}
		}
		if hasRaw {
			if err := tolerant(json.Unmarshal(raw, &doc.RawSignals)); err != nil {
				return nil, fmt.Errorf("decoding rawSignals: %w", err)
			}
		}
		return &doc, nil

	default:
		return nil, ErrUnrecognizedShape
	}
}

// tolerant drops field type mismatches, which encoding/json reports only
// after decoding everything else.
func tolerant(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return nil
	}
	return err
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0, io.ErrUnexpectedEOF
			}
			return 0, err
		}
		// skip a UTF-8 byte order mark
		if b == 0xEF {
			if bom, _ := br.Peek(2); len(bom) == 2 && bom[0] == 0xBB && bom[1] == 0xBF {
				br.Discard(2)
				continue
			}
		}
		if !unicode.IsSpace(rune(b)) {
			return b, br.UnreadByte()
		}
	}
}

package tokenizer

import (
	"fmt"

	"github.com/lamim/grporeward/internal/config"
)

// markerTokenizer can look up the id of a whole token by its text
type markerTokenizer interface {
	Tokenizer
	SpecialTokenID(s string) (int, bool)
}

// FromConfig loads the configured tokenizer eagerly. It returns nil when
// neither a tokenizer file nor an encoding is configured, in which case every
// sample must carry its decoded response text.
func FromConfig(cfg config.TokenizeConfig, marker string) (Tokenizer, error) {
	var tok markerTokenizer
	switch {
	case cfg.Path != "":
		hf, err := LoadHuggingFace(cfg.Path)
		if err != nil {
			return nil, err
		}
		tok = hf
	case cfg.Encoding != "":
		tt := NewTiktoken(cfg.Encoding)
		if err := tt.Load(); err != nil {
			return nil, err
		}
		tok = tt
	default:
		return nil, nil
	}

	if err := CheckMarker(tok, marker); err != nil {
		return nil, err
	}
	return tok, nil
}

// CheckMarker verifies that marker is one token which decodes back to itself,
// so a finished response can end with it
func CheckMarker(tok markerTokenizer, marker string) error {
	id, ok := tok.SpecialTokenID(marker)
	if !ok {
		return fmt.Errorf("completion marker %q is not a single token of the configured tokenizer", marker)
	}
	text, err := tok.Decode([]int{id})
	if err != nil {
		return fmt.Errorf("failed to decode completion marker: %w", err)
	}
	if text != marker {
		return fmt.Errorf("completion marker %q decodes to %q", marker, text)
	}
	return nil
}

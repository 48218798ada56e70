package tokenizer

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// HuggingFace decodes ids with the vocabulary of a local tokenizer.json,
// so the policy model's own special tokens survive decoding offline.
type HuggingFace struct {
	path      string
	vocab     map[int]string
	added     map[int]string
	ids       map[string]int
	byteLevel bool
}

type tokenizerFile struct {
	AddedTokens []struct {
		ID      int    `json:"id"`
		Content string `json:"content"`
	} `json:"added_tokens"`
	Decoder *struct {
		Type string `json:"type"`
	} `json:"decoder"`
	PreTokenizer *struct {
		Type string `json:"type"`
	} `json:"pre_tokenizer"`
	Model struct {
		Type  string         `json:"type"`
		Vocab map[string]int `json:"vocab"`
	} `json:"model"`
}

// LoadHuggingFace reads a tokenizer.json file
func LoadHuggingFace(path string) (*HuggingFace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tokenizer file: %w", err)
	}

	var file tokenizerFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse tokenizer file %s: %w", path, err)
	}
	if len(file.Model.Vocab) == 0 {
		return nil, fmt.Errorf("tokenizer file %s has no model vocabulary", path)
	}

	h := &HuggingFace{
		path:  path,
		vocab: make(map[int]string, len(file.Model.Vocab)),
		added: make(map[int]string, len(file.AddedTokens)),
		ids:   make(map[string]int, len(file.Model.Vocab)+len(file.AddedTokens)),
		byteLevel: (file.Decoder != nil && file.Decoder.Type == "ByteLevel") ||
			(file.PreTokenizer != nil && file.PreTokenizer.Type == "ByteLevel"),
	}
	for token, id := range file.Model.Vocab {
		h.vocab[id] = token
		h.ids[token] = id
	}
	for _, t := range file.AddedTokens {
		h.added[t.ID] = t.Content
		h.ids[t.Content] = t.ID
	}
	return h, nil
}

// Decode renders ids as text, keeping special tokens
func (h *HuggingFace) Decode(ids []int) (string, error) {
	var buf []byte
	for _, id := range ids {
		if content, ok := h.added[id]; ok {
			buf = append(buf, content...)
			continue
		}
		token, ok := h.vocab[id]
		if !ok {
			return "", fmt.Errorf("token id %d is not in %s", id, h.path)
		}
		buf = h.appendToken(buf, token)
	}
	return strings.ToValidUTF8(string(buf), "�"), nil
}

func (h *HuggingFace) appendToken(buf []byte, token string) []byte {
	if h.byteLevel {
		for _, r := range token {
			if b, ok := unicodeToByte[r]; ok {
				buf = append(buf, b)
			} else {
				buf = append(buf, string(r)...)
			}
		}
		return buf
	}
	// SentencePiece byte fallback, e.g. <0x0A>
	if len(token) == 6 && strings.HasPrefix(token, "<0x") && strings.HasSuffix(token, ">") {
		if b, err := strconv.ParseUint(token[3:5], 16, 8); err == nil {
			return append(buf, byte(b))
		}
	}
	return append(buf, strings.ReplaceAll(token, "▁", " ")...)
}

// SpecialTokenID returns the id of the single token spelling s
func (h *HuggingFace) SpecialTokenID(s string) (int, bool) {
	if id, ok := h.ids[s]; ok {
		if _, added := h.added[id]; added {
			return id, true
		}
	}
	var key string
	if h.byteLevel {
		var sb strings.Builder
		for i := 0; i < len(s); i++ {
			sb.WriteRune(byteToUnicode[s[i]])
		}
		key = sb.String()
	} else {
		key = strings.ReplaceAll(s, " ", "▁")
	}
	id, ok := h.ids[key]
	return id, ok
}

// byteToUnicode is the GPT-2 byte-level alphabet: printable bytes map to
// themselves, the rest to code points from U+0100 upwards
var byteToUnicode, unicodeToByte = buildByteAlphabet()

func buildByteAlphabet() ([256]rune, map[rune]byte) {
	var forward [256]rune
	backward := make(map[rune]byte, 256)
	printable := func(b int) bool {
		return ('!' <= b && b <= '~') || (0xA1 <= b && b <= 0xAC) || (0xAE <= b && b <= 0xFF)
	}
	n := 0
	for b := 0; b < 256; b++ {
		r := rune(b)
		if !printable(b) {
			r = rune(256 + n)
			n++
		}
		forward[b] = r
		backward[r] = byte(b)
	}
	return forward, backward
}

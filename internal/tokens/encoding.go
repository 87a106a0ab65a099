package tokens

import (
	"fmt"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Encoding counts tokens for a model's tokenizer family. Implementations must be
// safe for concurrent use; a single Encoding is shared across all requests.
type Encoding interface {
	Count(text string) int
}

// DefaultEncodingName is the tokenizer family used by the GPT-4 class of models.
const DefaultEncodingName = "cl100k_base"

type tiktokenEncoding struct {
	enc *tiktoken.Tiktoken
}

// NewEncoding returns an Encoding backed by tiktoken.
func NewEncoding(name string) (Encoding, error) {
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, fmt.Errorf("getting encoding %q: %w", name, err)
	}
	return &tiktokenEncoding{enc: enc}, nil
}

func (t *tiktokenEncoding) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

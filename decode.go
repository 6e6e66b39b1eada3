package miniprompt

import (
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
	"github.com/tailscale/hujson"
)

// Decoder turns a text payload into a structured value. Implementations are
// expected to tolerate minor syntactic deviations from their grammar; a
// payload that cannot be recovered fails with an error carrying the position
// and reason.
type Decoder interface {
	Decode(text string, v any) error
}

// LenientJSON decodes JSON that may carry comments and trailing commas, the
// usual deviations in model output. The payload is standardized with hujson
// first and then decoded strictly.
type LenientJSON struct{}

// Decode implements Decoder.
func (LenientJSON) Decode(text string, v any) error {
	standardized, err := hujson.Standardize([]byte(text))
	if err != nil {
		return goerr.Wrap(err, "failed to standardize JSON", goerr.V("text", text))
	}
	if err := json.Unmarshal(standardized, v); err != nil {
		return goerr.Wrap(err, "failed to decode JSON", goerr.V("text", text))
	}
	return nil
}

// DecodeBlock extracts the fenced block selected by the query and decodes its
// body with the given decoder. The two stages fail independently: a missing
// block surfaces ErrNoMatchingBlock, a found but undecodable block surfaces
// the decoder's error. If dec is nil, LenientJSON is used.
func DecodeBlock(text string, q BlockQuery, dec Decoder, v any) error {
	block, err := ExtractBlock(text, q)
	if err != nil {
		return err
	}
	if dec == nil {
		dec = LenientJSON{}
	}
	return dec.Decode(block, v)
}

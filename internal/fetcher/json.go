package fetcher

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// MaxJSONBytes caps how much of a response body DecodeJSON will read.
const MaxJSONBytes = 32 << 20

// DecodeJSON decodes one JSON value of type T from r, reading at most
// MaxJSONBytes.
func DecodeJSON[T any](r io.Reader) (*T, error) {
	var v T
	if err := json.NewDecoder(io.LimitReader(r, MaxJSONBytes)).Decode(&v); err != nil {
		return nil, eris.Wrap(err, "fetcher: decode json")
	}
	return &v, nil
}

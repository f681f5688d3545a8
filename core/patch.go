package core

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Patch is a partial update: the top-level attributes present in a request body.
// An attribute absent from the body is absent from the Patch; a present `null` is kept.
type Patch map[string]json.RawMessage

func (p Patch) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Merge overlays p on the JSON encoding of src and decodes the result into dst, which
// should point to a zero value. Present attributes replace the stored ones as a whole;
// protected attributes are never overwritten.
func (p Patch) Merge(src, dst interface{}, protected ...string) error {
	data, err := json.Marshal(src)
	if err != nil {
		return errors.Wrap(err, "encoding patched document")
	}
	attrs := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &attrs); err != nil {
		return errors.Wrap(err, "decoding patched document")
	}

	skip := make(map[string]struct{}, len(protected))
	for _, k := range protected {
		skip[k] = struct{}{}
	}
	for k, v := range p {
		if _, ok := skip[k]; ok {
			continue
		}
		attrs[k] = v
	}

	if data, err = json.Marshal(attrs); err != nil {
		return errors.Wrap(err, "encoding patched document")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return NewValidationError(errors.Wrap(err, "invalid attribute"))
	}
	return nil
}

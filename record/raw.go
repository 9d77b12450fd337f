package record

import "encoding/json"

// Raw is a Payload that has not been decoded into its typed struct yet.
// Ingestion boundaries hand payloads over as JSON; wrapping them in Raw
// defers decoding until validation, which lets the validator distinguish an
// omitted field from a zero value.
type Raw struct {
	Type Type
	Data json.RawMessage
}

// RecordType implements Payload.
func (r Raw) RecordType() Type { return r.Type }

// RawJSON wraps raw payload bytes for the given record type.
func RawJSON(t Type, data []byte) Raw {
	return Raw{Type: t, Data: data}
}

// Normalize returns the typed payload for p, decoding Raw payloads as needed.
func Normalize(t Type, p Payload) (Payload, error) {
	if raw, ok := p.(Raw); ok {
		return DecodePayload(t, raw.Data)
	}
	return p, nil
}

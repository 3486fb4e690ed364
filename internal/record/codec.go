package record

import (
	"bytes"
	"encoding/json"

	"github.com/iamNilotpal/seafair/pkg/errors"
)

// JSONCodec is the default record-body codec. Bodies are stored as
// compact JSON objects, so value blobs remain inspectable with ordinary
// tooling.
type JSONCodec struct{}

// Encode marshals the field map to compact JSON.
func (JSONCodec) Encode(fields Fields) ([]byte, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, errors.NewRecordError(err, errors.ErrorCodeRecordCodecFailure, "failed to encode record body")
	}
	return data, nil
}

// Decode unmarshals a stored body back into a field map. Numbers decode
// as json.Number so integer keys survive a round trip without drifting
// through float64.
func (JSONCodec) Decode(data []byte) (Fields, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var fields Fields
	if err := decoder.Decode(&fields); err != nil {
		return nil, errors.NewRecordError(err, errors.ErrorCodeRecordCodecFailure, "failed to decode record body")
	}
	return fields, nil
}

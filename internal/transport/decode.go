package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var cborDecoder = func() cbor.DecMode {
	mode, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return mode
}()

func decodeJSON(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode json frame: %w", err)
	}
	return v, nil
}

func decodeCBOR(data []byte) (any, error) {
	var v any
	if err := cborDecoder.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode cbor frame: %w", err)
	}
	return v, nil
}

// decodeFrame sniffs untyped payloads: JSON documents start with an
// object or array, anything else is treated as CBOR.
func decodeFrame(data []byte) (any, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return decodeJSON(trimmed)
	}
	return decodeCBOR(data)
}

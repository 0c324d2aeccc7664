// Package json is the single JSON codec used for wire envelopes, manifests and
// dispatcher results. It is a drop-in for encoding/json backed by jsoniter.
package json

import (
	"bytes"
	stdjson "encoding/json"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	Marshal       = json.Marshal
	MarshalIndent = json.MarshalIndent
	Unmarshal     = json.Unmarshal
	NewDecoder    = json.NewDecoder
	NewEncoder    = json.NewEncoder
	Valid         = json.Valid
)

// RawMessage is the standard library type so values stay portable to codecs
// that do not know jsoniter.
type RawMessage = stdjson.RawMessage

type Decoder = jsoniter.Decoder

type Encoder = jsoniter.Encoder

// Number is the literal type produced by DecodeNumbers.
type Number = stdjson.Number

// DecodeNumbers unmarshals data into v keeping numeric literals as Number so
// integers survive without a float64 round trip.
func DecodeNumbers(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

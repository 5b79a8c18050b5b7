package security

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName is the content subtype used by the service.
const CodecName = "json"

func init() { //nolint:gochecknoinits // Codecs must be registered before any server or client starts.
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec marshals gRPC messages as JSON.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return CodecName
}

package network

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// Name of the content subtype both ends negotiate on.
const CodecName = "json"

// jsonCodec carries plain Go structs over gRPC. Messages keep the same JSON
// shape as the snapshot file so a block on the wire and a block on disk are
// the same document.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

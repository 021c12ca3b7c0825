package wire

import (
	"encoding/json"
)

// Codec carries the envelopes over gRPC without generated protobuf types.
// The server forces it with grpc.ForceServerCodec, clients with grpc.ForceCodec.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (Codec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (Codec) Name() string { return "json" }

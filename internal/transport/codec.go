package transport

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// codecName 是客户端通过 CallContentSubtype 选择的编解码器名称
const codecName = "json"

// jsonCodec 使用 JSON 编码消息，消息类型是普通的 Go 结构体
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return codecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

package encoding

import (
	"encoding/json"
	"mime"
	"strings"
)

// Content types understood by the host API.
const (
	ContentTypeJSON    = "application/json"
	ContentTypeMsgPack = "application/msgpack"
)

// Codec serializes host API payloads for one content type.
type Codec interface {
	ContentType() string
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
}

type jsonCodec struct{}

func (jsonCodec) ContentType() string                        { return ContentTypeJSON }
func (jsonCodec) Marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

type msgpackCodec struct{}

func (msgpackCodec) ContentType() string                        { return ContentTypeMsgPack }
func (msgpackCodec) Marshal(v interface{}) ([]byte, error)      { return Marshal(v) }
func (msgpackCodec) Unmarshal(data []byte, v interface{}) error { return Unmarshal(data, v) }

var (
	JSON    Codec = jsonCodec{}
	MsgPack Codec = msgpackCodec{}
)

// ForContentType picks the codec for a request body. Unknown or missing
// types fall back to JSON.
func ForContentType(contentType string) Codec {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return JSON
	}
	if isMsgPack(mediaType) {
		return MsgPack
	}
	return JSON
}

// Negotiate picks the response codec from an Accept header. The first
// listed type that has a codec wins; JSON is the default.
func Negotiate(accept string) Codec {
	for _, part := range strings.Split(accept, ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		if isMsgPack(mediaType) {
			return MsgPack
		}
		if mediaType == ContentTypeJSON {
			return JSON
		}
	}
	return JSON
}

func isMsgPack(mediaType string) bool {
	switch mediaType {
	case ContentTypeMsgPack, "application/x-msgpack", "application/vnd.msgpack":
		return true
	}
	return false
}

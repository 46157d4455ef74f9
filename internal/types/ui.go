package types

// PreviewFrame is pushed to websocket clients. Pixels is the packed
// RGB24 visual buffer; encoding/json renders it as base64.
type PreviewFrame struct {
	Type   string `json:"type"`
	Seq    uint64 `json:"seq"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Pixels []byte `json:"pixels"`
}

// MessageTypePreview tags a PreviewFrame message.
const MessageTypePreview = "preview"

package wsbridge

// Frame types exchanged with the chat driver.
const (
	frameQR            = "qr"
	frameAuthenticated = "authenticated"
	frameReady         = "ready"
	frameAuthFailure   = "auth_failure"
	frameDisconnected  = "disconnected"
	frameSendResult    = "send_result"
	frameSend          = "send"
)

// inboundFrame is the union of every frame the driver sends.
type inboundFrame struct {
	Type   string `json:"type"`
	QR     string `json:"qr,omitempty"`
	Reason string `json:"reason,omitempty"`
	Detail string `json:"detail,omitempty"`
	ID     string `json:"id,omitempty"`
	OK     bool   `json:"ok,omitempty"`
	Error  string `json:"error,omitempty"`
}

type sendFrame struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	ChatID  string `json:"chat_id"`
	Content string `json:"content"`
}

package http

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsReadLimit = 64 << 10
	wsPongWait  = 60 * time.Second
	wsWriteWait = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// streamReply is one WebSocket reply frame: a prediction or an error.
type streamReply struct {
	Label         *int      `json:"label,omitempty"`
	Risk          string    `json:"risk,omitempty"`
	Confidence    *float64  `json:"confidence,omitempty"`
	Probabilities []float64 `json:"probabilities,omitempty"`
	Status        int       `json:"status,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// handleWebSocket reads one JSON record per text frame and answers each
// with a prediction. A bad record produces an error frame and keeps the
// connection open.
func (h *Handlers) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	ctx := r.Context()
	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		if messageType != websocket.TextMessage {
			continue
		}

		reply := h.streamPredict(r, payload)
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(reply); err != nil {
			h.logger.Warn("websocket write failed", zap.Error(err))
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (h *Handlers) streamPredict(r *http.Request, payload []byte) streamReply {
	record, err := h.validator.decode(payload)
	if err != nil {
		return streamReply{Status: statusFor(err), Error: err.Error()}
	}

	prediction, err := h.predict(r.Context(), record, SourceWebSocket)
	if err != nil {
		return streamReply{Status: statusFor(err), Error: err.Error()}
	}
	return streamReply{
		Label:         &prediction.Label,
		Risk:          prediction.Risk,
		Confidence:    &prediction.Confidence,
		Probabilities: prediction.Probabilities,
	}
}

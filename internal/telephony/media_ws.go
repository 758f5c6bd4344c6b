package telephony

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"callpilot/internal/relay"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// MediaHandler upgrades /media/:call_id and pumps the provider's media
// stream into the relay session for that call.
type MediaHandler struct {
	relay    *relay.Manager
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewMediaHandler(relayMgr *relay.Manager, log *slog.Logger) *MediaHandler {
	if log == nil {
		log = slog.Default()
	}
	return &MediaHandler{
		relay: relayMgr,
		log:   log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The provider connects server-to-server; there is no
			// browser origin to check.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *MediaHandler) Handle(c *gin.Context) {
	callID := c.Param("call_id")
	if callID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "call_id is required"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("media stream upgrade failed", "call_id", callID, "error", err)
		return
	}
	defer conn.Close()

	out := &wsOutbound{conn: conn, timeout: 5 * time.Second}
	sess, err := h.relay.StartSession(c.Request.Context(), callID, out)
	if err != nil {
		h.log.Error("relay session not started", "call_id", callID, "error", err)
		return
	}
	defer sess.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Warn("media stream read failed", "call_id", callID, "error", err)
			}
			return
		}

		var msg StreamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.log.Warn("unparseable stream message", "call_id", callID, "error", err)
			continue
		}

		switch msg.Event {
		case StreamEventConnected:
			// Handshake frame, nothing to do yet.
		case StreamEventStart:
			if msg.Start != nil {
				sess.HandleStart(msg.Start.StreamSid)
			}
		case StreamEventMedia:
			if msg.Media == nil {
				continue
			}
			payload, err := base64.StdEncoding.DecodeString(msg.Media.Payload)
			if err != nil {
				// One bad frame is skipped, the stream continues.
				h.log.Warn("invalid media payload", "call_id", callID, "error", err)
				continue
			}
			sess.HandleMedia(payload)
		case StreamEventStop:
			sess.HandleStop()
			return
		}
	}
}

// wsOutbound adapts the websocket connection to relay.Outbound.
// gorilla allows a single writer, so sends are serialized.
type wsOutbound struct {
	conn    *websocket.Conn
	timeout time.Duration
	mu      sync.Mutex
}

func (o *wsOutbound) SendMedia(streamSID string, frame []byte) error {
	msg, err := EncodeOutboundMedia(streamSID, base64.StdEncoding.EncodeToString(frame))
	if err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	_ = o.conn.SetWriteDeadline(time.Now().Add(o.timeout))
	return o.conn.WriteMessage(websocket.TextMessage, msg)
}

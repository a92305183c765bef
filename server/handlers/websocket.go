package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/calder-vision/framewatch/server/models"
	"github.com/calder-vision/framewatch/server/processor"
)

// WebSocketHandler streams frames in and analysis results out over a
// single connection. Each connection is its own stream: frames from one
// socket always hit the same detector instance.
type WebSocketHandler struct {
	processor *processor.FrameProcessor
	logger    *zap.Logger
	upgrader  websocket.Upgrader
}

// ClientMessage is one inbound WebSocket message. Type is "frame",
// "reset", or "ping"; frame messages carry a base64 data URL plus the
// optional engine parameters.
type ClientMessage struct {
	Type            string  `json:"type"`
	Data            string  `json:"data"`
	Timestamp       int64   `json:"timestamp"`
	Threshold       float32 `json:"threshold"`
	MinAreaFraction float32 `json:"min_area_fraction"`
	BlurKernelSize  uint32  `json:"blur_kernel_size"`
	ForceRebaseline bool    `json:"force_rebaseline"`
}

// ServerMessage is one outbound WebSocket message.
type ServerMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// NewWebSocketHandler creates the handler.
func NewWebSocketHandler(p *processor.FrameProcessor, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		processor: p,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWebSocket handles GET /ws.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	clientID := conn.RemoteAddr().String()
	h.logger.Info("websocket client connected", zap.String("client_id", clientID))

	conn.SetReadLimit(10 * 1024 * 1024)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	done := make(chan struct{})
	go h.pingLoop(conn, done)
	defer close(done)

	for {
		var message ClientMessage
		if err := conn.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		h.handleMessage(conn, clientID, &message)
	}
}

func (h *WebSocketHandler) handleMessage(conn *websocket.Conn, clientID string, message *ClientMessage) {
	switch message.Type {
	case "frame":
		h.analyzeFrame(conn, clientID, message)
	case "reset":
		h.processor.ResetDetector(clientID)
		h.sendMessage(conn, "reset", gin.H{"status": "ok"})
	case "ping":
		h.sendMessage(conn, "pong", gin.H{"timestamp": time.Now().Unix()})
	default:
		h.logger.Warn("unknown message type", zap.String("type", message.Type))
		h.sendError(conn, "unknown message type: "+message.Type)
	}
}

func (h *WebSocketHandler) analyzeFrame(conn *websocket.Conn, clientID string, message *ClientMessage) {
	imageData, err := decodeDataURL(message.Data)
	if err != nil {
		h.logger.Warn("invalid frame payload", zap.Error(err))
		h.sendError(conn, "invalid image data format")
		return
	}

	request := &models.FrameRequest{
		ImageData:       imageData,
		Timestamp:       message.Timestamp,
		ClientID:        clientID,
		Threshold:       message.Threshold,
		MinAreaFraction: message.MinAreaFraction,
		BlurKernelSize:  message.BlurKernelSize,
		ForceRebaseline: message.ForceRebaseline,
	}

	result, err := h.processor.ProcessFrame(request)
	if err != nil {
		h.logger.Error("frame processing failed", zap.Error(err))
		h.sendError(conn, "frame processing failed")
		return
	}

	h.sendMessage(conn, "analysis", result)
}

func (h *WebSocketHandler) sendMessage(conn *websocket.Conn, messageType string, data any) {
	if err := conn.WriteJSON(ServerMessage{Type: messageType, Data: data}); err != nil {
		h.logger.Warn("failed to send websocket message", zap.Error(err))
	}
}

func (h *WebSocketHandler) sendError(conn *websocket.Conn, msg string) {
	h.sendMessage(conn, "error", gin.H{
		"message":   msg,
		"timestamp": time.Now().Unix(),
	})
}

func (h *WebSocketHandler) pingLoop(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

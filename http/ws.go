package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"storkagent/tools"
)

// QuoteStreamer 按订阅代码定期推送实时行情
type QuoteStreamer struct {
	tools    *tools.Tools
	upgrader websocket.Upgrader
	interval time.Duration
	log      *zap.Logger
}

type subscribeRequest struct {
	Codes []string `json:"codes"`
}

type quoteMessage struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

func NewQuoteStreamer(t *tools.Tools, log *zap.Logger) *QuoteStreamer {
	return &QuoteStreamer{
		tools: t,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		interval: 10 * time.Second,
		log:      log,
	}
}

// Handle upgrades the connection, reads one subscribe message and then
// pushes quotes until the client goes away.
func (qs *QuoteStreamer) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := qs.upgrader.Upgrade(w, r, nil)
	if err != nil {
		qs.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	var sub subscribeRequest
	if err := conn.ReadJSON(&sub); err != nil || len(sub.Codes) == 0 {
		conn.WriteJSON(map[string]string{"error": "expected a subscribe message: {\"codes\": [...]}"})
		return
	}
	conn.SetReadDeadline(time.Time{})

	// 客户端断开由读循环发现
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(qs.interval)
	defer ticker.Stop()

	qs.push(conn, sub.Codes)
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if !qs.push(conn, sub.Codes) {
				return
			}
		}
	}
}

func (qs *QuoteStreamer) push(conn *websocket.Conn, codes []string) bool {
	quotes := make([]interface{}, 0, len(codes))
	for _, code := range codes {
		q, err := qs.tools.QueryStock(code)
		if err != nil {
			qs.log.Debug("quote push skipped", zap.String("code", code), zap.Error(err))
			continue
		}
		quotes = append(quotes, q)
	}

	raw, err := json.Marshal(quoteMessage{Type: "quotes", Timestamp: time.Now(), Data: quotes})
	if err != nil {
		return false
	}
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, raw) == nil
}

package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iamhimansu/template-repeater/internal/batch"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed for the client to send its render request.
	requestWait = 30 * time.Second
	// Time to wait for the peer's close frame before dropping the connection.
	closeGracePeriod = 2 * time.Second
	// Outgoing messages buffered ahead of the writer.
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Stream message types.
const (
	MsgSession = "session"
	MsgSheet   = "sheet"
	MsgDone    = "done"
	MsgError   = "error"
)

// StreamMessage is one server-to-client websocket frame.
type StreamMessage struct {
	Type        string         `json:"type"`
	SessionID   string         `json:"session_id,omitempty"`
	Paper       string         `json:"paper,omitempty"`
	Orientation string         `json:"orientation,omitempty"`
	TotalPages  int            `json:"total_pages,omitempty"`
	Sheet       *batch.Sheet   `json:"sheet,omitempty"`
	Summary     *batch.Summary `json:"summary,omitempty"`
	Error       string         `json:"error,omitempty"`
	Code        string         `json:"code,omitempty"`
}

// handleStream reads a single render request from the socket, then sends a
// session frame, one sheet frame per flush and a final done (or error) frame
// before closing.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	logger := s.logger.With(zap.String("request_id", RequestID(r.Context())))

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	conn.SetReadLimit(s.cfg.MaxBodyBytes)
	_ = conn.SetReadDeadline(time.Now().Add(requestWait))

	var req batch.Request
	if err := readJSON(conn, &req); err != nil {
		logger.Info("Invalid stream request", zap.Error(err))
		s.closeStream(conn, websocket.CloseUnsupportedData, StreamMessage{Type: MsgError, Error: err.Error(), Code: "malformed-request"}, logger)
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	session, err := batch.Prepare(req, s.template, logger)
	if err != nil {
		s.closeStream(conn, websocket.ClosePolicyViolation, StreamMessage{Type: MsgError, Error: err.Error(), Code: codeFor(err)}, logger)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The reader only watches for the peer going away; it owns all reads from here on.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	messages := make(chan StreamMessage, sendBuffer)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(messages)
		send := func(msg StreamMessage) error {
			select {
			case messages <- msg:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		}

		if err := send(StreamMessage{
			Type:        MsgSession,
			SessionID:   session.ID(),
			Paper:       session.Paper(),
			Orientation: session.Orientation(),
			TotalPages:  session.TotalPages(),
		}); err != nil {
			return err
		}

		summary, err := batch.Run(gctx, session, req.Records, func(sheet batch.Sheet) error {
			return send(StreamMessage{Type: MsgSheet, Sheet: &sheet})
		}, logger)
		if err != nil {
			if gctx.Err() != nil {
				return err
			}
			return send(StreamMessage{Type: MsgError, Error: err.Error(), Code: codeFor(err)})
		}
		return send(StreamMessage{Type: MsgDone, Summary: &summary})
	})

	g.Go(func() error {
		for msg := range messages {
			if err := writeJSON(conn, msg); err != nil {
				return err
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Warn("Stream aborted", zap.Error(err))
		}
		_ = conn.Close()
		<-readerDone
		return
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	select {
	case <-readerDone:
	case <-time.After(closeGracePeriod):
		_ = conn.Close()
		<-readerDone
	}
}

// closeStream sends a final message and a close frame, then waits briefly for
// the peer to acknowledge. Only used before the reader goroutine starts.
func (s *Server) closeStream(conn *websocket.Conn, code int, msg StreamMessage, logger *zap.Logger) {
	if err := writeJSON(conn, msg); err != nil {
		logger.Debug("Failed to send final stream message", zap.Error(err))
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, msg.Code),
		time.Now().Add(writeWait))
	_ = conn.SetReadDeadline(time.Now().Add(closeGracePeriod))
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func readJSON(conn *websocket.Conn, v any) error {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

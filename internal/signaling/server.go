package signaling

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/cnotch/xlog"
	"github.com/gorilla/websocket"
)

var errNoHandler = errors.New("no offer handler")

// OfferHandler turns a remote offer into the local answer.
type OfferHandler func(stream string, offer json.RawMessage) (json.RawMessage, error)

// Server answers offers on Path. Each websocket carries one exchange.
type Server struct {
	onOffer  OfferHandler
	logger   *xlog.Logger
	upgrader websocket.Upgrader
}

func NewServer(onOffer OfferHandler, logger *xlog.Logger) *Server {
	return &Server{
		onOffer: onOffer,
		logger:  logger,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 5 * time.Second,
			CheckOrigin:      func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP handler serving Path.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(Path, s.serveSignal)
	return mux
}

func (s *Server) serveSignal(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnf("signaling upgrade from %s: %v", r.RemoteAddr, err)
		return
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		s.logger.Warnf("signaling read from %s: %v", r.RemoteAddr, err)
		return
	}
	if msg.Type != TypeOffer {
		conn.WriteJSON(Message{Type: TypeError, Msg: "expected offer"})
		return
	}
	if s.onOffer == nil {
		conn.WriteJSON(Message{Type: TypeError, Msg: errNoHandler.Error()})
		return
	}

	answer, err := s.onOffer(msg.Stream, msg.Payload)
	if err != nil {
		s.logger.Errorf("handle offer from %s: %v", r.RemoteAddr, err)
		conn.WriteJSON(Message{Type: TypeError, Msg: err.Error()})
		return
	}
	if err := conn.WriteJSON(Message{Type: TypeAnswer, Payload: answer}); err != nil {
		s.logger.Warnf("signaling send answer to %s: %v", r.RemoteAddr, err)
	}
}

package bus

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/mfekete/exfil/backend/internal/logger"
)

// Hub is the host message bus. Each execution context (background, popup,
// configuration window) connects once under a unique name; every frame a
// context posts is delivered to all other connected contexts. Delivery is
// asynchronous and carries no request/response linkage; correlation is the
// envelope protocol's own concern.
type Hub struct {
	mu       sync.RWMutex
	contexts map[string]*session
	log      *logger.Logger
}

type session struct {
	name    string
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (s *session) write(frame []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		contexts: make(map[string]*session),
		log:      log,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The hub binds to localhost and only serves the extension's own
		// contexts; there is no cross-origin surface to defend.
		return true
	},
}

// Handler returns the HTTP handler contexts connect to.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/bus", h.handle)
	return mux
}

// handle upgrades the connection and pumps its frames to the other contexts.
// The context identifies itself via the ?context= query parameter, the same
// way browser-side WebSocket clients pass identity when they cannot set
// headers.
func (h *Hub) handle(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("context")
	if name == "" {
		h.log.Warnf("bus", "connection without a context name rejected")
		http.Error(w, "context query parameter is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("bus", "failed to upgrade connection for context %q: %v", name, err)
		return
	}

	sess := &session{name: name, conn: conn}
	h.register(sess)
	defer h.unregister(sess)

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			h.log.Debugf("bus", "context %q disconnected: %v", name, err)
			return
		}
		h.route(name, frame)
	}
}

// register adds the session, replacing a stale connection under the same
// name (a reopened popup or window supersedes its previous incarnation).
func (h *Hub) register(sess *session) {
	h.mu.Lock()
	stale := h.contexts[sess.name]
	h.contexts[sess.name] = sess
	h.mu.Unlock()

	if stale != nil {
		h.log.Infof("bus", "context %q reconnected, closing stale connection", sess.name)
		_ = stale.conn.Close()
	}

	h.log.Infof("bus", "context %q connected", sess.name)
}

func (h *Hub) unregister(sess *session) {
	h.mu.Lock()
	if h.contexts[sess.name] == sess {
		delete(h.contexts, sess.name)
	}
	h.mu.Unlock()

	_ = sess.conn.Close()
}

// route delivers a frame to every context except its sender. A failed write
// only loses that one recipient; the sender is never told, matching the
// fire-and-forget bus contract.
func (h *Hub) route(sender string, frame []byte) {
	h.mu.RLock()
	recipients := make([]*session, 0, len(h.contexts))
	for name, sess := range h.contexts {
		if name != sender {
			recipients = append(recipients, sess)
		}
	}
	h.mu.RUnlock()

	for _, sess := range recipients {
		if err := sess.write(frame); err != nil {
			h.log.Warnf("bus", "failed to deliver frame to context %q: %v", sess.name, err)
		}
	}
}

// ActiveContexts returns the number of connected contexts.
func (h *Hub) ActiveContexts() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.contexts)
}

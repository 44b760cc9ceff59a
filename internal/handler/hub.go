package handler

import (
	"encoding/json"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/visionpointmarketing/troy-sandbox/internal/logger"
	"github.com/visionpointmarketing/troy-sandbox/internal/models"
	"github.com/visionpointmarketing/troy-sandbox/internal/service"
	"github.com/visionpointmarketing/troy-sandbox/internal/validation"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = pongWait * 9 / 10
	sendBuffer  = 32
	maxReadSize = 1 << 20
)

// Event types pushed to websocket clients.
const (
	EventChange  = "change"
	EventHistory = "history"
	EventCanvas  = "canvas"
	EventError   = "error"
)

type changeEvent struct {
	Type     string           `json:"type"`
	Sections []models.Section `json:"sections"`
}

type historyEvent struct {
	Type    string `json:"type"`
	CanUndo bool   `json:"canUndo"`
	CanRedo bool   `json:"canRedo"`
}

type canvasEvent struct {
	Type         string `json:"type"`
	Markup       string `json:"markup"`
	SectionCount int    `json:"sectionCount"`
}

type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ClientMessage is an editing action sent by the browser while a field
// editor is active. Input updates the field silently; blur commits it.
type ClientMessage struct {
	Action    string  `json:"action"`
	SectionID string  `json:"sectionId"`
	Field     string  `json:"field"`
	Value     *string `json:"value,omitempty"`
}

type client struct {
	conn *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// offer queues data without blocking. It reports false when the buffer is
// full; a closed client accepts and discards everything.
func (c *client) offer(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// room is the set of clients watching one session, with the store and
// canvas subscriptions that feed them.
type room struct {
	clients map[*client]struct{}
	stops   []func()
}

// Hub pushes document, history and canvas updates of a session to every
// websocket client connected to it.
type Hub struct {
	upgrader websocket.Upgrader
	log      *logger.Logger

	mu    sync.Mutex
	rooms map[uuid.UUID]*room
}

// NewHub returns a hub accepting connections from allowedOrigins. Same
// host requests and requests without an Origin header are always accepted.
func NewHub(allowedOrigins []string, log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	h := &Hub{
		log:   log.With("component", "hub"),
		rooms: make(map[uuid.UUID]*room),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin) {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && u.Host == r.Host
		},
	}
	return h
}

// Serve upgrades the request and streams sess events until the client leaves.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, sess *service.Session) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.join(sess, c)

	log := h.log.With("session_id", sess.ID.String())
	log.Debug("client connected", "remote", conn.RemoteAddr().String())

	go h.writePump(c)
	h.readPump(sess, c, log)

	h.leave(sess.ID, c)
	log.Debug("client disconnected", "remote", conn.RemoteAddr().String())
}

func (h *Hub) join(sess *service.Session, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rm, ok := h.rooms[sess.ID]
	if !ok {
		rm = &room{clients: make(map[*client]struct{})}
		id := sess.ID
		rm.stops = []func(){
			sess.Store.Subscribe(func(sections []models.Section) {
				h.broadcast(id, changeEvent{Type: EventChange, Sections: sections})
			}),
			sess.Store.SubscribeHistory(func(canUndo, canRedo bool) {
				h.broadcast(id, historyEvent{Type: EventHistory, CanUndo: canUndo, CanRedo: canRedo})
			}),
			sess.Canvas.OnRender(func(markup string, count int) {
				h.broadcast(id, canvasEvent{Type: EventCanvas, Markup: markup, SectionCount: count})
			}),
		}
		h.rooms[sess.ID] = rm
	}
	rm.clients[c] = struct{}{}

	// The snapshot is queued under h.mu, which every broadcast also takes:
	// a change either shows up in the snapshot or is broadcast after it.
	h.queue(c, changeEvent{Type: EventChange, Sections: sess.Store.Sections()})
	h.queue(c, historyEvent{Type: EventHistory, CanUndo: sess.Store.CanUndo(), CanRedo: sess.Store.CanRedo()})
	h.queue(c, canvasEvent{Type: EventCanvas, Markup: sess.Canvas.Markup(), SectionCount: sess.Canvas.SectionCount()})
}

func (h *Hub) leave(id uuid.UUID, c *client) {
	h.mu.Lock()
	rm, ok := h.rooms[id]
	var stops []func()
	if ok {
		delete(rm.clients, c)
		if len(rm.clients) == 0 {
			stops = rm.stops
			delete(h.rooms, id)
		}
	}
	h.mu.Unlock()

	c.close()
	for _, stop := range stops {
		stop()
	}
}

// Disconnect closes every client of a session.
func (h *Hub) Disconnect(id uuid.UUID) {
	h.mu.Lock()
	rm, ok := h.rooms[id]
	delete(h.rooms, id)
	h.mu.Unlock()
	if !ok {
		return
	}
	for c := range rm.clients {
		c.close()
	}
	for _, stop := range rm.stops {
		stop()
	}
}

// Clients returns the number of clients connected to a session.
func (h *Hub) Clients(id uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if rm, ok := h.rooms[id]; ok {
		return len(rm.clients)
	}
	return 0
}

// broadcast runs inside store notifications, so it never blocks: a client
// whose buffer is full is dropped.
func (h *Hub) broadcast(id uuid.UUID, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error("encoding event failed", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	rm, ok := h.rooms[id]
	if !ok {
		return
	}
	for c := range rm.clients {
		if !c.offer(data) {
			h.log.Warn("dropping slow websocket client", "session_id", id.String())
			delete(rm.clients, c)
			c.close()
		}
	}
}

func (h *Hub) queue(c *client, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error("encoding event failed", "error", err)
		return
	}
	c.offer(data)
}

func (h *Hub) readPump(sess *service.Session, c *client, log *logger.Logger) {
	c.conn.SetReadLimit(maxReadSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("unexpected websocket close", "error", err)
			}
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			h.queue(c, errorEvent{Type: EventError, Message: "malformed message"})
			continue
		}
		if err := applyClientMessage(sess, msg); err != nil {
			h.queue(c, errorEvent{Type: EventError, Message: err.Error()})
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type messageError string

func (e messageError) Error() string { return string(e) }

func applyClientMessage(sess *service.Session, msg ClientMessage) error {
	if msg.Action == "focus" || msg.Action == "input" || (msg.Action == "blur" && msg.Value != nil) {
		if err := validation.ValidateFieldKey(msg.Field); err != nil {
			return err
		}
	}
	switch msg.Action {
	case "focus":
		if _, ok := sess.Store.Section(msg.SectionID); !ok {
			return messageError("section not found")
		}
		sess.Guard.Focus(msg.SectionID, msg.Field)
	case "input":
		if msg.Value == nil {
			return messageError("input requires a value")
		}
		sess.Store.UpdateSectionSilent(msg.SectionID, msg.Field, *msg.Value)
	case "blur":
		if msg.Value == nil {
			sess.Guard.Blur()
			return nil
		}
		sess.Commit(msg.SectionID, msg.Field, *msg.Value)
	default:
		return messageError("unknown action " + msg.Action)
	}
	return nil
}

// Package broadcast fans weight updates out to every open websocket so that
// other people looking at the grid see changes live. Delivery is best effort:
// a client that falls behind loses messages rather than slowing anyone down.
package broadcast

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/fridayweigh/weights/src/jobs"
	"github.com/fridayweigh/weights/src/logging"
	"github.com/fridayweigh/weights/src/oops"
	"github.com/gorilla/websocket"
)

const (
	TypeWeightUpdated = "weight_updated"
	TypeWeightDeleted = "weight_deleted"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	defaultSendBuffer = 16
	maxMessageSize    = 4096
)

type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type Hub struct {
	sendBuffer int
	upgrader   websocket.Upgrader

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

func NewHub() *Hub {
	return &Hub{
		sendBuffer: defaultSendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		subs: make(map[*Subscription]struct{}),
	}
}

// A Subscription receives encoded messages on C until it is closed, either
// by calling Close or by the hub shutting down.
type Subscription struct {
	C <-chan []byte

	hub  *Hub
	c    chan []byte
	once sync.Once
}

func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.closeLocked()
}

func (s *Subscription) closeLocked() {
	s.once.Do(func() {
		delete(s.hub.subs, s)
		close(s.c)
	})
}

// Register adds a subscriber. After the hub has shut down the returned
// subscription is already closed.
func (h *Hub) Register() *Subscription {
	c := make(chan []byte, h.sendBuffer)
	sub := &Subscription{C: c, hub: h, c: c}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		sub.closeLocked()
		return sub
	}
	h.subs[sub] = struct{}{}
	return sub
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Broadcast sends msg to every subscriber without blocking. Subscribers whose
// buffers are full miss the message.
func (h *Hub) Broadcast(msg Message) error {
	encoded, err := json.Marshal(msg)
	if err != nil {
		return oops.New(err, "failed to encode %s message", msg.Type)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	dropped := 0
	for sub := range h.subs {
		select {
		case sub.c <- encoded:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		logging.Debug().Str("type", msg.Type).Int("dropped", dropped).Msg("websocket clients too slow, dropped message")
	}
	return nil
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for sub := range h.subs {
		sub.closeLocked()
	}
}

// Run starts the hub's job. Canceling the job disconnects every client.
func (h *Hub) Run() *jobs.Job {
	job := jobs.New("websocket hub")
	go func() {
		defer job.Finish()
		<-job.Canceled()
		n := h.Len()
		h.shutdown()
		job.Logger.Debug().Int("clients", n).Msg("closed websocket clients")
	}()
	return job
}

// ServeWS upgrades the request to a websocket and streams broadcasts to it
// until either side goes away. It blocks for the lifetime of the connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written an error response.
		return oops.New(err, "failed to upgrade websocket")
	}
	defer conn.Close()

	sub := h.Register()
	defer sub.Close()

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		conn.SetReadLimit(maxMessageSize)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			// Clients have nothing to say; reading just processes control frames.
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	defer func() {
		conn.Close()
		<-readerDone
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-sub.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return nil
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return nil
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case <-readerDone:
			return nil
		}
	}
}

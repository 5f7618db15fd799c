package websockets

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/scythe504/mathdash-backend/internal"
	"github.com/scythe504/mathdash-backend/internal/game"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBuffer     = 256
)

// Gateway binds each WebSocket connection to a (room, player) pair,
// translates inbound frames into coordinator commands, and fans
// outbound notifications back to every member of the affected room.
type Gateway struct {
	game     *game.Service
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	rooms map[string]map[*Conn]bool
}

// Conn is one client connection. Id doubles as the player identity for
// the lifetime of the connection.
type Conn struct {
	Id     string
	RoomId string

	ws     *websocket.Conn
	send   chan []byte
	done   chan struct{}
	gw     *Gateway
	joined bool
}

func NewGateway() *Gateway {
	return &Gateway{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		rooms: make(map[string]map[*Conn]bool),
	}
}

// Bind attaches the coordinator after construction; the gateway and the
// game service reference each other, so one side has to come second.
func (g *Gateway) Bind(svc *game.Service) {
	g.game = svc
}

// HandleWebSocket upgrades the request and starts the connection pumps.
// The room id comes from the route; the connection may only ever act on
// that room.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]
	if roomID == "" {
		http.Error(w, "missing room id", http.StatusBadRequest)
		return
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := &Conn{
		Id:     uuid.NewString(),
		RoomId: roomID,
		ws:     ws,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		gw:     g,
	}

	log.Info().
		Str("conn_id", conn.Id).
		Str("room_id", roomID).
		Msg("connection established")

	go conn.writePump()
	go conn.readPump()
}

// BroadcastToRoom implements game.Broadcaster. A member whose send
// buffer is full is treated as dead and dropped; its read pump then
// exits and runs the normal leave path.
func (g *Gateway) BroadcastToRoom(roomID string, msg internal.Message[any]) {
	g.mu.RLock()
	members := make([]*Conn, 0, len(g.rooms[roomID]))
	for c := range g.rooms[roomID] {
		members = append(members, c)
	}
	g.mu.RUnlock()

	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("type", msg.Type).Msg("failed to marshal broadcast")
		return
	}

	for _, c := range members {
		select {
		case c.send <- data:
		default:
			log.Warn().Str("conn_id", c.Id).Msg("send buffer full, dropping connection")
			g.unregister(c)
			c.ws.Close()
		}
	}
}

func (g *Gateway) register(c *Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.rooms[c.RoomId] == nil {
		g.rooms[c.RoomId] = make(map[*Conn]bool)
	}
	g.rooms[c.RoomId][c] = true
}

func (g *Gateway) unregister(c *Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()

	// c.send is never closed: broadcasts from other goroutines may still
	// hold a snapshot containing this connection. The write pump exits on
	// its own once the underlying socket is closed.
	if members, ok := g.rooms[c.RoomId]; ok {
		if members[c] {
			delete(members, c)
			if len(members) == 0 {
				delete(g.rooms, c.RoomId)
			}
		}
	}
}

func (c *Conn) readPump() {
	defer func() {
		if c.joined {
			c.gw.game.Leave(c.RoomId, c.Id)
		}
		c.gw.unregister(c)
		c.ws.Close()
		close(c.done)
		log.Info().Str("conn_id", c.Id).Str("room_id", c.RoomId).Msg("connection closed")
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("conn_id", c.Id).Msg("unexpected close")
			}
			return
		}
		c.handleMessage(raw)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case data := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// handleMessage decodes one inbound frame and dispatches it. Every
// failure path ends in either a coordinator call or a structured
// rejection to this connection only.
func (c *Conn) handleMessage(raw []byte) {
	var msg internal.Message[json.RawMessage]
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("bad_message", "malformed message")
		return
	}

	switch msg.Type {
	case "join_room":
		var data internal.JoinRoomData
		if err := json.Unmarshal(msg.Data, &data); err != nil || data.Username == "" {
			c.sendError("bad_message", "join_room requires roomId and username")
			return
		}
		if data.RoomId != c.RoomId {
			c.sendError("wrong_room", "connection is bound to another room")
			return
		}
		c.gw.register(c)
		c.joined = true
		c.gw.game.Join(c.RoomId, c.Id, data.Username)

	case "start_game":
		if !c.requireJoined() {
			return
		}
		var data internal.StartGameData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("bad_message", "malformed start_game payload")
			return
		}
		if data.RoomId != c.RoomId {
			c.sendError("wrong_room", "connection is bound to another room")
			return
		}
		if _, err := internal.ParseMode(string(data.Config.Mode)); err != nil {
			c.sendError("bad_mode", err.Error())
			return
		}
		if err := c.gw.game.Start(c.RoomId, data.Config); err != nil {
			c.reject(err)
		}

	case "player_answer":
		if !c.requireJoined() {
			return
		}
		var data internal.PlayerAnswerData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("bad_message", "malformed player_answer payload")
			return
		}
		if data.RoomId != c.RoomId {
			c.sendError("wrong_room", "connection is bound to another room")
			return
		}
		if err := c.gw.game.SubmitAnswer(c.RoomId, c.Id, data.AnswerId); err != nil {
			c.reject(err)
		}

	default:
		log.Debug().Str("conn_id", c.Id).Str("type", msg.Type).Msg("unknown message type")
		c.sendError("unknown_type", "unknown message type")
	}
}

func (c *Conn) requireJoined() bool {
	if !c.joined {
		c.sendError("not_joined", "join_room must be sent first")
		return false
	}
	return true
}

// reject maps coordinator errors onto wire-level rejections. Invalid
// references and invalid phases never mutate state; the client just
// gets told why nothing happened.
func (c *Conn) reject(err error) {
	switch {
	case err == nil:
		return
	case errors.Is(err, game.ErrRoomNotFound):
		c.sendError("room_not_found", err.Error())
	case errors.Is(err, game.ErrNotPlaying):
		c.sendError("not_playing", err.Error())
	case errors.Is(err, game.ErrGameRunning):
		c.sendError("game_running", err.Error())
	case errors.Is(err, game.ErrNotInRoom):
		c.sendError("not_in_room", err.Error())
	default:
		c.sendError("rejected", err.Error())
	}
}

func (c *Conn) sendError(code, message string) {
	msg := internal.Message[any]{
		Type: "error",
		Data: internal.ErrorData{Code: code, Message: message},
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

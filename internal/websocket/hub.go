package websocket

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"hokenhub/internal/metrics"
	"hokenhub/internal/middleware"
	"hokenhub/internal/model"
	"hokenhub/internal/repository"
	"hokenhub/internal/service"
	"hokenhub/internal/token"
	"hokenhub/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

// Client is one directory feed subscriber bound to a single facility
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	facility string
	send     chan []byte
}

type facilityMessage struct {
	facility string
	payload  []byte
}

// Hub fans plan events out to the subscribers of the event's facility
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan facilityMessage
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	closeOnce  sync.Once
	tokens     *token.Service
	users      middleware.UserLookup
	upgrader   websocket.Upgrader
	log        *logrus.Logger
}

// NewHub builds a hub; allowedOrigins empty means any origin may connect
func NewHub(tokens *token.Service, users middleware.UserLookup, allowedOrigins []string, log *logrus.Logger) *Hub {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan facilityMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		tokens:     tokens,
		users:      users,
		log:        log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(origins) == 0 || origin == "" || origins[origin]
			},
		},
	}
}

// Run dispatches until Close is called
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			metrics.WebsocketClients.Inc()
			h.log.WithField("facility", client.facility).Debug("websocket client connected")
		case client := <-h.unregister:
			h.drop(client)
		case msg := <-h.broadcast:
			for client := range h.clients {
				if client.facility != msg.facility {
					continue
				}
				select {
				case client.send <- msg.payload:
				default:
					h.drop(client)
				}
			}
		case <-h.done:
			for client := range h.clients {
				h.drop(client)
			}
			return
		}
	}
}

func (h *Hub) drop(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	metrics.WebsocketClients.Dec()
}

// Close stops Run and disconnects every client
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// PublishPlanEvent queues event for the facility's subscribers without blocking the caller
func (h *Hub) PublishPlanEvent(event service.PlanEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.WithError(err).Warn("encode plan event")
		return
	}
	select {
	case h.broadcast <- facilityMessage{facility: event.FacilityName, payload: payload}:
	case <-h.done:
	default:
		h.log.WithField("plan_id", event.PlanID).Warn("websocket broadcast queue full, dropping plan event")
	}
}

// ServeWs authenticates the ?token= access token against the live user record
// and subscribes the connection to the token's active facility
func (h *Hub) ServeWs(c *gin.Context) {
	raw := c.Query("token")
	if raw == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Not authorized, no token"))
		return
	}

	claims, err := h.tokens.Verify(raw, token.Access)
	if err != nil {
		msg := "Not authorized, token failed"
		if errors.Is(err, token.ErrTokenExpired) {
			msg = "Token expired"
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, msg))
		return
	}
	user, err := h.users.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Not authorized, user not found"))
			return
		}
		h.log.WithError(err).Error("websocket: load user")
		c.AbortWithStatusJSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Internal server error"))
		return
	}
	if !user.IsApproved || !model.ContainsFacility(user.FacilityAccess, claims.ActiveFacility) {
		c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Unauthorized or missing facility access."))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := &Client{hub: h, conn: conn, facility: claims.ActiveFacility, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

// readPump only watches for disconnects; clients never send data
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.WithError(err).Debug("websocket read error")
			}
			return
		}
	}
}

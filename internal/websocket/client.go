package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/helpgrid/fieldtrack/backend/internal/config"
	"github.com/helpgrid/fieldtrack/backend/internal/geo"
	"github.com/helpgrid/fieldtrack/backend/internal/metrics"
	"github.com/helpgrid/fieldtrack/backend/internal/types"
)

// Client is a middleman between the websocket connection and the hub
type Client struct {
	// Unique client ID
	id string

	// The hub this client belongs to
	hub *Hub

	// The websocket connection
	conn *websocket.Conn

	// Buffered channel of outbound messages
	send chan []byte

	// Configuration
	config *config.Config

	// Logger
	logger zerolog.Logger

	// Viewport subscription for snapshot filtering; nil means everything
	viewMu   sync.RWMutex
	viewport *geo.Bounds
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, cfg *config.Config, logger zerolog.Logger) *Client {
	clientID := uuid.New().String()
	return &Client{
		id:     clientID,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		config: cfg,
		logger: logger.With().Str("client_id", clientID).Logger(),
	}
}

// readPump pumps messages from the websocket connection to the hub
//
// The application runs readPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
		metrics.Get().RecordWebSocketDisconnect()
	}()

	c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error().Err(err).Msg("websocket read error")
			}
			break
		}
		metrics.Get().RecordWebSocketMessage()
		c.handleMessage(message)
	}
}

// handleMessage applies a viewport subscription sent by the dashboard
func (c *Client) handleMessage(message []byte) {
	var req types.ViewportRequest
	if err := json.Unmarshal(message, &req); err != nil || req.Type != "viewport" {
		c.logger.Debug().Str("message", string(message)).Msg("ignoring unknown client message")
		return
	}

	c.viewMu.Lock()
	c.viewport = &geo.Bounds{
		North: req.North,
		South: req.South,
		East:  req.East,
		West:  req.West,
	}
	c.viewMu.Unlock()

	c.logger.Debug().
		Float64("north", req.North).
		Float64("south", req.South).
		Msg("viewport updated")
}

// writePump pumps messages from the hub to the websocket connection
//
// A goroutine running writePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.config.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start starts the client's read and write pumps
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// FilterSnapshot scopes a snapshot to the client's viewport. Clusters whose
// center falls outside the viewport are dropped; the status breakdown is
// recomputed over the remaining members. Returns nil if nothing is visible.
// Without a viewport subscription the full snapshot is passed through.
func (c *Client) FilterSnapshot(snapshot *types.MapSnapshot) *types.MapSnapshot {
	c.viewMu.RLock()
	viewport := c.viewport
	c.viewMu.RUnlock()

	if viewport == nil {
		return snapshot
	}

	var visible []types.Cluster
	summary := make(map[types.AgentStatus]int)
	for _, cluster := range snapshot.Clusters {
		if !viewport.Contains(geo.Point{Lat: cluster.Lat, Lng: cluster.Lng}) {
			continue
		}
		visible = append(visible, cluster)
		for _, agent := range cluster.Agents {
			summary[agent.Status]++
		}
	}

	if len(visible) == 0 {
		return nil
	}

	return &types.MapSnapshot{
		Type:      snapshot.Type,
		Timestamp: snapshot.Timestamp,
		ZoomLevel: snapshot.ZoomLevel,
		Clusters:  visible,
		Summary:   summary,
	}
}

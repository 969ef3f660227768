package websocket

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 512
	sendBuffer     = 64
)

// Message types pushed to clients.
const (
	MessageTypeNotification = "notification"
	MessageTypeInboxChanged = "inbox_changed"
	MessageTypeStatus       = "status"
	MessageTypePing         = "ping"
)

// ErrNotConnected is returned when the user has no open connection.
var ErrNotConnected = errors.New("user not connected")

// Message is the JSON frame exchanged with clients.
type Message struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Target    string                 `json:"target,omitempty"`
}

// Manager tracks live connections per user and routes messages to them.
type Manager struct {
	connections map[string]*Connection
	mu          sync.RWMutex
	upgrader    websocket.Upgrader
	logger      *zap.Logger
	closed      bool
}

// Connection is one client socket of a user.
type Connection struct {
	ID           string
	UserID       uuid.UUID
	Conn         *websocket.Conn
	Send         chan Message
	ConnectedAt  time.Time
	LastActivity time.Time
	UserAgent    string
	IPAddress    string
	mu           sync.Mutex
	closeOnce    sync.Once
}

// NewManager creates a manager. allowedOrigins empty accepts any origin.
func NewManager(allowedOrigins []string, logger *zap.Logger) *Manager {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Manager{
		connections: make(map[string]*Connection),
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 || allowed["*"] {
					return true
				}
				return allowed[r.Header.Get("Origin")]
			},
		},
	}
}

// HandleConnection upgrades the request and registers the socket for userID.
func (m *Manager) HandleConnection(w http.ResponseWriter, r *http.Request, userID uuid.UUID) (*Connection, error) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	now := time.Now()
	connection := &Connection{
		ID:           uuid.New().String(),
		UserID:       userID,
		Conn:         conn,
		Send:         make(chan Message, sendBuffer),
		ConnectedAt:  now,
		LastActivity: now,
		UserAgent:    r.Header.Get("User-Agent"),
		IPAddress:    r.RemoteAddr,
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		conn.Close()
		return nil, fmt.Errorf("websocket manager is closed")
	}
	m.connections[connection.ID] = connection
	m.mu.Unlock()
	m.logger.Debug("Websocket connected", zap.String("connection_id", connection.ID), zap.String("user_id", userID.String()))

	connection.Send <- Message{
		Type:      MessageTypeStatus,
		Data:      map[string]interface{}{"status": "connected", "connection_id": connection.ID},
		Timestamp: now,
		Target:    userID.String(),
	}

	go m.readPump(connection)
	go m.writePump(connection)
	return connection, nil
}

// readPump only keeps the socket alive; clients do not send commands.
func (m *Manager) readPump(conn *Connection) {
	defer m.unregister(conn)

	conn.Conn.SetReadLimit(maxMessageSize)
	conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.touch()
		return nil
	})

	for {
		var msg Message
		if err := conn.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				m.logger.Warn("Websocket closed unexpectedly", zap.String("connection_id", conn.ID), zap.Error(err))
			}
			return
		}
		conn.touch()
		if msg.Type == MessageTypePing {
			m.trySend(conn, Message{Type: MessageTypeStatus, Data: map[string]interface{}{"status": "pong"}, Timestamp: time.Now()})
		}
	}
}

func (m *Manager) writePump(conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.Conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (m *Manager) unregister(conn *Connection) {
	m.mu.Lock()
	delete(m.connections, conn.ID)
	m.mu.Unlock()
	conn.close()
	m.logger.Debug("Websocket disconnected", zap.String("connection_id", conn.ID), zap.String("user_id", conn.UserID.String()))
}

// trySend drops the message when the client is not keeping up.
func (m *Manager) trySend(conn *Connection, message Message) bool {
	defer func() {
		// the connection may have been closed concurrently
		_ = recover()
	}()
	select {
	case conn.Send <- message:
		return true
	default:
		m.logger.Warn("Websocket buffer full, dropping message", zap.String("connection_id", conn.ID))
		return false
	}
}

// SendToUser delivers message to every connection of userID.
func (m *Manager) SendToUser(userID uuid.UUID, message Message) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	message.Target = userID.String()
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}
	found, sent := 0, 0
	for _, conn := range m.connections {
		if conn.UserID != userID {
			continue
		}
		found++
		if m.trySend(conn, message) {
			sent++
		}
	}
	if found == 0 {
		return ErrNotConnected
	}
	if sent == 0 {
		return fmt.Errorf("user connection buffer full")
	}
	return nil
}

// Broadcast sends message to every connected user.
func (m *Manager) Broadcast(message Message) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}
	for _, conn := range m.connections {
		m.trySend(conn, message)
	}
}

// IsConnected reports whether userID has at least one open socket.
func (m *Manager) IsConnected(userID uuid.UUID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, conn := range m.connections {
		if conn.UserID == userID {
			return true
		}
	}
	return false
}

// GetConnectionCount returns the number of active connections
func (m *Manager) GetConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// ConnectionInfo represents connection information for monitoring
type ConnectionInfo struct {
	ConnectionID string    `json:"connection_id"`
	UserID       uuid.UUID `json:"user_id"`
	ConnectedAt  time.Time `json:"connected_at"`
	LastActivity time.Time `json:"last_activity"`
	UserAgent    string    `json:"user_agent"`
	IPAddress    string    `json:"ip_address"`
}

// GetConnectionInfo returns information about all active connections
func (m *Manager) GetConnectionInfo() []ConnectionInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info := make([]ConnectionInfo, 0, len(m.connections))
	for _, conn := range m.connections {
		conn.mu.Lock()
		info = append(info, ConnectionInfo{
			ConnectionID: conn.ID,
			UserID:       conn.UserID,
			ConnectedAt:  conn.ConnectedAt,
			LastActivity: conn.LastActivity,
			UserAgent:    conn.UserAgent,
			IPAddress:    conn.IPAddress,
		})
		conn.mu.Unlock()
	}
	return info
}

// DisconnectUser closes every socket of userID.
func (m *Manager) DisconnectUser(userID uuid.UUID) {
	m.mu.RLock()
	var conns []*Connection
	for _, conn := range m.connections {
		if conn.UserID == userID {
			conns = append(conns, conn)
		}
	}
	m.mu.RUnlock()

	for _, conn := range conns {
		conn.Conn.Close()
	}
}

// Close closes all connections. Later upgrades are refused.
func (m *Manager) Close() {
	m.mu.Lock()
	conns := m.connections
	m.connections = make(map[string]*Connection)
	m.closed = true
	m.mu.Unlock()

	for _, conn := range conns {
		conn.close()
	}
}

func (c *Connection) touch() {
	c.mu.Lock()
	c.LastActivity = time.Now()
	c.mu.Unlock()
}

func (c *Connection) close() {
	c.closeOnce.Do(func() { close(c.Send) })
}

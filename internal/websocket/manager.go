package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"productive-cloud/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type ClientMessage struct {
	Client  *Client
	Message []byte
}

type Manager struct {
	clients        map[string]*Client
	userIndex      map[string]map[string]bool
	clientsMutex   sync.RWMutex
	Register       chan *Client
	Unregister     chan *Client
	HandleMessage  chan *ClientMessage
	maxConnPerUser int
	writeWait      time.Duration
	pongWait       time.Duration
	pingPeriod     time.Duration
	messageHandler MessageHandler
	connections    prometheus.Gauge
	logger         *zap.Logger
}

type MessageHandler interface {
	HandleWebSocketMessage(client *Client, msg *Message) error
}

func NewManager(maxConnPerUser int, writeWait, pongWait, pingPeriod time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		clients:        make(map[string]*Client),
		userIndex:      make(map[string]map[string]bool),
		Register:       make(chan *Client),
		Unregister:     make(chan *Client),
		HandleMessage:  make(chan *ClientMessage),
		maxConnPerUser: maxConnPerUser,
		writeWait:      writeWait,
		pongWait:       pongWait,
		pingPeriod:     pingPeriod,
		logger:         logger.Named("websocket"),
	}
}

func (m *Manager) SetMessageHandler(handler MessageHandler) {
	m.messageHandler = handler
}

// SetConnectionGauge mirrors the registered client count into g.
func (m *Manager) SetConnectionGauge(g prometheus.Gauge) {
	m.connections = g
}

func (m *Manager) Run() {
	for {
		select {
		case client := <-m.Register:
			m.registerClient(client)

		case client := <-m.Unregister:
			m.unregisterClient(client)

		case clientMsg := <-m.HandleMessage:
			m.processMessage(clientMsg)
		}
	}
}

func (m *Manager) registerClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if m.userIndex[client.UserID] == nil {
		m.userIndex[client.UserID] = make(map[string]bool)
	}

	if len(m.userIndex[client.UserID]) >= m.maxConnPerUser {
		m.logger.Warn("max connections reached", zap.String("user_id", client.UserID))
		close(client.Send)
		return
	}

	m.clients[client.ID] = client
	m.userIndex[client.UserID][client.ID] = true
	if m.connections != nil {
		m.connections.Inc()
	}

	m.logger.Info("client registered",
		zap.String("client_id", client.ID),
		zap.String("user_id", client.UserID),
		zap.String("device_id", client.DeviceID),
	)
}

func (m *Manager) unregisterClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if _, ok := m.clients[client.ID]; ok {
		delete(m.clients, client.ID)
		delete(m.userIndex[client.UserID], client.ID)

		if len(m.userIndex[client.UserID]) == 0 {
			delete(m.userIndex, client.UserID)
		}

		close(client.Send)
		if m.connections != nil {
			m.connections.Dec()
		}
		m.logger.Info("client unregistered", zap.String("client_id", client.ID))
	}
}

func (m *Manager) processMessage(clientMsg *ClientMessage) {
	var msg Message
	if err := json.Unmarshal(clientMsg.Message, &msg); err != nil {
		m.logger.Debug("dropping malformed message", zap.Error(err))
		return
	}

	if m.messageHandler != nil {
		if err := m.messageHandler.HandleWebSocketMessage(clientMsg.Client, &msg); err != nil {
			m.logger.Warn("error handling message", zap.String("type", string(msg.Type)), zap.Error(err))
		}
	}
}

// BroadcastToUser queues message for every connection of userID except the
// ones opened by excludeDeviceID. Clients whose buffer is full are dropped.
func (m *Manager) BroadcastToUser(userID string, message *Message, excludeDeviceID string) error {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	var slow []*Client

	m.clientsMutex.RLock()
	for clientID := range m.userIndex[userID] {
		client := m.clients[clientID]
		if excludeDeviceID != "" && client.DeviceID == excludeDeviceID {
			continue
		}
		if !client.Enqueue(messageBytes) {
			slow = append(slow, client)
		}
	}
	m.clientsMutex.RUnlock()

	for _, client := range slow {
		m.logger.Warn("send buffer full, closing connection", zap.String("client_id", client.ID))
		go func(c *Client) { m.Unregister <- c }(client)
	}

	return nil
}

func (m *Manager) SendToClient(clientID string, message *Message) error {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	client, exists := m.clients[clientID]
	if !exists {
		return nil
	}

	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	if !client.Enqueue(messageBytes) {
		m.logger.Warn("send buffer full", zap.String("client_id", clientID))
	}

	return nil
}

func (m *Manager) GetUserConnections(userID string) int {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	if clients, exists := m.userIndex[userID]; exists {
		return len(clients)
	}
	return 0
}

// DatasetChanged fans a dataset_update out to the user's other devices.
func (m *Manager) DatasetChanged(userID, deviceID string, dataset *domain.Dataset) {
	msg, err := NewMessage(TypeDatasetUpdate, &DatasetUpdatePayload{
		DataType:     string(dataset.DataType),
		Version:      dataset.Version,
		LastModified: dataset.LastModified,
		DeviceID:     deviceID,
	})
	if err != nil {
		m.logger.Error("failed to build dataset update", zap.Error(err))
		return
	}

	if err := m.BroadcastToUser(userID, msg, deviceID); err != nil {
		m.logger.Error("failed to broadcast dataset update", zap.Error(err))
	}
}

// DatasetDeleted tells every device of userID that dataType is gone.
func (m *Manager) DatasetDeleted(userID, deviceID string, dataType domain.DataType) {
	msg, err := NewMessage(TypeDatasetDelete, &DatasetUpdatePayload{
		DataType: string(dataType),
		DeviceID: deviceID,
	})
	if err != nil {
		m.logger.Error("failed to build dataset delete", zap.Error(err))
		return
	}

	if err := m.BroadcastToUser(userID, msg, deviceID); err != nil {
		m.logger.Error("failed to broadcast dataset delete", zap.Error(err))
	}
}

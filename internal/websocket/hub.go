package websocket

import (
	"encoding/json"
	"sync"
	"time"
)

// WalletUpdate is pushed to a user's sockets after a committed coin movement.
type WalletUpdate struct {
	Type         string    `json:"type"`
	Coins        int64     `json:"coins"`
	TotalEarned  int64     `json:"total_earned"`
	StepsCounted int64     `json:"steps_counted"`
	LastUpdated  time.Time `json:"last_updated"`
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*Client]struct{})
	}
	h.clients[userID][client] = struct{}{}
}

func (h *Hub) Unregister(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		return
	}
	delete(h.clients[userID], client)
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
}

// BroadcastWallet never blocks: slow clients drop updates.
func (h *Hub) BroadcastWallet(userID string, update WalletUpdate) {
	if update.Type == "" {
		update.Type = "wallet"
	}
	payload, _ := json.Marshal(update)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[userID] {
		select {
		case client.send <- payload:
		default:
		}
	}
}

func (h *Hub) ClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

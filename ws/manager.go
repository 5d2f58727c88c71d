package ws

import (
	"context"
	"sync"
	"time"

	"reviewhub_backend/internal/logger"
)

// Event - сообщение, уходящее в сокет дашборда
type Event struct {
	Type   string      `json:"type"`
	ShopID string      `json:"shopId"`
	Data   interface{} `json:"data"`
	Time   time.Time   `json:"time"`
}

// Hub держит сокеты владельцев магазинов и рассылает им события магазина
type Hub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Event
	done       chan struct{}
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Event, 256),
		done:       make(chan struct{}),
	}
}

// Run обслуживает регистрацию и рассылку до отмены ctx
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			set, ok := h.clients[client.ShopID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.ShopID] = set
			}
			set[client] = struct{}{}
			h.mu.Unlock()
			logger.Debug("websocket client registered", "shop_id", client.ShopID, "connections", len(set))

		case client := <-h.unregister:
			h.remove(client)

		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

// PublishToShop не блокирует вызывающего: при переполненной очереди событие теряется
func (h *Hub) PublishToShop(shopID, eventType string, payload interface{}) {
	event := &Event{Type: eventType, ShopID: shopID, Data: payload, Time: time.Now().UTC()}
	select {
	case h.broadcast <- event:
	default:
		logger.Warn("websocket broadcast queue is full, event dropped", "shop_id", shopID, "type", eventType)
	}
}

func (h *Hub) attach(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) detach(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ShopConnections - число открытых сокетов магазина
func (h *Hub) ShopConnections(shopID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[shopID])
}

func (h *Hub) deliver(event *Event) {
	h.mu.RLock()
	var slow []*Client
	for client := range h.clients[event.ShopID] {
		select {
		case client.send <- event:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	// медленный клиент отключается, а не тормозит остальных
	for _, client := range slow {
		logger.Warn("websocket client is too slow, disconnecting", "shop_id", client.ShopID)
		h.remove(client)
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[client.ShopID]
	if !ok {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	close(client.send)
	if len(set) == 0 {
		delete(h.clients, client.ShopID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for shopID, set := range h.clients {
		for client := range set {
			close(client.send)
		}
		delete(h.clients, shopID)
	}
}

package websocket

import (
	"context"
	"encoding/json"

	"github.com/storefront-api/internal/domain"
)

// OrderUpdate is the message pushed to a user's open connections.
type OrderUpdate struct {
	OrderID string             `json:"order_id"`
	Status  domain.OrderStatus `json:"status"`
}

type userUpdate struct {
	userID string
	update OrderUpdate
}

type Client struct {
	id     string
	hub    *Hub
	conn   *Conn
	send   chan []byte
	userID string
}

// Hub fans order updates out to every connection of the owning user.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan userUpdate
	done       chan struct{}
	clients    map[string]map[*Client]bool
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan userUpdate, 64),
		done:       make(chan struct{}),
		clients:    make(map[string]map[*Client]bool),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			set, ok := h.clients[c.userID]
			if !ok {
				set = make(map[*Client]bool)
				h.clients[c.userID] = set
			}
			set[c] = true
		case c := <-h.unregister:
			h.drop(c)
		case u := <-h.broadcast:
			msg, err := json.Marshal(u.update)
			if err != nil {
				continue
			}
			for c := range h.clients[u.userID] {
				select {
				case c.send <- msg:
				default:
					h.drop(c)
				}
			}
		case <-ctx.Done():
			for _, set := range h.clients {
				for c := range set {
					close(c.send)
				}
			}
			h.clients = map[string]map[*Client]bool{}
			return
		}
	}
}

func (h *Hub) drop(c *Client) {
	set, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if set[c] {
		delete(set, c)
		close(c.send)
	}
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
}

// PublishOrderUpdate queues an update for userID's connections. It never
// blocks the caller; updates are discarded once the hub has stopped.
func (h *Hub) PublishOrderUpdate(userID, orderID string, status domain.OrderStatus) {
	u := userUpdate{userID: userID, update: OrderUpdate{OrderID: orderID, Status: status}}
	select {
	case h.broadcast <- u:
	case <-h.done:
	default:
		go func() {
			select {
			case h.broadcast <- u:
			case <-h.done:
			}
		}()
	}
}

func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Package websocket — рассылка событий чата и безопасности
// подключенным клиентам админки.
package websocket

import (
	"encoding/json"
	"log"
)

// Hub обрабатывает WebSocket соединения
type Hub struct {
	// Зарегистрированные клиенты
	clients map[*Client]bool

	// Входящие сообщения для рассылки
	broadcast chan []byte

	// Регистрация клиента
	Register chan *Client

	// Отмена регистрации клиента
	Unregister chan *Client
}

// NewHub создает новый Hub
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 64),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// Run запускает Hub
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.clients[client] = true
			log.Printf("Клиент подключился. Всего клиентов: %d", len(h.clients))
		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				log.Printf("Клиент отключился. Всего клиентов: %d", len(h.clients))
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// Broadcast отправляет сообщение всем подключенным клиентам
func (h *Hub) Broadcast(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Ошибка при маршализации сообщения: %v", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		log.Printf("Канал рассылки переполнен, событие отброшено")
	}
}

// BroadcastRaw отправляет уже сериализованное сообщение всем клиентам
func (h *Hub) BroadcastRaw(data []byte) {
	select {
	case h.broadcast <- data:
	default:
		log.Printf("Канал рассылки переполнен, событие отброшено")
	}
}

// SecurityAlert реализует security.AlertSink: блокировки безопасности
// уходят в админку тем же каналом, что и события чата
func (h *Hub) SecurityAlert(event interface{}) {
	data, err := NewSecurityAlertMessage(event)
	if err != nil {
		log.Printf("Ошибка при маршализации оповещения безопасности: %v", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		log.Printf("Канал рассылки переполнен, оповещение отброшено")
	}
}

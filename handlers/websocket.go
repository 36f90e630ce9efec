package handlers

import (
	"visionchatserver/websocket"
)

// WebSocketHub — общий хаб для рассылки событий чата в админку
var WebSocketHub *websocket.Hub

// SetWebSocketHub устанавливает хаб (вызывается из main)
func SetWebSocketHub(hub *websocket.Hub) {
	WebSocketHub = hub
}

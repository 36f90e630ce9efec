package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"visionchatserver/middleware"
	"visionchatserver/websocket"
)

// ServeWs обрабатывает WebSocket-подключение админки.
// Токен передается query-параметром, т.к. браузерный WebSocket
// не умеет ставить заголовок Authorization.
func ServeWs(c *gin.Context) {
	log.Printf("ServeWs: новое соединение от %s, origin: %s",
		c.ClientIP(), c.Request.Header.Get("Origin"))

	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Отсутствует токен"})
		return
	}

	claims, err := middleware.ValidateToken(token)
	if err != nil {
		log.Printf("ServeWs: ошибка валидации токена: %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Неверный токен"})
		return
	}

	log.Printf("ServeWs: аутентифицирован admin %s", claims.AdminID)
	client := websocket.ServeWs(WebSocketHub, c.Writer, c.Request, claims.AdminID, processWebSocketMessage)
	if client == nil {
		return
	}

	// Сразу после подключения отправляем текущий список сессий
	if data, err := websocket.NewSessionListMessage(Sessions.List()); err == nil {
		client.SendRaw(data)
	}
}

// processWebSocketMessage разбирает входящее сообщение админки и
// выполняет запрошенное действие.
func processWebSocketMessage(client *websocket.Client, raw []byte) {
	var msg websocket.WebSocketMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Printf("processWebSocketMessage: некорректный JSON от %s: %v", client.AdminID, err)
		client.SendError("Некорректный формат сообщения")
		return
	}

	switch msg.Type {
	case "get_chats":
		if data, err := websocket.NewSessionListMessage(Sessions.List()); err == nil {
			client.SendRaw(data)
		}
	case "ping":
		if data, err := websocket.NewMessage("pong", nil); err == nil {
			client.SendRaw(data)
		}
	default:
		log.Printf("processWebSocketMessage: неизвестный тип %q от %s", msg.Type, client.AdminID)
		client.SendError("Неизвестный тип сообщения: " + msg.Type)
	}
}

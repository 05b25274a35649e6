package ws

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"agrimarket/config"
	"agrimarket/middleware"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, allowed := range config.AppConfig.CORSOrigins {
			if allowed == "*" || allowed == origin {
				return true
			}
		}
		return false
	},
}

// HandleUserWebSocket upgrades GET /api/ws?token=... and streams the
// caller's events until the client disconnects.
func HandleUserWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token query parameter is required"})
		return
	}
	user, status, msg := middleware.Authenticate(c, token)
	if user == nil {
		c.JSON(status, gin.H{"error": msg})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("ws: upgrade failed:", err)
		return
	}
	userID := user.ID
	H.Register(userID, conn)
	defer H.Unregister(userID, conn)
	log.Printf("ws: user %d connected", userID)

	H.SendTo(userID, []byte(`{"type":"connected"}`))

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	log.Printf("ws: user %d disconnected", userID)
}

package rest

import (
	"peer-chat/auth"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes binds the chat endpoints to g. Authentication is expected to be
// installed on g by the caller.
func RegisterRoutes(g *gin.RouterGroup, h *ChatHandler) {
	// GET /chat -> chats of the caller, most recently active first
	g.GET("/chat", h.FetchChats())
	// POST /chat -> open or resume the direct chat with userId
	g.POST("/chat", h.AccessChat())
	g.POST("/chat/group", h.CreateGroup())
	g.PUT("/chat/rename", h.RenameGroup())
	g.PUT("/chat/groupadd", h.AddToGroup())
	g.PUT("/chat/groupremove", h.RemoveFromGroup())

	g.GET("/message/:chatId", h.GetMessages())
	g.POST("/message", h.SendMessage())
	g.PUT("/message/:messageId/read", h.MarkRead())

	g.GET("/debug/stats", auth.RequireRole(auth.OperatorRole), h.Stats())
}

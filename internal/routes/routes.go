package routes

import (
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mattkerbyy/Bubbly-sub001/internal/config"
	"github.com/mattkerbyy/Bubbly-sub001/internal/handlers"
	"github.com/mattkerbyy/Bubbly-sub001/internal/middleware"
	"github.com/mattkerbyy/Bubbly-sub001/internal/presence"
	"github.com/mattkerbyy/Bubbly-sub001/internal/repository"
	"github.com/mattkerbyy/Bubbly-sub001/internal/services"
	chatws "github.com/mattkerbyy/Bubbly-sub001/internal/websocket"
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool, online *presence.Service) {
	userRepo := repository.NewUserRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	var presenceChecker services.PresenceChecker
	var hubPresence chatws.Presence
	if online != nil {
		presenceChecker = online
		hubPresence = online
	}

	chatHub := chatws.NewHub(hubPresence)
	go chatHub.Run()
	chatService := services.NewChatService(db, conversationRepo, messageRepo, userRepo, presenceChecker)
	chatHandler := handlers.NewChatHandler(chatService, chatHub, cfg.JWTSecret)

	api := app.Group("/api")

	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	conversations := authProtected.Group("/conversations")
	conversations.Get("", chatHandler.ListConversations)
	conversations.Post("", chatHandler.ResolveConversation)
	conversations.Get("/unread-count", chatHandler.UnreadSummary)
	conversations.Get("/:id/messages", chatHandler.GetMessages)
	conversations.Post("/:id/messages", chatHandler.SendMessage)
	conversations.Post("/:id/read", chatHandler.MarkRead)
	conversations.Delete("/:id", chatHandler.DeleteConversation)

	api.Use("/v1/ws", chatHandler.WebSocketAuth)
	api.Get("/v1/ws", websocket.New(chatHandler.HandleWebSocket))
}

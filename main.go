package main

import (
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"visionchatserver/config"
	"visionchatserver/database"
	"visionchatserver/handlers"
	"visionchatserver/middleware"
	"visionchatserver/offline"
	"visionchatserver/security"
	"visionchatserver/sessions"
	"visionchatserver/storage"
	"visionchatserver/webhook"
	"visionchatserver/websocket"
)

func main() {
	// .env необязателен: в контейнере переменные приходят из окружения
	if err := godotenv.Load(); err != nil {
		log.Printf(".env не найден, используются переменные окружения")
	}

	cfg := config.Load()

	// ─────────────────────────────────────────────
	// База данных (админы и шаблоны уведомлений)
	// ─────────────────────────────────────────────
	if err := database.Init(); err != nil {
		log.Fatalf("Ошибка подключения к базе данных: %v", err)
	}
	defer database.Close()

	// ─────────────────────────────────────────────
	// Хранилище очереди и снимков сессий
	// ─────────────────────────────────────────────
	var store storage.Store
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store = storage.NewRedisStore(rdb, "visionchat")
		log.Printf("Хранилище: Redis %s", cfg.RedisAddr)
	} else {
		store = storage.NewMemoryStore()
		log.Printf("Хранилище: память процесса (REDIS_ADDR не задан)")
	}

	// ─────────────────────────────────────────────
	// Ядро чата
	// ─────────────────────────────────────────────
	offlineCfg := offline.GetDefaultConfig()
	offlineCfg.MaxAge = cfg.OfflineMaxAge
	offlineQueue := offline.NewManager(store, offlineCfg)

	sessionManager := sessions.NewManager(store, sessions.GetDefaultConfig())

	hub := websocket.NewHub()
	go hub.Run()
	handlers.SetWebSocketHub(hub)

	limiter := security.NewRateLimiter()
	guard := security.NewGuard(limiter, security.GuardConfig{
		MaxRequests: cfg.RateLimitMax,
		Window:      cfg.RateLimitWindow,
	}, hub)

	webhookClient := webhook.NewClient(cfg.WebhookURL, cfg.AllowedWebhookDomains)

	handlers.Setup(cfg, sessionManager, offlineQueue, webhookClient, guard)

	// Фоновая уборка: просроченные сессии и пустые окна лимитера
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			if n := sessionManager.CleanupExpired(); n > 0 {
				log.Printf("Уборка: закрыто %d просроченных сессий", n)
			}
			limiter.Cleanup(10 * cfg.RateLimitWindow)
		}
	}()

	// ─────────────────────────────────────────────
	// HTTP-сервер
	// ─────────────────────────────────────────────
	if !cfg.Features.EnableDevMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	r.Use(middleware.Logger())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	api := r.Group("/api")
	{
		// Авторизация админов (публичный)
		api.POST("/auth/login", handlers.Login)

		// Публичный виджет чата: без токена, но под лимитером
		if cfg.Features.EnableChat && cfg.Features.EnablePublicChat {
			public := api.Group("/chat")
			public.Use(guard.RateLimitMiddleware())
			{
				public.POST("/message", handlers.PublicChatMessage)
			}
		}

		// Защищенные маршруты админки
		authorized := api.Group("/")
		authorized.Use(middleware.AuthMiddleware())
		{
			chats := authorized.Group("/chats")
			{
				chats.GET("", handlers.GetChats)
				chats.GET("/:id", handlers.GetChatByID)
				if cfg.Features.EnableAdminChat {
					chats.POST("/:id/messages", handlers.SendMessage)
				}
			}

			offlineGroup := authorized.Group("/offline")
			{
				offlineGroup.GET("/stats", handlers.GetOfflineStats)
				offlineGroup.POST("/flush", handlers.FlushOfflineQueue)
			}

			if cfg.Features.EnableNotifications {
				tpls := authorized.Group("/templates")
				{
					tpls.GET("", handlers.GetTemplates)
					tpls.GET("/variables", handlers.GetTemplateVariables)
					tpls.POST("/preview", handlers.PreviewTemplate)
					tpls.POST("/validate", handlers.ValidateTemplateBody)
					tpls.GET("/:id", handlers.GetTemplateByID)
					tpls.POST("", handlers.CreateTemplate)
					tpls.PUT("/:id", handlers.UpdateTemplate)
					tpls.DELETE("/:id", handlers.DeleteTemplate)
				}
			}
		}
	}

	// WebSocket для админки
	r.GET("/ws", handlers.ServeWs)

	log.Printf("Сервер запущен на порту :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Ошибка запуска сервера: %v", err)
	}
}

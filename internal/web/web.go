package web

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"techhome/auth"
	"techhome/internal/automation"
	"techhome/internal/hub"
	"techhome/internal/web/api"
	"techhome/internal/web/middleware"
)

type WebServer struct {
	router *gin.Engine
}

func NewWebServer(dbConn *pgxpool.Pool, redisClient *redis.Client, jwtSecret string, hubClient *hub.Client, recorder automation.ActionRecorder, sched api.SchedulerInterface) *WebServer {
	router := gin.Default()

	authModule := auth.NewAuthModule(dbConn, redisClient, jwtSecret)
	middlewareManager := middleware.NewMiddlewareManager(dbConn, redisClient, authModule)

	api.RegisterAuthRoutes(router, authModule, middlewareManager, dbConn)
	api.RegisterDeviceRoutes(router, middlewareManager, dbConn, hubClient, recorder)
	api.RegisterRoomRoutes(router, middlewareManager, dbConn)
	api.RegisterAutomationRoutes(router, middlewareManager, dbConn, sched)
	api.RegisterAnalyticsRoutes(router, middlewareManager, dbConn)
	api.RegisterHomeAssistantRoutes(router, middlewareManager, dbConn, hubClient, recorder)

	return &WebServer{router: router}
}

func (ws *WebServer) Start(addr string) error {
	return ws.router.Run(addr)
}

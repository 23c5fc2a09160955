package routes

import (
	"time"

	"chat-relay/internal/api/handlers"
	"chat-relay/internal/api/middleware"
	"chat-relay/internal/websocket"

	"github.com/gin-gonic/gin"
)

// Options are the router dependencies that are optional or come from config.
type Options struct {
	FrontendURL string

	// Limiter enables per-IP rate limiting of websocket upgrades and webhooks.
	Limiter middleware.Limiter

	// Redis is included in the health check when set.
	Redis handlers.Pinger

	WSRateLimit      int
	WebhookRateLimit int

	// WebhookMessageEvent is the provider message event forwarded to rooms.
	WebhookMessageEvent string
}

type Router struct {
	engine         *gin.Engine
	wsHandler      *handlers.WSHandler
	webhookHandler *handlers.WebhookHandler
	statsHandler   *handlers.StatsHandler
	sessionHandler *handlers.SessionHandler
	healthHandler  *handlers.HealthHandler
	rateLimitMW    *middleware.RateLimitMiddleware
	opts           Options
}

func NewRouter(mux *websocket.Multiplexer, gw handlers.SessionGateway, opts Options) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	// Add middlewares
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(opts.FrontendURL))
	engine.Use(middleware.LogApi())

	r := &Router{
		engine:         engine,
		wsHandler:      handlers.NewWSHandler(mux, opts.FrontendURL),
		webhookHandler: handlers.NewWebhookHandler(mux, opts.WebhookMessageEvent),
		statsHandler:   handlers.NewStatsHandler(mux),
		sessionHandler: handlers.NewSessionHandler(gw),
		healthHandler:  handlers.NewHealthHandler(opts.Redis),
		opts:           opts,
	}
	if opts.Limiter != nil {
		r.rateLimitMW = middleware.NewRateLimitMiddleware(opts.Limiter)
	}
	return r
}

// limit returns the IP rate limit for requests per minute, or nothing when
// limiting is off.
func (r *Router) limit(requests int) []gin.HandlerFunc {
	if r.rateLimitMW == nil || requests <= 0 {
		return nil
	}
	return []gin.HandlerFunc{r.rateLimitMW.RateLimitIP(requests, time.Minute)}
}

func (r *Router) SetupRoutes() {
	r.engine.GET("/health", r.healthHandler.Health)

	r.engine.GET("/ws", append(r.limit(r.opts.WSRateLimit), r.wsHandler.HandleWebSocket)...)

	api := r.engine.Group("/api/v1")
	{
		api.POST("/webhook", append(r.limit(r.opts.WebhookRateLimit), r.webhookHandler.HandleWebhook)...)
		api.GET("/stats", r.statsHandler.GetStats)

		sessions := api.Group("/sessions")
		{
			sessions.GET("", r.sessionHandler.ListSessions)
			sessions.GET("/:session", r.sessionHandler.GetSession)
			sessions.GET("/:session/chats/:chatId", r.sessionHandler.GetChat)
		}
	}
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

package http

import (
	"context"
	"crypto/subtle"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/adapters/signal"
	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/app/orch"
	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/config"
	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/metrics"
)

const apiSecretHeader = "X-Api-Secret"

type Deps struct {
	Orch       *orch.Orchestrator
	Signal     *signal.SignalWSController
	Metrics    *metrics.Metrics
	ICEServers []webrtc.ICEServer
}

func genClientToken() string {
	return uuid.NewString()
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// RequireAPISecret guards the management API used by the chat bot. An empty
// secret disables the check.
func RequireAPISecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		got := c.GetHeader(apiSecretHeader)
		if subtle.ConstantTimeCompare([]byte(secret), []byte(got)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

func corsConfig(origins []string) cors.Config {
	cc := cors.DefaultConfig()
	cc.AllowHeaders = append(cc.AllowHeaders, apiSecretHeader)
	cc.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}
	cc.MaxAge = 12 * time.Hour
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = origins
		cc.AllowCredentials = true
	}
	return cc
}

func SetupRouter(ctx context.Context, cfg *config.Config, d Deps) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions("CallSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	h := &handlers{orch: d.Orch, ice: d.ICEServers}

	r.GET("/ping", h.ping)
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	r.GET("/ws", func(c *gin.Context) {
		d.Signal.HandleSignal(ctx, c)
	})

	r.GET("/call/:code/info", h.callInfo)
	r.POST("/call/:code/join", h.registerJoin)
	r.POST("/admin/end", h.adminEnd)

	api := r.Group("/api")
	api.GET("/ice-servers", h.iceServers)

	managed := api.Group("", RequireAPISecret(cfg.APISecret))
	managed.POST("/calls", h.createCall)
	managed.GET("/calls", h.listCalls)
	managed.DELETE("/calls/:id", h.deleteCall)
	managed.GET("/rooms", h.listRooms)

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")
	return r
}

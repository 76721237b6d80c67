package router

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/vibe-coding-testes/contact-hub-zen/api"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/handler"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/logging"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/ws"
	"gorm.io/gorm"
)

const (
	PathHealth  = "/health"
	PathReady   = "/ready"
	PathSwagger = "/swagger"
	PathWS      = "/ws"
)

type Deps struct {
	DB           *gorm.DB
	Tickets      *handler.TicketHandler
	Clients      *handler.ClientHandler
	Integrations *handler.IntegrationHandler
	// Hub is optional; without it /ws is not registered.
	Hub         *ws.Hub
	CORSOrigins []string
}

func New(d Deps) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.RequestLogger())
	r.Use(cors.New(corsConfig(d.CORSOrigins)))

	r.GET(PathHealth, handler.Health)
	r.GET(PathReady, handler.Ready(d.DB))
	r.GET(PathSwagger, func(c *gin.Context) { c.Redirect(http.StatusFound, PathSwagger+"/") })
	r.GET(PathSwagger+"/*any", func(c *gin.Context) {
		if strings.TrimPrefix(c.Param("any"), "/") == "openapi.json" {
			c.Data(http.StatusOK, "application/json", api.OpenAPISpec)
			return
		}
		if strings.TrimPrefix(c.Param("any"), "/") == "" {
			c.Request.URL.Path = PathSwagger + "/index.html"
			c.Request.RequestURI = PathSwagger + "/index.html"
		}
		ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL(PathSwagger+"/openapi.json"))(c)
	})
	if d.Hub != nil {
		r.GET(PathWS, func(c *gin.Context) { d.Hub.ServeWS(c.Writer, c.Request) })
	}

	apiGroup := r.Group("/api")
	{
		tickets := apiGroup.Group("/tickets")
		tickets.GET("", d.Tickets.List)
		tickets.POST("", d.Tickets.Create)
		tickets.GET("/:id", d.Tickets.Get)
		tickets.PUT("/:id", d.Tickets.Update)
		tickets.DELETE("/:id", d.Tickets.Delete)
		tickets.POST("/:id/messages", d.Tickets.AddMessage)
		tickets.PATCH("/:id/status", d.Tickets.PatchStatus)

		clients := apiGroup.Group("/clients")
		clients.GET("", d.Clients.List)
		clients.POST("", d.Clients.Create)
		clients.GET("/:id", d.Clients.Get)
		clients.PUT("/:id", d.Clients.Update)
		clients.DELETE("/:id", d.Clients.Delete)
		clients.GET("/:id/tickets", d.Clients.Tickets)

		integrations := apiGroup.Group("/integrations")
		integrations.POST("/whatsapp", d.Integrations.WhatsAppWebhook)
		integrations.POST("/whatsapp/send", d.Integrations.Send)
		integrations.POST("/email", d.Integrations.EmailWebhook)
	}

	return r
}

// corsConfig allows any origin without credentials when origins is empty or contains "*".
func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	cfg.ExposeHeaders = []string{"X-Total-Count"}
	allowAll := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
	}
	if allowAll {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

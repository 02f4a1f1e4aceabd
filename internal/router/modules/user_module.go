package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-user-service/internal/container"
	handlers "github.com/oksasatya/go-user-service/internal/interface/http"
	"github.com/oksasatya/go-user-service/internal/interface/middleware"
	"github.com/oksasatya/go-user-service/pkg/helpers"
)

// UserModule wires the user CRUD handlers into routes under the given RouterGroup (usually /api).
// Reads are public. Writes require a valid access token when JWT is set, and are rate limited.
type UserModule struct {
	Handler *handlers.UserHandler
	JWT     *helpers.JWTManager
}

func NewUserModule(h *handlers.UserHandler, jwt *helpers.JWTManager) *UserModule {
	return &UserModule{Handler: h, JWT: jwt}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	users := rg.Group("/users")

	users.GET("", m.Handler.List)
	users.GET("/search", middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByIPAndPath(), nil), m.Handler.Search)
	users.GET("/:id", m.Handler.Get)

	write := users.Group("")
	write.Use(
		middleware.JWTAuth(m.JWT),
		middleware.RateLimit(container.GetRedis(), 60, time.Minute, middleware.KeyByIP(), nil),
		middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyBySubject(), nil),
	)
	{
		write.POST("", m.Handler.Create)
		write.PATCH("/:id", m.Handler.Update)
		write.PUT("/:id", m.Handler.Update)
		write.DELETE("/:id", m.Handler.Delete)
		// snapshot export is heavy; 5/min per IP
		write.POST("/export", middleware.RateLimit(container.GetRedis(), 5, time.Minute, middleware.KeyByIPAndPath(), nil), m.Handler.Export)
	}
}

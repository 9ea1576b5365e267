package modules

import (
	"github.com/gin-gonic/gin"

	"cardroom/internal/container"
	handlers "cardroom/internal/interface/http"
	"cardroom/internal/interface/middleware"
	"cardroom/pkg/helpers"
)

// AccountModule wires the account handlers into routes.
// Public: POST /user/signup, /user/login, /user/logout
// Session required: GET /user/me, PUT /user/me, POST /user/me/avatar, GET /user/search
type AccountModule struct {
	Handler *handlers.AccountHandler
	JWT     *helpers.JWTManager
}

func NewAccountModule(h *handlers.AccountHandler, jwt *helpers.JWTManager) *AccountModule {
	return &AccountModule{Handler: h, JWT: jwt}
}

func (m *AccountModule) Register(rg *gin.RouterGroup) {
	user := rg.Group("/user")

	user.POST("/signup", m.Handler.Signup)
	user.POST("/login", m.Handler.Login)
	user.POST("/logout", m.Handler.Logout)

	auth := user.Group("/")
	auth.Use(middleware.Session(container.GetRedis(), m.JWT))
	{
		auth.GET("/me", m.Handler.Me)
		auth.PUT("/me", m.Handler.UpdateMe)
		auth.POST("/me/avatar", m.Handler.UploadAvatar)
		auth.GET("/search", m.Handler.Search)
	}
}

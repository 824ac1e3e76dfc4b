// pkg/server/routes.go
package server

import "github.com/gin-gonic/gin"

func (s *Server) initRoutes(r *gin.Engine) {
	api := r.Group("/api")

	api.GET("/health", s.Health)

	api.GET("/overview", s.Overview)
	api.GET("/overview/monthly", s.Monthly)
	api.GET("/geographic", s.Geographic)
	api.GET("/demographic", s.Demographic)
	api.GET("/membership", s.Membership)
	api.GET("/transactions", s.Transactions)

	api.POST("/chat", s.Chat)

	api.GET("/export/:table", s.Export)
	api.GET("/diagnostics", s.Diagnostics)
	api.GET("/diagnostics/history", s.History)
	api.POST("/refresh", s.Refresh)
}

package handler

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the analytics endpoints on the provided group.
func (h *Handler) RegisterRoutes(group *gin.RouterGroup) {
	group.POST("/conversions/refresh", h.RefreshConversions)

	group.POST("/scores/refresh", h.RefreshScores)
	group.POST("/leads/:id/score", h.ScoreLead)
	group.GET("/leads/:id/score", h.GetLeadScore)

	group.POST("/forecasts", h.GenerateForecast)
	group.GET("/forecasts/scenarios", h.GetScenarios)
	group.GET("/forecasts/trends", h.GetTrends)
	group.POST("/forecasts/:id/actuals", h.CloseForecast)

	group.POST("/actuals/run", h.RunAccuracy)
	group.GET("/accuracy/summary", h.GetAccuracySummary)
}

package handlers

import (
	"powersense/internal/logger"
	"powersense/internal/metrics"
	"powersense/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
	metrics  *metrics.Metrics
}

// NewHandler constructs a new HTTP handler with dependencies. m may be nil.
func NewHandler(services *service.Service, log *logger.Logger, m *metrics.Metrics) *Handler {
	return &Handler{services: services, log: log, metrics: m}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	if h.metrics != nil {
		router.Use(h.metrics.Middleware())
		router.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/health", h.health)

	// Auth endpoints
	h.registerAuthRoutes(router)

	// Versioned API endpoints (protected)
	h.registerAPIRoutes(router)

	// Live stream; accepts the token as a header or ?token=
	router.GET("/ws", h.userIdMiddleware, h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		api.POST("/account/password", h.changePassword)
		h.registerProfileRoutes(api)
		h.registerRelayRoutes(api)
		h.registerTimerRoutes(api)
		h.registerSensorRoutes(api)
		h.registerWeatherRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerProfileRoutes(api *gin.RouterGroup) {
	api.GET("/profile", h.getProfile)
	api.PUT("/profile", h.saveProfile)
	api.PUT("/profile/avatar", h.updateAvatar)
	api.GET("/avatars", h.listAvatars)
	api.GET("/settings", h.getSettings)
	api.PUT("/settings", h.saveSettings)
}

func (h *Handler) registerRelayRoutes(api *gin.RouterGroup) {
	relays := api.Group("/relays")
	{
		relays.GET("", h.listRelays)
		relays.POST("", h.createRelay)
		relays.PUT("/:id", h.updateRelay)
		relays.DELETE("/:id", h.deleteRelay)
		relays.POST("/:id/toggle", h.toggleRelay)
		relays.POST("/:id/favorite", h.toggleFavorite)
		relays.DELETE("/error", h.clearRelayError)
	}
}

func (h *Handler) registerTimerRoutes(api *gin.RouterGroup) {
	timers := api.Group("/timers")
	{
		timers.GET("", h.listTimers)
		// Body example: {"duration":10,"unit":"Minutes"}
		timers.PUT("/:id", h.setTimer)
		timers.POST("/:id/start", h.startTimer)
		timers.POST("/:id/stop", h.stopTimer)
		timers.POST("/:id/reset", h.resetTimer)
		timers.DELETE("/:id", h.clearTimer)
	}
}

func (h *Handler) registerSensorRoutes(api *gin.RouterGroup) {
	sensors := api.Group("/sensors")
	{
		sensors.GET("/latest", h.latestReadings)
		sensors.GET("/history", h.sensorHistory)
		sensors.GET("/usage", h.relayUsage)
		sensors.GET("/status", h.connectionStatus)
	}
	api.GET("/cost", h.estimatedCost)
	if h.services.Costs != nil {
		api.GET("/cost/period", h.currentPolledCost)
		api.PUT("/cost/period", h.selectCostPeriod)
	}
}

func (h *Handler) registerWeatherRoutes(api *gin.RouterGroup) {
	weather := api.Group("/weather")
	{
		weather.GET("", h.currentWeather)
		weather.GET("/city", h.cityCoordinates)
		weather.GET("/search", h.searchCities)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("", h.getLogs)
	}
}

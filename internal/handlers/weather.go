package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func floatQuery(c *gin.Context, key string) (float64, bool) {
	v, err := strconv.ParseFloat(c.Query(key), 64)
	return v, err == nil
}

// @Summary      Current weather
// @Tags         weather
// @Produce      json
// @Param        lat  query     number  true  "Latitude"
// @Param        lon  query     number  true  "Longitude"
// @Success      200  {object}  models.WeatherData
// @Failure      400  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/weather [get]
// @Security     BearerAuth
func (h *Handler) currentWeather(c *gin.Context) {
	lat, okLat := floatQuery(c, "lat")
	lon, okLon := floatQuery(c, "lon")
	if !okLat || !okLon {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lon are required numbers"})
		return
	}
	data, err := h.services.Weather.CurrentWeather(c.Request.Context(), lat, lon)
	if err != nil {
		h.respondServiceError(c, err, http.StatusBadGateway, "weather service unavailable", "weather_current_failed", "lat", lat, "lon", lon)
		return
	}
	c.JSON(http.StatusOK, data)
}

// @Summary      City coordinates
// @Tags         weather
// @Produce      json
// @Param        name  query     string  true  "City name"
// @Success      200   {object}  models.Coordinates
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/v1/weather/city [get]
// @Security     BearerAuth
func (h *Handler) cityCoordinates(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	coords, err := h.services.Weather.Coordinates(c.Request.Context(), name)
	if err != nil {
		h.respondServiceError(c, err, http.StatusBadGateway, "weather service unavailable", "weather_city_failed", "name", name)
		return
	}
	c.JSON(http.StatusOK, coords)
}

// @Summary      Search cities
// @Description  Up to five "city, region, country" labels. Queries shorter than three characters return an empty list.
// @Tags         weather
// @Produce      json
// @Param        q    query     string  true  "Query"
// @Success      200  {object}  map[string][]string  "results"
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/weather/search [get]
// @Security     BearerAuth
func (h *Handler) searchCities(c *gin.Context) {
	q := c.Query("q")
	results, err := h.services.Weather.SearchCities(c.Request.Context(), q)
	if err != nil {
		h.logAndJSONError(c, http.StatusBadGateway, "weather service unavailable", "weather_search_failed", err, "q", q)
		return
	}
	if results == nil {
		results = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

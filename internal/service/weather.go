package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"powersense/internal/models"
)

const (
	unknownLocation = "Unknown Location"
	minCityQuery    = 3
	maxCityResults  = 5
)

var (
	ErrLocationNotFound   = errors.New("location not found")
	ErrInvalidCoordinates = errors.New("latitude must be in [-90, 90] and longitude in [-180, 180]")
)

type WeatherService struct {
	provider WeatherProvider
}

func NewWeatherService(provider WeatherProvider) *WeatherService {
	return &WeatherService{provider: provider}
}

// CurrentWeather returns the temperature at a point and its city name.
// A failed reverse lookup is not an error.
func (s *WeatherService) CurrentWeather(ctx context.Context, lat, lon float64) (models.WeatherData, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return models.WeatherData{}, ErrInvalidCoordinates
	}
	temp, err := s.provider.CurrentTemperature(ctx, lat, lon)
	if err != nil {
		return models.WeatherData{}, fmt.Errorf("current weather: %w", err)
	}
	name, err := s.provider.LocationName(ctx, lat, lon)
	if err != nil || strings.TrimSpace(name) == "" {
		name = unknownLocation
	}
	return models.WeatherData{Temperature: temp, LocationName: name}, nil
}

func (s *WeatherService) Coordinates(ctx context.Context, city string) (models.Coordinates, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return models.Coordinates{}, ErrLocationNotFound
	}
	places, err := s.provider.Search(ctx, city, 1)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("geocode %q: %w", city, err)
	}
	if len(places) == 0 {
		return models.Coordinates{}, ErrLocationNotFound
	}
	return models.Coordinates{Latitude: places[0].Latitude, Longitude: places[0].Longitude}, nil
}

// SearchCities returns up to five distinct "city, region, country" labels.
// Queries shorter than three characters return nothing.
func (s *WeatherService) SearchCities(ctx context.Context, query string) ([]string, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < minCityQuery {
		return []string{}, nil
	}
	places, err := s.provider.Search(ctx, query, maxCityResults)
	if err != nil {
		return nil, fmt.Errorf("search cities %q: %w", query, err)
	}

	seen := make(map[string]bool, len(places))
	out := make([]string, 0, maxCityResults)
	for _, p := range places {
		label := placeLabel(p)
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		out = append(out, label)
		if len(out) == maxCityResults {
			break
		}
	}
	return out, nil
}

func placeLabel(p models.Place) string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.Name, p.Admin1, p.Country} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

package service

import (
	"context"
	"errors"
	"testing"

	"powersense/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWeatherProvider struct {
	temp        float64
	tempErr     error
	name        string
	nameErr     error
	places      []models.Place
	searchErr   error
	searchCalls int
	lastCount   int
}

func (f *fakeWeatherProvider) CurrentTemperature(context.Context, float64, float64) (float64, error) {
	return f.temp, f.tempErr
}

func (f *fakeWeatherProvider) LocationName(context.Context, float64, float64) (string, error) {
	return f.name, f.nameErr
}

func (f *fakeWeatherProvider) Search(_ context.Context, _ string, count int) ([]models.Place, error) {
	f.searchCalls++
	f.lastCount = count
	return f.places, f.searchErr
}

func TestWeatherService_CurrentWeather(t *testing.T) {
	p := &fakeWeatherProvider{temp: 21.4, name: "Colombo"}
	svc := NewWeatherService(p)

	w, err := svc.CurrentWeather(context.Background(), 6.93, 79.85)
	require.NoError(t, err)
	assert.Equal(t, models.WeatherData{Temperature: 21.4, LocationName: "Colombo"}, w)

	p.nameErr = errors.New("no result")
	w, err = svc.CurrentWeather(context.Background(), 6.93, 79.85)
	require.NoError(t, err)
	assert.Equal(t, "Unknown Location", w.LocationName)

	_, err = svc.CurrentWeather(context.Background(), 91, 0)
	assert.ErrorIs(t, err, ErrInvalidCoordinates)

	p.tempErr = errors.New("503")
	_, err = svc.CurrentWeather(context.Background(), 0, 0)
	assert.Error(t, err)
}

func TestWeatherService_Coordinates(t *testing.T) {
	p := &fakeWeatherProvider{places: []models.Place{{Name: "Kandy", Latitude: 7.29, Longitude: 80.63}}}
	svc := NewWeatherService(p)

	c, err := svc.Coordinates(context.Background(), "Kandy")
	require.NoError(t, err)
	assert.Equal(t, models.Coordinates{Latitude: 7.29, Longitude: 80.63}, c)

	p.places = nil
	_, err = svc.Coordinates(context.Background(), "Atlantis")
	assert.ErrorIs(t, err, ErrLocationNotFound)
}

func TestWeatherService_SearchCities(t *testing.T) {
	p := &fakeWeatherProvider{places: []models.Place{
		{Name: "Paris", Admin1: "Île-de-France", Country: "France"},
		{Name: "Paris", Admin1: "Île-de-France", Country: "France"},
		{Name: "Paris", Admin1: "Texas", Country: "United States"},
		{Name: "Paris", Country: "Canada"},
	}}
	svc := NewWeatherService(p)

	got, err := svc.SearchCities(context.Background(), "Pa")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, p.searchCalls, "short queries never hit the API")

	got, err = svc.SearchCities(context.Background(), "Par")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Paris, Île-de-France, France",
		"Paris, Texas, United States",
		"Paris, Canada",
	}, got)
	assert.Equal(t, 5, p.lastCount)
}

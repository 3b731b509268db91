package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultWeatherBaseURL is the wttr.in host.
const DefaultWeatherBaseURL = "https://wttr.in"

const (
	rainAdvisory      = "Rain expected in the forecast period. Plan roofing work accordingly."
	favorableAdvisory = "Weather looks favorable for roofing work."
	maxForecastDays   = 3
)

var zipPattern = regexp.MustCompile(`^\d{5}$`)

type wttrValue struct {
	Value string `json:"value"`
}

type wttrResponse struct {
	CurrentCondition []struct {
		TempF          string      `json:"temp_F"`
		Humidity       string      `json:"humidity"`
		WindspeedMiles string      `json:"windspeedMiles"`
		WeatherDesc    []wttrValue `json:"weatherDesc"`
	} `json:"current_condition"`
	NearestArea []struct {
		AreaName []wttrValue `json:"areaName"`
		Region   []wttrValue `json:"region"`
	} `json:"nearest_area"`
	Weather []struct {
		Date     string `json:"date"`
		MaxTempF string `json:"maxtempF"`
		MinTempF string `json:"mintempF"`
		Hourly   []struct {
			WeatherDesc  []wttrValue `json:"weatherDesc"`
			ChanceOfRain string      `json:"chanceofrain"`
		} `json:"hourly"`
	} `json:"weather"`
}

type forecastDay struct {
	Date         string `json:"date"`
	HighF        string `json:"high_f"`
	LowF         string `json:"low_f"`
	Condition    string `json:"condition"`
	ChanceOfRain string `json:"chance_of_rain"`
}

type currentWeather struct {
	TempF     string `json:"temp_f"`
	Condition string `json:"condition"`
	Humidity  string `json:"humidity"`
	WindMph   string `json:"wind_mph"`
}

type weatherHandler struct {
	baseURL    string
	httpClient *http.Client
}

func newWeatherHandler(baseURL string) weatherHandler {
	if baseURL == "" {
		baseURL = DefaultWeatherBaseURL
	}
	return weatherHandler{baseURL: strings.TrimRight(baseURL, "/"), httpClient: &http.Client{Timeout: 15 * time.Second}}
}

func firstValue(vs []wttrValue) string {
	if len(vs) == 0 {
		return ""
	}
	return vs[0].Value
}

func (h weatherHandler) Execute(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var args struct {
		Location string  `json:"location"`
		Days     float64 `json:"days"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	days := int(args.Days)
	if days <= 0 {
		days = 7
	}
	location := args.Location
	partial := func(message string) (json.RawMessage, error) {
		return marshalResult(map[string]any{"status": "partial", "location": location, "message": message})
	}

	data, err := h.fetch(ctx, location)
	if err != nil {
		return partial(fmt.Sprintf("Weather service could not find location %q. Try using a city name like \"Memphis, TN\" instead of a zip code.", location))
	}
	if len(data.CurrentCondition) == 0 || len(data.Weather) == 0 {
		return partial(fmt.Sprintf("Could not get weather data for %q. Try using a city name like \"Memphis, TN\".", location))
	}

	resolved := location
	if len(data.NearestArea) > 0 {
		area := data.NearestArea[0]
		resolved = firstValue(area.AreaName) + ", " + firstValue(area.Region)
	}

	n := min(days, maxForecastDays, len(data.Weather))
	forecast := make([]forecastDay, 0, n)
	advisory := favorableAdvisory
	for _, day := range data.Weather[:n] {
		fd := forecastDay{Date: day.Date, HighF: day.MaxTempF, LowF: day.MinTempF, Condition: "Unknown", ChanceOfRain: "0"}
		if len(day.Hourly) > 4 {
			midday := day.Hourly[4]
			if c := firstValue(midday.WeatherDesc); c != "" {
				fd.Condition = c
			}
			if midday.ChanceOfRain != "" {
				fd.ChanceOfRain = midday.ChanceOfRain
			}
		}
		if chance, err := strconv.Atoi(fd.ChanceOfRain); err == nil && chance > 40 {
			advisory = rainAdvisory
		}
		forecast = append(forecast, fd)
	}

	cur := data.CurrentCondition[0]
	return marshalResult(map[string]any{
		"status":             "success",
		"location":           resolved,
		"requested_location": location,
		"current": currentWeather{
			TempF:     cur.TempF,
			Condition: firstValue(cur.WeatherDesc),
			Humidity:  cur.Humidity + "%",
			WindMph:   cur.WindspeedMiles,
		},
		"forecast":         forecast,
		"roofing_advisory": advisory,
	})
}

func (h weatherHandler) fetch(ctx context.Context, location string) (*wttrResponse, error) {
	query := location
	if zipPattern.MatchString(strings.TrimSpace(location)) {
		query = strings.TrimSpace(location) + ",US"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/"+url.PathEscape(query)+"?format=j1", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "curl/7.68.0")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather service returned status %d", resp.StatusCode)
	}

	var data wttrResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &data, nil
}

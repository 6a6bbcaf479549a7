/**
 * Copyright 2025-present Green Moment
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package ingest polls the Taipower open-data feed for per-unit
// generation figures and folds them into per-fuel totals on the ten
// minute grid the savings engine works on.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"greenmoment-go/internal/models"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

// Client fetches generation and weather snapshots.
type Client struct {
	httpClient http.Client
	cfg        models.IngestConfig
}

func NewClient(cfg models.IngestConfig) (*Client, error) {
	httpClient, err := createCustomHttpClient(cfg.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("unable to create custom http client: %w", err)
	}
	return &Client{httpClient: httpClient, cfg: cfg}, nil
}

func createCustomHttpClient(timeout time.Duration) (http.Client, error) {
	tr := &http.Transport{
		ResponseHeaderTimeout: 30 * time.Second,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			Timeout:   15 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   5,
		ExpectContinueTimeout: 5 * time.Second,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return http.Client{}, err
	}

	return http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}

// fuelLabels maps the feed's Chinese fuel headings to the names the
// emission factor table uses. Labels appear both bare and with an English
// suffix depending on the endpoint revision.
var fuelLabels = map[string]string{
	"太陽能":    "Solar",
	"風力":     "Wind",
	"燃煤":     "Coal",
	"燃氣":     "LNG",
	"水力":     "Hydro",
	"核能":     "Nuclear",
	"汽電共生":   "Co-Gen",
	"民營電廠-燃煤": "IPP-Coal",
	"民營電廠-燃氣": "IPP-LNG",
	"燃油":     "Oil",
	"輕油":     "Diesel",
	"其它再生能源": "Other_Renewable",
	"儲能":     "Storage",

	"太陽能(Solar)":                    "Solar",
	"風力(Wind)":                      "Wind",
	"燃煤(Coal)":                      "Coal",
	"燃氣(LNG)":                       "LNG",
	"水力(Hydro)":                     "Hydro",
	"核能(Nuclear)":                   "Nuclear",
	"汽電共生(Co-Gen)":                  "Co-Gen",
	"民營電廠-燃煤(IPP-Coal)":             "IPP-Coal",
	"民營電廠-燃氣(IPP-LNG)":              "IPP-LNG",
	"燃油(Oil)":                       "Oil",
	"輕油(Diesel)":                    "Diesel",
	"其它再生能源(Other Renewable Energy)": "Other_Renewable",
	"儲能(Energy Storage System)":      "Storage",
}

var fuelHeadingRe = regexp.MustCompile(`<b>(.*?)</b>`)

// generationResponse mirrors the genary.json feed. Each aaData row is a
// list of strings describing one generator unit.
type generationResponse struct {
	AaData [][]string `json:"aaData"`
}

// Snapshot is one fetched grid state, already folded to per-fuel megawatt
// totals and pinned to the ten minute grid.
type Snapshot struct {
	ObservedAt   time.Time
	GenerationMW map[string]float64
	Units        int
}

// FetchGeneration pulls the live feed and aggregates it. The observation
// time is the wall clock truncated down to the ten minute grid slot, the
// granularity the upstream refreshes at.
func (c *Client) FetchGeneration(ctx context.Context) (*Snapshot, error) {
	// Cache buster; the feed sits behind an aggressive CDN.
	url := fmt.Sprintf("%s?_=%d", c.cfg.GenerationURL, time.Now().Unix())

	body, err := c.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch generation feed: %w", err)
	}

	var response generationResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode generation feed: %w", err)
	}
	if len(response.AaData) == 0 {
		return nil, fmt.Errorf("generation feed contains no aaData rows")
	}

	snapshot := ParseGenerationRows(response.AaData)
	if len(snapshot.GenerationMW) == 0 {
		return nil, fmt.Errorf("no parsable generator rows in feed")
	}

	zap.L().Info("Fetched generation snapshot",
		zap.Time("observed_at", snapshot.ObservedAt),
		zap.Int("units", snapshot.Units),
		zap.Int("fuels", len(snapshot.GenerationMW)))
	return snapshot, nil
}

// ParseGenerationRows folds raw feed rows into per-fuel MW totals.
// Subtotal rows, load forecast rows and units with non-numeric output
// (offline, maintenance notes) are skipped.
func ParseGenerationRows(rows [][]string) *Snapshot {
	totals := make(map[string]float64)
	units := 0

	for _, row := range rows {
		if len(row) < 5 || strings.Contains(row[2], "小計") {
			continue
		}

		heading := fuelHeadingRe.FindStringSubmatch(row[0])
		if heading == nil || strings.TrimSpace(row[2]) == "" || strings.Contains(heading[1], "Load") {
			continue
		}

		mwText := strings.ReplaceAll(strings.TrimSpace(row[4]), ",", "")
		mw, err := strconv.ParseFloat(mwText, 64)
		if err != nil {
			continue
		}

		fuel, ok := fuelLabels[heading[1]]
		if !ok {
			fuel = heading[1]
		}
		totals[fuel] += mw
		units++
	}

	return &Snapshot{
		ObservedAt:   time.Now().Truncate(10 * time.Minute),
		GenerationMW: totals,
		Units:        units,
	}
}

// weatherValue tolerates the observation feed's mixed encodings: element
// values arrive as strings or numbers, with the -99 family as sentinels
// for missing readings.
type weatherValue struct {
	Value float64
	Valid bool
}

func (v *weatherValue) UnmarshalJSON(data []byte) error {
	text := strings.Trim(string(data), `"`)
	parsed, err := strconv.ParseFloat(text, 64)
	if err != nil || parsed <= -99 {
		v.Valid = false
		return nil
	}
	v.Value = parsed
	v.Valid = true
	return nil
}

// weatherResponse mirrors the CWA observation datastore layout.
type weatherResponse struct {
	Records struct {
		Station []struct {
			StationName string `json:"StationName"`
			ObsTime     struct {
				DateTime string `json:"DateTime"`
			} `json:"ObsTime"`
			WeatherElement struct {
				AirTemperature   weatherValue `json:"AirTemperature"`
				WindSpeed        weatherValue `json:"WindSpeed"`
				SunshineDuration weatherValue `json:"SunshineDuration"`
				Now              struct {
					Precipitation weatherValue `json:"Precipitation"`
				} `json:"Now"`
			} `json:"WeatherElement"`
		} `json:"Station"`
	} `json:"records"`
}

// FetchWeather pulls station observations. Weather is an optional
// covariate; a missing URL disables the fetch entirely.
func (c *Client) FetchWeather(ctx context.Context) ([]models.WeatherObservation, error) {
	if c.cfg.WeatherURL == "" {
		return nil, nil
	}

	body, err := c.get(ctx, c.cfg.WeatherURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch weather feed: %w", err)
	}

	var response weatherResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode weather feed: %w", err)
	}

	observations := make([]models.WeatherObservation, 0, len(response.Records.Station)*4)
	for _, station := range response.Records.Station {
		observedAt, err := time.Parse("2006-01-02T15:04:05-07:00", station.ObsTime.DateTime)
		if err != nil {
			zap.L().Warn("Skipping station with unparsable observation time",
				zap.String("station", station.StationName),
				zap.String("raw", station.ObsTime.DateTime))
			continue
		}

		elements := station.WeatherElement
		metrics := map[string]weatherValue{
			"air_temperature":   elements.AirTemperature,
			"wind_speed":        elements.WindSpeed,
			"sunshine_duration": elements.SunshineDuration,
			"precipitation":     elements.Now.Precipitation,
		}
		for metric, value := range metrics {
			if !value.Valid {
				continue
			}
			observations = append(observations, models.WeatherObservation{
				Timestamp: observedAt,
				Station:   station.StationName,
				Metric:    metric,
				Value:     value.Value,
			})
		}
	}

	return observations, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			zap.L().Warn("Failed to close response body", zap.Error(cerr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return io.ReadAll(resp.Body)
}

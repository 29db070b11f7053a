// Package generator fabricates synthetic telemetry submissions for the
// data generator service.
package generator

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v7"
)

// TimeLayout is the timestamp format embedded in generated readings,
// matching the format the record store validates on ingestion.
const TimeLayout = "2006-01-02 15:04:05"

// Submission is the wire form of one ingest request, shared by the
// HTTP body and the queue message.
type Submission struct {
	// Project is the label the record is filed under.
	Project string `json:"project"`
	// Data is the serialized channel-to-reading mapping.
	Data string `json:"data"`
}

// Reading is one sensor channel measurement inside a submission payload.
type Reading struct {
	Value     string `json:"value"`
	Timestamp string `json:"timestamp"`
}

// Station is a simulated telemetry station that emits readings on a
// fixed set of channels under one project label.
type Station struct {
	Project   string `fake:"{adjective}-{noun}"`
	StationID string `fake:"{uuid}"`
	Unit      string `fake:"{randomstring:[ppm,mg/L,°C,pH]}"`
	channels  []string
	baseline  float64
	noise     float64
}

// NewStation creates a station with a fabricated identity and between
// two and five sensor channels.
// Note: Uses math/rand for reading generation which is acceptable for simulation data.
func NewStation() *Station {
	var station Station
	if err := gofakeit.Struct(&station); err != nil {
		return nil
	}

	channelCount := rand.Intn(4) + 2 // #nosec G404 - weak random is acceptable for test data generation
	station.channels = make([]string, 0, channelCount)
	for i := range channelCount {
		station.channels = append(station.channels, fmt.Sprintf("S%d", i+1))
	}

	station.baseline = (rand.Float64() - 0.5) * 20 // -10 to 10, matches field sensor range
	station.noise = rand.Float64() * 2

	return &station
}

// Channels returns the station's channel names.
func (s *Station) Channels() []string {
	return s.channels
}

// GenerateReading produces one measurement for the given instant.
func (s *Station) GenerateReading(t time.Time) Reading {
	value := s.baseline + (rand.Float64()-0.5)*s.noise // #nosec G404

	return Reading{
		Value:     fmt.Sprintf("%.2f %s", value, s.Unit),
		Timestamp: t.Format(TimeLayout),
	}
}

// GenerateSubmission produces a full submission: one reading per
// channel, all stamped with the same instant, serialized the way the
// record store expects.
func (s *Station) GenerateSubmission(t time.Time) (*Submission, error) {
	batch := make(map[string]Reading, len(s.channels))
	for _, channel := range s.channels {
		batch[channel] = s.GenerateReading(t)
	}

	data, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("failed to encode readings: %w", err)
	}

	return &Submission{
		Project: s.Project,
		Data:    string(data),
	}, nil
}

// Package producer provides synthetic telemetry generation and publishing functionality.
package producer

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"

	"github.com/prometheus/client_golang/prometheus"

	"procodus.dev/telemetry-store/internal/store"
	"procodus.dev/telemetry-store/pkg/generator"
	"procodus.dev/telemetry-store/pkg/metrics"
	"procodus.dev/telemetry-store/pkg/mq"
)

// ErrNoStations is returned when a producer has no stations to draw from.
var ErrNoStations = errors.New("producer has no stations")

// Producer manages simulated stations and publishes their submissions
// to a message queue.
type Producer struct {
	MQClient mq.ClientInterface
	Stations []*generator.Station
	metrics  *metrics.ProducerMetrics // Optional metrics
}

// NewProducer creates a new producer with a random number of stations.
// Note: Uses math/rand for station selection which is acceptable for simulation data.
func NewProducer(mqClient mq.ClientInterface) *Producer {
	stationCount := rand.Intn(3) + 1 // #nosec G404 - weak random is acceptable for test data generation
	stations := make([]*generator.Station, 0, stationCount)
	for range stationCount {
		if station := generator.NewStation(); station != nil {
			stations = append(stations, station)
		}
	}

	return &Producer{
		MQClient: mqClient,
		Stations: stations,
	}
}

// SetMetrics sets the metrics collector for this producer.
// This should be called before the producer starts publishing.
func (p *Producer) SetMetrics(m *metrics.ProducerMetrics) {
	p.metrics = m
}

// RandomDataPoint generates a submission from a random station and
// publishes it to the message queue.
func (p *Producer) RandomDataPoint(ctx context.Context) error {
	var timer *prometheus.Timer
	if p.metrics != nil {
		timer = prometheus.NewTimer(p.metrics.GenerationDuration.WithLabelValues("submission"))
		defer timer.ObserveDuration()
	}

	if len(p.Stations) == 0 {
		if p.metrics != nil {
			p.metrics.GenerationFailures.WithLabelValues("submission", "generate_error").Inc()
		}
		return ErrNoStations
	}

	station := p.Stations[rand.Intn(len(p.Stations))] // #nosec G404 - weak random is acceptable for simulation

	// Stamp readings with the store's fixed-offset clock so embedded
	// timestamps line up with record creation times.
	submission, err := station.GenerateSubmission(store.Now())
	if err != nil {
		if p.metrics != nil {
			p.metrics.GenerationFailures.WithLabelValues("submission", "generate_error").Inc()
		}
		return err
	}

	message, err := json.Marshal(submission)
	if err != nil {
		if p.metrics != nil {
			p.metrics.GenerationFailures.WithLabelValues("submission", "marshal_error").Inc()
		}
		return err
	}

	if err := p.MQClient.Push(ctx, message); err != nil {
		if p.metrics != nil {
			p.metrics.GenerationFailures.WithLabelValues("submission", "push_error").Inc()
		}
		return err
	}

	if p.metrics != nil {
		p.metrics.MessagesGenerated.WithLabelValues("submission").Inc()
		p.metrics.SubmissionsCreated.Inc()
	}

	return nil
}

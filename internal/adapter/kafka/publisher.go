// Package kafka publishes aggregated cell rows to a topic for downstream
// consumers. Publishing is optional: the CSV artifact remains the durable
// output, the topic is a live feed.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/couchcryptid/ocean-data-aggregator/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Publisher produces one message per aggregated cell row.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// rowMessage is the wire form of one aggregated cell.
type rowMessage struct {
	Source      string  `json:"source"`
	Artifact    string  `json:"artifact"`
	Cell        string  `json:"cell"`
	Category    string  `json:"category,omitempty"`
	Date        string  `json:"date"`
	Count       int     `json:"count"`
	Mean        float64 `json:"mean"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Std         float64 `json:"std"`
	CentroidLat float64 `json:"centroid_lat"`
	CentroidLon float64 `json:"centroid_lon"`
}

// PublishRows writes all rows of one unit in a single WriteMessages call.
// Messages are keyed by cell id so per-cell ordering is stable.
func (p *Publisher) PublishRows(ctx context.Context, source, artifact string, stats []domain.CellStats) error {
	if len(stats) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(stats))
	for i, s := range stats {
		msg, err := serializeRow(source, artifact, s)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeRow marshals one cell's stats into a Kafka message.
func serializeRow(source, artifact string, s domain.CellStats) (kafkago.Message, error) {
	data, err := json.Marshal(rowMessage{
		Source:      source,
		Artifact:    artifact,
		Cell:        string(s.Cell),
		Category:    s.Category,
		Date:        s.Date.String(),
		Count:       s.Count,
		Mean:        s.Mean,
		Min:         s.Min,
		Max:         s.Max,
		Std:         s.Std,
		CentroidLat: s.CentroidLat,
		CentroidLon: s.CentroidLon,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize cell row: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(s.Cell),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte(source)},
			{Key: "count", Value: []byte(strconv.Itoa(s.Count))},
		},
	}, nil
}

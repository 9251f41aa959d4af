package messaging

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// DrugRoutingKey routes medication photo summaries; the video summary key
// comes from configuration.
const DrugRoutingKey = "ai.drug.summary"

// VideoSummaryRequest asks the AI pipeline to transcribe and summarize one
// consultation recording.
type VideoSummaryRequest struct {
	MeetingID    int    `json:"meetingId"`
	RecordingURL string `json:"recordingUrl"`
	RequestedAt  string `json:"requestedAt"`
}

// DrugSummaryRequest asks the AI pipeline to read a medication photo.
type DrugSummaryRequest struct {
	SeniorID    int    `json:"seniorId"`
	ImageURL    string `json:"imageUrl"`
	RequestedAt string `json:"requestedAt"`
}

// Publisher pushes AI work requests onto the broker. Publishing is
// fire-and-forget from the engine's point of view; the pipeline owns retries.
type Publisher struct {
	ch         *amqp.Channel
	exchange   string
	summaryKey string
}

func NewPublisher(conn *amqp.Connection, exchange, summaryKey string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	err = ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, err
	}
	return &Publisher{ch: ch, exchange: exchange, summaryKey: summaryKey}, nil
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

// PublishVideoSummary enqueues a summary request for a finished recording.
func (p *Publisher) PublishVideoSummary(ctx context.Context, meetingID int, recordingURL string) error {
	req := VideoSummaryRequest{
		MeetingID:    meetingID,
		RecordingURL: recordingURL,
		RequestedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if err := p.publish(ctx, p.summaryKey, req); err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().
		Int("consultation_id", meetingID).
		Str("routing_key", p.summaryKey).
		Msg("video summary request published")
	return nil
}

// PublishDrugSummary enqueues a medication photo for analysis.
func (p *Publisher) PublishDrugSummary(ctx context.Context, seniorID int, imageURL string) error {
	req := DrugSummaryRequest{
		SeniorID:    seniorID,
		ImageURL:    imageURL,
		RequestedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := p.publish(ctx, DrugRoutingKey, req); err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().
		Int("senior_id", seniorID).
		Str("routing_key", DrugRoutingKey).
		Msg("drug summary request published")
	return nil
}

func (p *Publisher) publish(ctx context.Context, key string, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

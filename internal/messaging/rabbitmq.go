package messaging

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// NewRabbitMQConn dials the broker with exponential backoff. The broker may
// come up after the API in a fresh deployment, so a few failed dials are
// normal.
func NewRabbitMQConn(ctx context.Context, url string) (*amqp.Connection, error) {
	operation := func() (*amqp.Connection, error) {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn().Err(err).Msg("rabbitmq dial failed, retrying")
			return nil, err
		}
		return conn, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.MaxInterval = 10 * time.Second

	conn, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(60*time.Second),
	)
	if err != nil {
		return nil, err
	}

	log.Info().Msg("connected to rabbitmq")
	return conn, nil
}

package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/spf13/viper"
	"github.com/streadway/amqp"
)

// Client represents a RabbitMQ client bound to the domain events exchange.
type Client struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string

	// amqp.Channel is not safe for concurrent publishing.
	mu sync.Mutex
}

// Channel returns the underlying AMQP channel.
func (r *Client) Channel() *amqp.Channel {
	return r.channel
}

// Exchange returns the name of the topic exchange events are published to.
func (r *Client) Exchange() string {
	return r.exchange
}

// Close closes the channel and connection for graceful shutdown.
func (r *Client) Close() error {
	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			return err
		}
	}
	if r.conn != nil {
		return r.conn.Close()
	}

	return nil
}

// MustNewClient connects to RabbitMQ and declares the events exchange.
func MustNewClient() *Client {
	host := viper.GetString("rabbitmq.host")
	port := viper.GetInt("rabbitmq.port")
	user := viper.GetString("rabbitmq.user")
	password := viper.GetString("rabbitmq.password")
	exchange := viper.GetString("rabbitmq.exchange")

	if host == "" {
		host = "rabbitmq"
	}
	if port == 0 {
		port = 5672
	}
	if exchange == "" {
		exchange = "delivery.events"
	}

	connStr := fmt.Sprintf(
		"amqp://%s:%s@%s:%d/",
		user,
		password,
		host,
		port,
	)

	conn, err := amqp.Dial(connStr)
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to RabbitMQ: %v", err))
	}

	channel, err := conn.Channel()
	if err != nil {
		err := conn.Close()
		if err != nil {
			panic(fmt.Sprintf("Failed to close a connection: %v", err))
		}
		panic(fmt.Sprintf("Failed to open a channel: %v", err))
	}

	if err := channel.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		panic(fmt.Sprintf("Failed to declare exchange: %v", err))
	}

	slog.Info("RabbitMQ connected", "host", host, "port", port, "exchange", exchange)

	return &Client{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
	}
}

// Message is a single publication to the events exchange.
type Message struct {
	MessageID  string
	RoutingKey string
	Body       []byte
	Timestamp  time.Time
	Headers    amqp.Table
}

// Publish sends a persistent JSON message to the events exchange.
func (r *Client) Publish(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.channel.Publish(
		r.exchange,
		msg.RoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.MessageID,
			Timestamp:    msg.Timestamp,
			Headers:      msg.Headers,
			Body:         msg.Body,
		},
	)
}

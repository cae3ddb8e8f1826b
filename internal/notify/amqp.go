// internal/notify/amqp.go
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"libracore/internal/catalog"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const (
	NotificationsExchange = "notifications"
	BooksExchange         = "books"
)

// Publisher is the part of *amqp.Channel used here.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// EmailMessage is the payload handed to the mail relay.
type EmailMessage struct {
	UserID  string    `json:"user_id"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

// BookAddedMessage is broadcast to the books exchange for every new book.
type BookAddedMessage struct {
	ISBN    string    `json:"isbn"`
	Title   string    `json:"title"`
	Author  string    `json:"author"`
	AddedAt time.Time `json:"added_at"`
}

// AMQPNotifier queues emails on RabbitMQ for an external mail relay.
type AMQPNotifier struct {
	pub Publisher
	now func() time.Time
}

func NewAMQPNotifier(pub Publisher) *AMQPNotifier {
	return &AMQPNotifier{pub: pub, now: time.Now}
}

func (n *AMQPNotifier) Send(ctx context.Context, userID, message string) error {
	body, err := json.Marshal(EmailMessage{UserID: userID, Message: message, SentAt: n.now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal email: %w", err)
	}

	err = n.pub.PublishWithContext(ctx, NotificationsExchange, "email."+userID, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    n.now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish email for %s: %w", userID, err)
	}
	return nil
}

// BookPublisher is a catalog observer that fans new books out to the books
// exchange.
type BookPublisher struct {
	pub Publisher
	log zerolog.Logger
	now func() time.Time
}

func NewBookPublisher(pub Publisher, log zerolog.Logger) *BookPublisher {
	return &BookPublisher{pub: pub, log: log, now: time.Now}
}

func (p *BookPublisher) Update(ctx context.Context, book catalog.Book) {
	body, err := json.Marshal(BookAddedMessage{
		ISBN:    book.ISBN,
		Title:   book.Title,
		Author:  book.Author,
		AddedAt: p.now().UTC(),
	})
	if err != nil {
		p.log.Error().Err(err).Str("isbn", book.ISBN).Msg("failed to marshal book")
		return
	}

	err = p.pub.PublishWithContext(ctx, BooksExchange, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   p.now(),
		Body:        body,
	})
	if err != nil {
		p.log.Warn().Err(err).Str("isbn", book.ISBN).Msg("failed to publish book")
	}
}

// Broker holds the RabbitMQ connection and channel shared by the publishers.
type Broker struct {
	conn    *amqp.Connection
	Channel *amqp.Channel
}

// Dial connects to RabbitMQ and declares the notifications (topic) and books
// (fanout) exchanges.
func Dial(url string) (*Broker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	exchanges := []struct{ name, kind string }{
		{NotificationsExchange, amqp.ExchangeTopic},
		{BooksExchange, amqp.ExchangeFanout},
	}
	for _, ex := range exchanges {
		if err := ch.ExchangeDeclare(ex.name, ex.kind, true, false, false, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to declare exchange %s: %w", ex.name, err)
		}
	}

	return &Broker{conn: conn, Channel: ch}, nil
}

func (b *Broker) Close() error {
	if err := b.Channel.Close(); err != nil {
		b.conn.Close()
		return err
	}
	return b.conn.Close()
}

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"libracore/internal/catalog"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakePublisher struct {
	got []published
	err error
}

func (f *fakePublisher) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.got = append(f.got, published{exchange: exchange, key: key, msg: msg})
	return f.err
}

func TestAMQPNotifierPublishesEmail(t *testing.T) {
	pub := &fakePublisher{}
	fixed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	n := NewAMQPNotifier(pub)
	n.now = func() time.Time { return fixed }

	require.NoError(t, n.Send(context.Background(), "user01", "You have borrowed the book 1984"))

	require.Len(t, pub.got, 1)
	assert.Equal(t, NotificationsExchange, pub.got[0].exchange)
	assert.Equal(t, "email.user01", pub.got[0].key)
	assert.Equal(t, "application/json", pub.got[0].msg.ContentType)
	assert.Equal(t, amqp.Persistent, pub.got[0].msg.DeliveryMode)

	var email EmailMessage
	require.NoError(t, json.Unmarshal(pub.got[0].msg.Body, &email))
	assert.Equal(t, EmailMessage{UserID: "user01", Message: "You have borrowed the book 1984", SentAt: fixed}, email)
}

func TestAMQPNotifierWrapsPublishError(t *testing.T) {
	broken := errors.New("channel closed")
	n := NewAMQPNotifier(&fakePublisher{err: broken})

	err := n.Send(context.Background(), "user01", "hi")
	assert.ErrorIs(t, err, broken)
}

func TestBookPublisherObservesCatalog(t *testing.T) {
	pub := &fakePublisher{}
	m := catalog.NewManager(Nop{})
	m.AddObserver(NewBookPublisher(pub, zerolog.Nop()))

	_, err := m.AddBook(context.Background(), "1984", "George Orwell", "987654321")
	require.NoError(t, err)

	require.Len(t, pub.got, 1)
	assert.Equal(t, BooksExchange, pub.got[0].exchange)
	assert.Empty(t, pub.got[0].key)

	var msg BookAddedMessage
	require.NoError(t, json.Unmarshal(pub.got[0].msg.Body, &msg))
	assert.Equal(t, "987654321", msg.ISBN)
	assert.Equal(t, "1984", msg.Title)
	assert.Equal(t, "George Orwell", msg.Author)
}

func TestBookPublisherSwallowsErrors(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	m := catalog.NewManager(Nop{})
	m.AddObserver(NewBookPublisher(pub, zerolog.Nop()))

	_, err := m.AddBook(context.Background(), "1984", "George Orwell", "987654321")
	assert.NoError(t, err)
	assert.Len(t, m.Books(context.Background()), 1)
}

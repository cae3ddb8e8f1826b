// internal/catalog/implementation.go
package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"libracore/internal/journal"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

type observerEntry struct {
	id       uint64
	observer Observer
}

// manager implements the Manager interface.
type manager struct {
	mu        sync.Mutex
	books     []Book
	loans     []Loan
	observers []observerEntry
	nextObsID uint64

	notifier   Notifier
	journal    *journal.Journal
	log        zerolog.Logger
	now        func() time.Time
	uniqueISBN bool

	tracer trace.Tracer
	meter  metric.Meter

	booksAdded    metric.Int64Counter
	booksRemoved  metric.Int64Counter
	loansCreated  metric.Int64Counter
	loansReturned metric.Int64Counter
}

// Option configures a manager.
type Option func(*manager)

func WithLogger(log zerolog.Logger) Option {
	return func(m *manager) { m.log = log }
}

// WithJournal records every catalog and loan change in j.
func WithJournal(j *journal.Journal) Option {
	return func(m *manager) { m.journal = j }
}

func WithClock(now func() time.Time) Option {
	return func(m *manager) { m.now = now }
}

// WithUniqueISBN makes AddBook reject an ISBN already in the catalog.
func WithUniqueISBN() Option {
	return func(m *manager) { m.uniqueISBN = true }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(m *manager) { m.tracer = tracer }
}

func WithMeter(meter metric.Meter) Option {
	return func(m *manager) { m.meter = meter }
}

// NewManager creates the library manager. Build one per process and hand it
// to every caller.
func NewManager(notifier Notifier, opts ...Option) Manager {
	m := &manager{
		notifier: notifier,
		log:      zerolog.Nop(),
		now:      time.Now,
		tracer:   otel.Tracer("libracore/catalog"),
		meter:    otel.Meter("libracore/catalog"),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.notifier == nil {
		m.notifier = nopNotifier{}
	}

	m.booksAdded = m.counter("catalog.books.added", "Books added to the catalog")
	m.booksRemoved = m.counter("catalog.books.removed", "Books removed from the catalog")
	m.loansCreated = m.counter("catalog.loans.created", "Loans created")
	m.loansReturned = m.counter("catalog.loans.returned", "Loans returned")
	return m
}

func (m *manager) counter(name, description string) metric.Int64Counter {
	c, err := m.meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		m.log.Warn().Err(err).Str("instrument", name).Msg("failed to create counter")
		c, _ = noop.NewMeterProvider().Meter("").Int64Counter(name)
	}
	return c
}

// AddObserver appends o to the notification list. AddBook snapshots the list
// before notifying, so an observer unsubscribed while an AddBook is in flight
// may still receive that one Update after unsubscribe returns.
func (m *manager) AddObserver(o Observer) func() {
	m.mu.Lock()
	m.nextObsID++
	id := m.nextObsID
	m.observers = append(m.observers, observerEntry{id: id, observer: o})
	m.mu.Unlock()

	return func() { m.removeObserver(id) }
}

func (m *manager) removeObserver(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, entry := range m.observers {
		if entry.id == id {
			m.observers = append(m.observers[:i], m.observers[i+1:]...)
			return
		}
	}
}

// AddBook appends a new book to the catalog and notifies every observer.
func (m *manager) AddBook(ctx context.Context, title, author, isbn string) (Book, error) {
	ctx, span := m.tracer.Start(ctx, "catalog.add_book",
		trace.WithAttributes(attribute.String("isbn", isbn)),
	)
	defer span.End()

	book := NewBook().Title(title).Author(author).ISBN(isbn).Build()

	m.mu.Lock()
	if m.uniqueISBN && m.indexOfBook(isbn) >= 0 {
		m.mu.Unlock()
		span.SetAttributes(attribute.Bool("duplicate", true))
		return Book{}, fmt.Errorf("add book %s: %w", isbn, ErrDuplicateISBN)
	}
	m.books = append(m.books, book)
	observers := make([]Observer, len(m.observers))
	for i, entry := range m.observers {
		observers[i] = entry.observer
	}
	m.mu.Unlock()

	m.booksAdded.Add(ctx, 1)
	m.record(ctx, isbn, aggregateBook, eventBookAdded, BookAddedEvent{
		ISBN:   book.ISBN,
		Title:  book.Title,
		Author: book.Author,
	})
	m.log.Info().Str("isbn", isbn).Str("title", title).Msg("book added")

	for _, o := range observers {
		o.Update(ctx, book)
	}
	span.SetAttributes(attribute.Int("observers.notified", len(observers)))

	return book, nil
}

// RemoveBook removes the first book with a matching ISBN.
func (m *manager) RemoveBook(ctx context.Context, isbn string) error {
	ctx, span := m.tracer.Start(ctx, "catalog.remove_book",
		trace.WithAttributes(attribute.String("isbn", isbn)),
	)
	defer span.End()

	m.mu.Lock()
	i := m.indexOfBook(isbn)
	if i < 0 {
		m.mu.Unlock()
		m.log.Warn().Str("isbn", isbn).Msg("remove: book not found")
		return ErrBookNotFound
	}
	m.books = append(m.books[:i], m.books[i+1:]...)
	m.mu.Unlock()

	m.booksRemoved.Add(ctx, 1)
	m.record(ctx, isbn, aggregateBook, eventBookRemoved, BookRemovedEvent{ISBN: isbn})
	m.log.Info().Str("isbn", isbn).Msg("book removed")
	return nil
}

// Search returns the books whose title or author contains query, or whose
// ISBN equals it.
func (m *manager) Search(ctx context.Context, query string) []Book {
	_, span := m.tracer.Start(ctx, "catalog.search",
		trace.WithAttributes(attribute.String("query", query)),
	)
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	results := []Book{}
	for _, book := range m.books {
		if strings.Contains(book.Title, query) ||
			strings.Contains(book.Author, query) ||
			book.ISBN == query {
			results = append(results, book)
		}
	}

	span.SetAttributes(attribute.Int("results", len(results)))
	return results
}

// LoanBook lends the book with the given ISBN to userID and emails them.
func (m *manager) LoanBook(ctx context.Context, isbn, userID string) (Loan, error) {
	ctx, span := m.tracer.Start(ctx, "catalog.loan_book",
		trace.WithAttributes(
			attribute.String("isbn", isbn),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	m.mu.Lock()
	i := m.indexOfBook(isbn)
	if i < 0 {
		m.mu.Unlock()
		m.log.Warn().Str("isbn", isbn).Str("user_id", userID).Msg("loan: book not found")
		return Loan{}, ErrBookNotFound
	}
	book := m.books[i]
	loan := Loan{
		ID:     uuid.New(),
		ISBN:   isbn,
		UserID: userID,
		Date:   m.now(),
	}
	m.loans = append(m.loans, loan)
	m.mu.Unlock()

	m.loansCreated.Add(ctx, 1)
	m.record(ctx, loan.ID.String(), aggregateLoan, eventBookLoaned, BookLoanedEvent{
		LoanID: loan.ID,
		ISBN:   loan.ISBN,
		UserID: loan.UserID,
		Date:   loan.Date,
	})
	m.log.Info().Str("isbn", isbn).Str("user_id", userID).Str("loan_id", loan.ID.String()).Msg("book loaned")

	m.sendEmail(ctx, userID, fmt.Sprintf("You have borrowed the book %s", book.Title))
	return loan, nil
}

// ReturnBook closes the first loan matching isbn and userID and emails a
// confirmation.
func (m *manager) ReturnBook(ctx context.Context, isbn, userID string) error {
	ctx, span := m.tracer.Start(ctx, "catalog.return_book",
		trace.WithAttributes(
			attribute.String("isbn", isbn),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	m.mu.Lock()
	i := -1
	for j, loan := range m.loans {
		if loan.ISBN == isbn && loan.UserID == userID {
			i = j
			break
		}
	}
	if i < 0 {
		m.mu.Unlock()
		m.log.Warn().Str("isbn", isbn).Str("user_id", userID).Msg("return: loan not found")
		return ErrLoanNotFound
	}
	loan := m.loans[i]
	m.loans = append(m.loans[:i], m.loans[i+1:]...)
	m.mu.Unlock()

	m.loansReturned.Add(ctx, 1)
	m.record(ctx, loan.ID.String(), aggregateLoan, eventBookReturned, BookReturnedEvent{
		LoanID:     loan.ID,
		ISBN:       loan.ISBN,
		UserID:     loan.UserID,
		ReturnDate: m.now(),
	})
	m.log.Info().Str("isbn", isbn).Str("user_id", userID).Str("loan_id", loan.ID.String()).Msg("book returned")

	m.sendEmail(ctx, userID, fmt.Sprintf("You have returned the book with ISBN %s. Thank you!", isbn))
	return nil
}

func (m *manager) Books(ctx context.Context) []Book {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Book{}, m.books...)
}

func (m *manager) Loans(ctx context.Context) []Loan {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Loan{}, m.loans...)
}

// indexOfBook must be called with mu held.
func (m *manager) indexOfBook(isbn string) int {
	for i, book := range m.books {
		if book.ISBN == isbn {
			return i
		}
	}
	return -1
}

func (m *manager) sendEmail(ctx context.Context, userID, message string) {
	if err := m.notifier.Send(ctx, userID, message); err != nil {
		trace.SpanFromContext(ctx).RecordError(err)
		m.log.Warn().Err(err).Str("user_id", userID).Msg("failed to send email")
	}
}

func (m *manager) record(ctx context.Context, aggregateID, aggregateType, eventType string, data any) {
	if m.journal == nil {
		return
	}
	if _, err := m.journal.Record(ctx, aggregateID, aggregateType, eventType, data); err != nil {
		m.log.Warn().Err(err).Str("event_type", eventType).Msg("failed to record event")
	}
}

type nopNotifier struct{}

func (nopNotifier) Send(context.Context, string, string) error { return nil }

// internal/catalog/domain.go
package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Book is a catalog entry. ISBN identifies it within the catalog.
type Book struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	ISBN   string `json:"isbn"`
}

// Loan associates a book, by ISBN, with the user who borrowed it.
type Loan struct {
	ID     uuid.UUID `json:"id"`
	ISBN   string    `json:"isbn"`
	UserID string    `json:"user_id"`
	Date   time.Time `json:"date"`
}

// BookBuilder assembles a Book step by step.
type BookBuilder struct {
	book Book
}

// NewBook starts a new BookBuilder.
func NewBook() *BookBuilder {
	return &BookBuilder{}
}

func (b *BookBuilder) Title(title string) *BookBuilder {
	b.book.Title = title
	return b
}

func (b *BookBuilder) Author(author string) *BookBuilder {
	b.book.Author = author
	return b
}

func (b *BookBuilder) ISBN(isbn string) *BookBuilder {
	b.book.ISBN = isbn
	return b
}

// Build returns the assembled Book. The builder may be reused afterwards.
func (b *BookBuilder) Build() Book {
	return b.book
}

// Aggregate types and event types recorded in the journal.
const (
	aggregateBook = "book"
	aggregateLoan = "loan"

	eventBookAdded    = "BookAdded"
	eventBookRemoved  = "BookRemoved"
	eventBookLoaned   = "BookLoaned"
	eventBookReturned = "BookReturned"
)

// BookAddedEvent is recorded when a book enters the catalog.
type BookAddedEvent struct {
	ISBN   string `json:"isbn"`
	Title  string `json:"title"`
	Author string `json:"author"`
}

// BookRemovedEvent is recorded when a book leaves the catalog.
type BookRemovedEvent struct {
	ISBN string `json:"isbn"`
}

// BookLoanedEvent is recorded when a loan is created.
type BookLoanedEvent struct {
	LoanID uuid.UUID `json:"loan_id"`
	ISBN   string    `json:"isbn"`
	UserID string    `json:"user_id"`
	Date   time.Time `json:"date"`
}

// BookReturnedEvent is recorded when a loan is closed.
type BookReturnedEvent struct {
	LoanID     uuid.UUID `json:"loan_id"`
	ISBN       string    `json:"isbn"`
	UserID     string    `json:"user_id"`
	ReturnDate time.Time `json:"return_date"`
}

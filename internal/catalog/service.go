// internal/catalog/service.go
package catalog

import (
	"context"
	"errors"
)

var (
	ErrBookNotFound  = errors.New("book not found")
	ErrLoanNotFound  = errors.New("loan not found")
	ErrDuplicateISBN = errors.New("a book with this ISBN is already in the catalog")
)

// Notifier sends a message to a user. Delivery is best effort.
type Notifier interface {
	Send(ctx context.Context, userID, message string) error
}

// Observer is told about every book added to the catalog.
type Observer interface {
	Update(ctx context.Context, book Book)
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(ctx context.Context, book Book)

func (f ObserverFunc) Update(ctx context.Context, book Book) {
	f(ctx, book)
}

// Manager defines the interface for the library manager.
type Manager interface {
	// AddObserver registers o for new-book notifications. The returned func
	// removes the registration. An AddBook already running when unsubscribe
	// is called may still deliver its Update to o.
	AddObserver(o Observer) (unsubscribe func())
	AddBook(ctx context.Context, title, author, isbn string) (Book, error)
	RemoveBook(ctx context.Context, isbn string) error
	Search(ctx context.Context, query string) []Book
	LoanBook(ctx context.Context, isbn, userID string) (Loan, error)
	ReturnBook(ctx context.Context, isbn, userID string) error
	Books(ctx context.Context) []Book
	Loans(ctx context.Context) []Loan
}

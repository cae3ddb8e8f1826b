// internal/catalog/observer.go
package catalog

import (
	"context"

	"github.com/rs/zerolog"
)

// Member is a registered library user who wants to hear about new books.
type Member struct {
	ID     string
	Logger zerolog.Logger
}

func NewMember(id string, logger zerolog.Logger) *Member {
	return &Member{ID: id, Logger: logger}
}

func (m *Member) Update(ctx context.Context, book Book) {
	m.Logger.Info().
		Str("member_id", m.ID).
		Str("isbn", book.ISBN).
		Msgf("%s received a notification about the book %q", m.ID, book.Title)
}

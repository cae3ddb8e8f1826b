// internal/catalog/handler.go
package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"libracore/internal/journal"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Handler struct {
	manager Manager
	journal *journal.Journal
}

// NewHandler exposes manager over HTTP. j may be nil, in which case the
// events endpoint answers 404.
func NewHandler(manager Manager, j *journal.Journal) *Handler {
	return &Handler{manager: manager, journal: j}
}

// Routes builds the router for the catalog API.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/books", func(r chi.Router) {
		r.Post("/", h.handleAddBook)
		r.Get("/", h.handleSearch)
		r.Delete("/{isbn}", h.handleRemoveBook)
	})
	r.Route("/loans", func(r chi.Router) {
		r.Post("/", h.handleLoanBook)
		r.Get("/", h.handleListLoans)
	})
	r.Post("/returns", h.handleReturnBook)
	r.Get("/events", h.handleEvents)

	return r
}

type loanRequest struct {
	ISBN   string `json:"isbn"`
	UserID string `json:"user_id"`
}

func (h *Handler) handleAddBook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title  string `json:"title"`
		Author string `json:"author"`
		ISBN   string `json:"isbn"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	book, err := h.manager.AddBook(r.Context(), req.Title, req.Author, req.ISBN)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusCreated, book)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	books := h.manager.Search(r.Context(), r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, books)
}

func (h *Handler) handleRemoveBook(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.RemoveBook(r.Context(), chi.URLParam(r, "isbn")); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLoanBook(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	loan, err := h.manager.LoanBook(r.Context(), req.ISBN, req.UserID)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusCreated, loan)
}

func (h *Handler) handleListLoans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.Loans(r.Context()))
}

func (h *Handler) handleReturnBook(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.manager.ReturnBook(r.Context(), req.ISBN, req.UserID); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		http.Error(w, "event journal disabled", http.StatusNotFound)
		return
	}

	var (
		from  int64
		limit int
		err   error
	)
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = strconv.ParseInt(v, 10, 64); err != nil {
			http.Error(w, "invalid from cursor", http.StatusBadRequest)
			return
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
	}

	writeJSON(w, http.StatusOK, h.journal.StreamEvents(r.Context(), from, limit))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrBookNotFound), errors.Is(err, ErrLoanNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateISBN):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

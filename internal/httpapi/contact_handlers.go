package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"rolodex.dev/internal/audit"
	"rolodex.dev/internal/contacts"
)

type emailRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
	Label string `json:"label" validate:"max=50"`
}

type phoneRequest struct {
	Phone string `json:"phone" validate:"required,max=32"`
	Label string `json:"label" validate:"max=50"`
}

type contactRequest struct {
	FirstName      string         `json:"firstName" validate:"required,max=100"`
	LastName       string         `json:"lastName" validate:"max=100"`
	Title          string         `json:"title" validate:"max=100"`
	EmailAddresses []emailRequest `json:"emailAddresses" validate:"max=20,dive"`
	PhoneNumbers   []phoneRequest `json:"phoneNumbers" validate:"max=20,dive"`
	ProfileImage   string         `json:"profileImage" validate:"max=2048"`
	Tags           []string       `json:"tags" validate:"omitempty,max=50,dive,max=50"`
	IsFavorite     *bool          `json:"isFavorite"`
}

func (req contactRequest) input() contacts.Input {
	in := contacts.Input{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Title:        req.Title,
		ProfileImage: req.ProfileImage,
		Tags:         req.Tags,
		Favorite:     req.IsFavorite,
	}
	for _, e := range req.EmailAddresses {
		in.EmailAddresses = append(in.EmailAddresses, contacts.EmailInput{Email: e.Email, Label: e.Label})
	}
	for _, p := range req.PhoneNumbers {
		in.PhoneNumbers = append(in.PhoneNumbers, contacts.PhoneInput{Phone: p.Phone, Label: p.Label})
	}
	return in
}

// pageRequest reads page, size and sortBy from the query string. Bounds
// are clamped by the service; only malformed numbers are rejected.
func pageRequest(r *http.Request) (contacts.PageRequest, bool) {
	q := r.URL.Query()
	req := contacts.PageRequest{SortBy: q.Get("sortBy")}
	for key, dst := range map[string]*int{"page": &req.Page, "size": &req.Size} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return contacts.PageRequest{}, false
		}
		*dst = n
	}
	return req, true
}

func (a *API) listContacts(w http.ResponseWriter, r *http.Request) {
	req, ok := pageRequest(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "page and size must be integers")
		return
	}
	page, err := a.contacts.List(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) searchContacts(w http.ResponseWriter, r *http.Request) {
	req, ok := pageRequest(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "page and size must be integers")
		return
	}
	page, err := a.contacts.Search(r.Context(), r.URL.Query().Get("query"), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) getContact(w http.ResponseWriter, r *http.Request) {
	c, err := a.contacts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) createContact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if !a.bind(w, r, &req) {
		return
	}
	c, err := a.contacts.Create(r.Context(), req.input())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	a.audit(r, audit.EventContactCreated, map[string]any{"contact_id": c.ID})
	writeJSON(w, http.StatusCreated, c)
}

func (a *API) updateContact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if !a.bind(w, r, &req) {
		return
	}
	c, err := a.contacts.Update(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	a.audit(r, audit.EventContactUpdated, map[string]any{"contact_id": c.ID})
	writeJSON(w, http.StatusOK, c)
}

func (a *API) deleteContact(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.contacts.Delete(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	a.audit(r, audit.EventContactDeleted, map[string]any{"contact_id": id})
	writeJSON(w, http.StatusOK, map[string]any{"message": "contact deleted"})
}

func (a *API) toggleFavorite(w http.ResponseWriter, r *http.Request) {
	c, err := a.contacts.ToggleFavorite(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	a.audit(r, audit.EventContactFavorite, map[string]any{
		"contact_id":  c.ID,
		"is_favorite": c.Favorite,
	})
	writeJSON(w, http.StatusOK, c)
}

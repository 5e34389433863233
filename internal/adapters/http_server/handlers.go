package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"food_discovery/internal/app"
	"food_discovery/internal/domain"
	"food_discovery/internal/engine/planner"
)

type Handlers struct {
	Q *app.QueryService
	C *app.CommandService

	// IngestRPS/IngestBurst bound the write surface; zero disables the limiter.
	IngestRPS   float64
	IngestBurst int
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	// read surface
	s.mux.Get("/v1/search", h.search)
	s.mux.Get("/v1/places/{id}", h.getPlace)
	s.mux.Get("/v1/places/{id}/products", h.productsForPlace)
	s.mux.Get("/v1/places/{id}/reviews", h.listReviews)
	s.mux.Get("/v1/products/{id}", h.getProduct)
	s.mux.Get("/v1/products/{id}/places", h.placesForProduct)
	s.mux.Get("/v1/questions/{id}/answers", h.listAnswers)

	// ingestion surface
	s.mux.Group(func(g chi.Router) {
		if h.IngestRPS > 0 {
			g.Use(RateLimit(h.IngestRPS, h.IngestBurst))
		}
		g.Post("/v1/places", h.upsertPlace)
		g.Delete("/v1/places/{id}", h.deletePlace)
		g.Post("/v1/places/{id}/view", h.recordView)
		g.Post("/v1/products", h.upsertProduct)
		g.Delete("/v1/products/{id}", h.deleteProduct)
		g.Post("/v1/inventory", h.upsertInventory)
		g.Post("/v1/reviews", h.submitReview)
		g.Post("/v1/reviews/{id}/moderate", h.moderateReview)
		g.Patch("/v1/reviews/{id}", h.editReview)
		g.Post("/v1/reviews/{id}/response", h.respondToReview)
		g.Post("/v1/questions", h.askQuestion)
		g.Post("/v1/questions/{id}/answers", h.createAnswer)
		g.Post("/v1/votes", h.castVote)
		g.Post("/v1/favorites", h.setFavorite)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeErr maps the domain error taxonomy onto HTTP statuses.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeProblem(w, http.StatusBadRequest, "Invalid Request", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrStateConflict):
		writeProblem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeCached writes v with a weak ETag, short-circuiting to 304 when the
// client already holds this version.
func writeCached(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func decode(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// ---- read handlers ----

func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	text := q.Get("q")

	var pg planner.Page
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid Request", "offset must be a non-negative integer")
			return
		}
		pg.Offset = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid Request", "limit must be a non-negative integer")
			return
		}
		pg.Limit = n
	}

	// Everything that isn't text/pagination is a filter; the planner owns
	// filter validation so unknown keys fail the same way everywhere.
	filters := make(map[string]string)
	for k, vs := range q {
		switch k {
		case "q", "offset", "limit":
			continue
		}
		if len(vs) > 0 {
			filters[k] = vs[0]
		}
	}

	out, err := h.Q.Search(r.Context(), text, filters, pg)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeCached(w, r, out)
}

func (h *Handlers) getPlace(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	out, err := h.Q.GetPlace(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeCached(w, r, out)
}

func (h *Handlers) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	out, err := h.Q.GetProduct(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeCached(w, r, out)
}

func (h *Handlers) productsForPlace(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	all := r.URL.Query().Get("include_unavailable") == "true"
	out, err := h.Q.ProductsForPlace(r.Context(), id, all)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeCached(w, r, out)
}

func (h *Handlers) placesForProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	all := r.URL.Query().Get("include_unavailable") == "true"
	out, err := h.Q.PlacesForProduct(r.Context(), id, all)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeCached(w, r, out)
}

func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	out, err := h.Q.ReviewsForPlace(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeCached(w, r, out)
}

func (h *Handlers) listAnswers(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	q, answers, err := h.Q.AnswersForQuestion(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeCached(w, r, struct {
		Question domain.Question
		Answers  []domain.Answer
	}{q, answers})
}

// ---- ingestion handlers ----

func (h *Handlers) upsertPlace(w http.ResponseWriter, r *http.Request) {
	var p domain.Place
	if err := decode(r, &p); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}
	out, err := h.C.UpsertPlace(r.Context(), p)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) deletePlace(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	if err := h.C.DeletePlace(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) recordView(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	views, err := h.C.RecordPlaceView(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		ViewCount int64
	}{views})
}

func (h *Handlers) upsertProduct(w http.ResponseWriter, r *http.Request) {
	var p domain.Product
	if err := decode(r, &p); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}
	out, err := h.C.UpsertProduct(r.Context(), p)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	if err := h.C.DeleteProduct(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) upsertInventory(w http.ResponseWriter, r *http.Request) {
	var l domain.InventoryLink
	if err := decode(r, &l); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}
	out, err := h.C.UpsertInventory(r.Context(), l)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) submitReview(w http.ResponseWriter, r *http.Request) {
	var rv domain.Review
	if err := decode(r, &rv); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}
	out, err := h.C.SubmitReview(r.Context(), rv)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handlers) moderateReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	var body struct {
		State domain.ReviewState
	}
	if err := decode(r, &body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}
	out, err := h.C.ModerateReview(r.Context(), id, body.State)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) editReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	var body struct {
		Rating int
		Text   string
	}
	if err := decode(r, &body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}
	out, err := h.C.EditReview(r.Context(), id, body.Rating, body.Text)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) respondToReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	var body struct {
		OwnerUserID int64
		Text        string
	}
	if err := decode(r, &body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}
	out, err := h.C.RespondToReview(r.Context(), id, body.OwnerUserID, body.Text)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) askQuestion(w http.ResponseWriter, r *http.Request) {
	var q domain.Question
	if err := decode(r, &q); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}
	out, err := h.C.AskQuestion(r.Context(), q)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handlers) createAnswer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	var a domain.Answer
	if err := decode(r, &a); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}
	a.QuestionID = id
	out, err := h.C.CreateAnswer(r.Context(), a)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handlers) castVote(w http.ResponseWriter, r *http.Request) {
	var v domain.Vote
	if err := decode(r, &v); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}
	if err := h.C.Vote(r.Context(), v); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) setFavorite(w http.ResponseWriter, r *http.Request) {
	var f domain.Favorite
	if err := decode(r, &f); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}
	out, err := h.C.SetFavorite(r.Context(), f)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

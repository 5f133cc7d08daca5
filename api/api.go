// Package api exposes the scheduler, content and backup packages over an
// HTTP JSON interface built on chi.
package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"microdote/backup"
	"microdote/content"
	"microdote/scheduler"
	"microdote/store"
)

// Handler wires the persistent store, one scheduler per deck, and a backup
// manager into chi route handlers.
type Handler struct {
	store        store.Store
	collectionID string
	clock        scheduler.Clock
	idgen        *scheduler.IDGenerator
	cfg          scheduler.Config
	backupMgr    *backup.Manager
	logger       *log.Logger

	mu         sync.Mutex
	schedulers map[int64]*scheduler.Scheduler
}

// NewHandler constructs a Handler. clock drives both card id generation and
// every deck's Scheduler.
func NewHandler(st store.Store, collectionID string, clock scheduler.Clock, cfg scheduler.Config, backupMgr *backup.Manager, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		store:        st,
		collectionID: collectionID,
		clock:        clock,
		idgen:        scheduler.NewIDGenerator(clock),
		cfg:          cfg,
		backupMgr:    backupMgr,
		logger:       logger,
		schedulers:   make(map[int64]*scheduler.Scheduler),
	}
}

// Router builds the chi router for the whole API surface.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HealthCheck)
		r.Get("/collection", h.GetCollection)

		r.Get("/decks", h.ListDecks)
		r.Post("/decks", h.CreateDeck)
		r.Get("/decks/{id}/stats", h.GetDeckStats)
		r.Post("/decks/{id}/reset", h.ResetDeck)
		r.Post("/decks/{id}/next-card", h.NextCard)

		r.Post("/notes", h.CreateNote)
		r.Get("/notes/{id}", h.GetNote)
		r.Post("/notes/check-duplicate", h.CheckDuplicate)

		r.Get("/cards/{id}", h.GetCard)
		r.Post("/cards/{id}/answer", h.AnswerCard)

		r.Post("/backups", h.CreateBackup)
		r.Post("/backups/restore", h.RestoreBackup)
	})

	return r
}

// schedulerFor returns (creating if necessary) the Scheduler for deckID,
// loading its cards from the store on first use.
func (h *Handler) schedulerFor(deckID int64) (*scheduler.Scheduler, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s, ok := h.schedulers[deckID]; ok {
		return s, nil
	}

	deck, err := h.store.GetDeck(deckID)
	if err != nil {
		return nil, fmt.Errorf("api: load deck %d: %w", deckID, err)
	}
	col, err := h.store.GetCollection(h.collectionID)
	if err != nil {
		return nil, fmt.Errorf("api: load collection: %w", err)
	}
	deck.Collection = col

	s := scheduler.NewScheduler(deck, h.clock, h.cfg)
	h.schedulers[deckID] = s
	return s, nil
}

// Request/response types

type createDeckRequest struct {
	Name string `json:"name"`
}

type deckResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type createNoteRequest struct {
	TypeName  string            `json:"typeName"`
	DeckID    int64             `json:"deckId"`
	FieldVals map[string]string `json:"fieldVals"`
}

type checkDuplicateRequest struct {
	FieldName string `json:"fieldName"`
	Value     string `json:"value"`
}

type duplicateResult struct {
	IsDuplicate bool           `json:"isDuplicate"`
	Duplicates  []content.Note `json:"duplicates,omitempty"`
}

type answerCardRequest struct {
	Grade int `json:"grade"`
}

// Handlers

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) GetCollection(w http.ResponseWriter, r *http.Request) {
	col, err := h.store.GetCollection(h.collectionID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, col)
}

func (h *Handler) ListDecks(w http.ResponseWriter, r *http.Request) {
	decks, err := h.store.ListDecks(h.collectionID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]deckResponse, 0, len(decks))
	for _, d := range decks {
		out = append(out, deckResponse{ID: d.ID, Name: d.Name})
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateDeck(w http.ResponseWriter, r *http.Request) {
	var req createDeckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "deck name is required", http.StatusBadRequest)
		return
	}

	id := h.idgen.Next()
	deck := &scheduler.Deck{ID: id, Name: content.SanitizeHTML(req.Name)}
	if err := h.store.CreateDeck(h.collectionID, deck); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusCreated, deckResponse{ID: deck.ID, Name: deck.Name})
}

func (h *Handler) GetDeckStats(w http.ResponseWriter, r *http.Request) {
	deckID, err := parseIDParam(r, "id")
	if err != nil {
		http.Error(w, "invalid deck id", http.StatusBadRequest)
		return
	}
	stats, err := h.store.GetDeckStats(deckID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (h *Handler) ResetDeck(w http.ResponseWriter, r *http.Request) {
	deckID, err := parseIDParam(r, "id")
	if err != nil {
		http.Error(w, "invalid deck id", http.StatusBadRequest)
		return
	}
	s, err := h.schedulerFor(deckID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.Reset()
	respondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) NextCard(w http.ResponseWriter, r *http.Request) {
	deckID, err := parseIDParam(r, "id")
	if err != nil {
		http.Error(w, "invalid deck id", http.StatusBadRequest)
		return
	}
	s, err := h.schedulerFor(deckID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	card, ok := s.NextCard()
	if !ok {
		respondJSON(w, http.StatusOK, map[string]any{"done": true})
		return
	}
	respondJSON(w, http.StatusOK, card)
}

func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req createNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	nt, err := h.store.GetNoteType(h.collectionID, content.NoteTypeName(req.TypeName))
	if err != nil {
		http.Error(w, fmt.Sprintf("unknown note type %q", req.TypeName), http.StatusBadRequest)
		return
	}
	deck, err := h.store.GetDeck(req.DeckID)
	if err != nil {
		http.Error(w, fmt.Sprintf("unknown deck %d", req.DeckID), http.StatusBadRequest)
		return
	}
	col, err := h.store.GetCollection(h.collectionID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	deck.Collection = col

	noteID := h.idgen.Next()
	note := content.NewNote(noteID, content.NoteTypeName(req.TypeName), req.FieldVals, time.Now())

	cards, err := content.GenerateCards(*nt, note, deck, h.idgen, h.clock.NowS())
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	if err := h.store.CreateNote(h.collectionID, note); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	for _, c := range cards {
		if err := h.store.CreateCard(deck.ID, c); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	respondJSON(w, http.StatusCreated, map[string]any{"note": note, "cards": cards})
}

func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		http.Error(w, "invalid note id", http.StatusBadRequest)
		return
	}
	note, err := h.store.GetNote(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, note)
}

func (h *Handler) CheckDuplicate(w http.ResponseWriter, r *http.Request) {
	var req checkDuplicateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	dups, err := h.store.FindDuplicateNotes(h.collectionID, req.FieldName, req.Value)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, duplicateResult{IsDuplicate: len(dups) > 0, Duplicates: dups})
}

func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		http.Error(w, "invalid card id", http.StatusBadRequest)
		return
	}
	card, err := h.store.GetCard(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, card)
}

func (h *Handler) AnswerCard(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		http.Error(w, "invalid card id", http.StatusBadRequest)
		return
	}
	var req answerCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	card, err := h.store.GetCard(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	deckCardBelongsTo, err := h.store.DeckIDForCard(card.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s, err := h.schedulerFor(deckCardBelongsTo)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := s.Answer(card.Card, scheduler.Grade(req.Grade)); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.store.UpdateCard(card); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, card)
}

func (h *Handler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	path, err := h.backupMgr.CreateBackup(h.collectionID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"path": path})
}

func (h *Handler) RestoreBackup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.backupMgr.RestoreBackup(req.Path); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "restored"})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func parseIDParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

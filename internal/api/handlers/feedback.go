package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"perfpulse/internal/core"
	"perfpulse/internal/external"
	"perfpulse/internal/types"
)

// SentimentScorer scores free-form feedback text. Nil when no scoring
// service is configured.
type SentimentScorer interface {
	Score(ctx context.Context, text string) (external.SentimentScore, error)
}

// FeedbackStore persists submitted feedback items.
type FeedbackStore interface {
	InsertFeedback(ctx context.Context, item *types.FeedbackItem) error
}

// FeedbackHandler ingests feedback submissions, scoring sentiment on the way
// in so aggregation can read stored scores without calling the ML service.
type FeedbackHandler struct {
	store    FeedbackStore
	scorer   SentimentScorer
	validate *validator.Validate
	logger   *slog.Logger
	clock    types.Clock
}

// NewFeedbackHandler creates a FeedbackHandler. scorer may be nil; feedback
// is then stored unscored.
func NewFeedbackHandler(store FeedbackStore, scorer SentimentScorer, logger *slog.Logger, clock types.Clock) *FeedbackHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &FeedbackHandler{
		store:    store,
		scorer:   scorer,
		validate: validator.New(),
		logger:   logger,
		clock:    clock,
	}
}

// RegisterRoutes mounts the feedback endpoints onto the mux.
func (h *FeedbackHandler) RegisterRoutes(r chi.Router) {
	r.Post("/feedback", h.HandleSubmitFeedback)
}

// submitFeedbackRequest is the POST /v1/feedback request body.
type submitFeedbackRequest struct {
	OrganizationID string `json:"organization_id" validate:"required"`
	RecipientID    string `json:"recipient_id" validate:"required"`
	AuthorID       string `json:"author_id" validate:"required"`
	FeedbackType   string `json:"feedback_type" validate:"required,oneof=positive constructive neutral"`
	Body           string `json:"body" validate:"required,max=10000"`
}

// HandleSubmitFeedback stores one feedback item. Sentiment scoring is best
// effort: a scoring failure leaves the item unscored rather than rejecting
// the submission.
func (h *FeedbackHandler) HandleSubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var req submitFeedbackRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationBadRequest,
			fmt.Sprintf("invalid feedback submission: %v", err), err))
		return
	}

	item := &types.FeedbackItem{
		ID:             fmt.Sprintf("fb_%s", uuid.NewString()),
		OrganizationID: req.OrganizationID,
		RecipientID:    req.RecipientID,
		AuthorID:       req.AuthorID,
		Type:           types.FeedbackType(req.FeedbackType),
		Body:           req.Body,
		CreatedAt:      h.clock.Now(),
	}

	if h.scorer != nil {
		score, err := h.scorer.Score(r.Context(), req.Body)
		if err != nil {
			h.logger.WarnContext(r.Context(), "sentiment scoring failed, storing unscored",
				"organization_id", req.OrganizationID,
				"error", err,
			)
		} else {
			item.SentimentScore = &score.Score
		}
	}

	if err := h.store.InsertFeedback(r.Context(), item); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "feedback submitted",
		"feedback_id", item.ID,
		"organization_id", item.OrganizationID,
		"scored", item.SentimentScore != nil,
	)
	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: item})
}

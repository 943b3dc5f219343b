package handlers

import (
	"net/http"

	"github.com/adboard/apiserver/internal/services"
	"github.com/go-chi/chi/v5"
)

// CommentHandler provides HTTP handlers for the comments of an ad.
type CommentHandler struct {
	commentService *services.CommentService
	identity       *services.IdentityResolver
}

func NewCommentHandler(commentService *services.CommentService, identity *services.IdentityResolver) *CommentHandler {
	return &CommentHandler{
		commentService: commentService,
		identity:       identity,
	}
}

// CommentRouter registers comment routes on a router mounted under
// /ads/{adID}/comments. Editing and deleting is limited to admins and the
// comment's author.
func CommentRouter(
	r chi.Router,
	commentService *services.CommentService,
	policy *services.OwnershipPolicy,
	identity *services.IdentityResolver,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewCommentHandler(commentService, identity)
	guard := requireRule(identity, commentAuthorRule(policy))

	r.Use(authMiddleware)
	r.Get("/", handler.ListComments)
	r.Post("/", handler.CreateComment)
	r.With(guard).Patch("/{commentID}", handler.UpdateComment)
	r.With(guard).Delete("/{commentID}", handler.DeleteComment)
}

type CommentRequest struct {
	Text string `json:"text"`
}

func (h *CommentHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	adID, err := parseAdID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	comments, err := h.commentService.ListByAd(r.Context(), adID)
	if err != nil {
		writeServiceError(w, r, err, "failed to list comments")
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(comments))
}

func (h *CommentHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	principal, err := h.identity.CurrentPrincipal(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "failed to create comment")
		return
	}
	adID, err := parseAdID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req CommentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	comment, err := h.commentService.Create(r.Context(), principal, adID, req.Text)
	if err != nil {
		writeServiceError(w, r, err, "failed to create comment")
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (h *CommentHandler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	adID, err := parseAdID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	commentID, err := parseCommentID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req CommentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	comment, err := h.commentService.Update(r.Context(), adID, commentID, req.Text)
	if err != nil {
		writeServiceError(w, r, err, "failed to update comment")
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

func (h *CommentHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	adID, err := parseAdID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	commentID, err := parseCommentID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.commentService.Delete(r.Context(), adID, commentID); err != nil {
		writeServiceError(w, r, err, "failed to delete comment")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

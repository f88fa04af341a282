package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"stackit/internal/middleware"
	"stackit/internal/models"
	"stackit/internal/services"
	"stackit/internal/utils"
)

type CommentHandler struct {
	db     *gorm.DB
	events *services.EventService
}

func NewCommentHandler(db *gorm.DB, events *services.EventService) *CommentHandler {
	return &CommentHandler{db: db, events: events}
}

func (h *CommentHandler) List(c *gin.Context) {
	postID := utils.StringToUint(c.Param("id"))

	var comments []models.Comment
	err := h.db.WithContext(c.Request.Context()).
		Preload("User").
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Find(&comments).Error
	if err != nil {
		Error(c, err)
		return
	}
	for i := range comments {
		comments[i].BodyHTML = utils.RenderMarkdown(comments[i].Body)
	}
	c.JSON(http.StatusOK, comments)
}

func (h *CommentHandler) Create(c *gin.Context) {
	user := middleware.CurrentUser(c)
	postID := utils.StringToUint(c.Param("id"))

	var req struct {
		Body string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"kind": "bad_request", "error": err.Error()})
		return
	}

	comment, err := h.events.CreateComment(c.Request.Context(), user, postID, req.Body)
	if err != nil {
		Error(c, err)
		return
	}
	comment.BodyHTML = utils.RenderMarkdown(comment.Body)
	c.JSON(http.StatusCreated, comment)
}

// Accept toggles the accepted flag on a comment and returns its new
// state.
func (h *CommentHandler) Accept(c *gin.Context) {
	user := middleware.CurrentUser(c)
	commentID := utils.StringToUint(c.Param("id"))

	comment, err := h.events.ToggleAccept(c.Request.Context(), user, commentID)
	if err != nil {
		Error(c, err)
		return
	}
	comment.BodyHTML = utils.RenderMarkdown(comment.Body)
	c.JSON(http.StatusOK, comment)
}

// Vote casts, switches or retracts the caller's vote on a comment and
// returns the comment's updated state.
func (h *CommentHandler) Vote(c *gin.Context) {
	user := middleware.CurrentUser(c)
	commentID := utils.StringToUint(c.Param("id"))

	var req struct {
		VoteType models.VoteType `json:"vote_type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"kind": "bad_request", "error": err.Error()})
		return
	}

	comment, err := h.events.CastVote(c.Request.Context(), user, commentID, req.VoteType)
	if err != nil {
		Error(c, err)
		return
	}
	comment.BodyHTML = utils.RenderMarkdown(comment.Body)
	c.JSON(http.StatusOK, comment)
}

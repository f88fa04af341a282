package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"stackit/internal/apperr"
	"stackit/internal/middleware"
	"stackit/internal/models"
	"stackit/internal/services"
	"stackit/internal/utils"
)

type PostHandler struct {
	db     *gorm.DB
	events *services.EventService
}

func NewPostHandler(db *gorm.DB, events *services.EventService) *PostHandler {
	return &PostHandler{db: db, events: events}
}

type postRequest struct {
	Title  string `json:"title" binding:"required"`
	Body   string `json:"body" binding:"required"`
	TagIDs []uint `json:"tag_ids" binding:"required"`
}

func (h *PostHandler) List(c *gin.Context) {
	var posts []models.Post
	err := h.db.WithContext(c.Request.Context()).
		Preload("User").
		Preload("Tags").
		Order("created_at DESC").
		Find(&posts).Error
	if err != nil {
		Error(c, err)
		return
	}
	for i := range posts {
		posts[i].BodyHTML = utils.RenderMarkdown(posts[i].Body)
	}
	c.JSON(http.StatusOK, posts)
}

func (h *PostHandler) Get(c *gin.Context) {
	id := utils.StringToUint(c.Param("id"))

	var post models.Post
	err := h.db.WithContext(c.Request.Context()).
		Preload("User").
		Preload("Tags").
		First(&post, id).Error
	if err != nil {
		Error(c, apperr.NotFound("post %d not found", id))
		return
	}

	var comments int64
	h.db.Model(&models.Comment{}).Where("post_id = ?", post.ID).Count(&comments)
	post.CommentCount = int(comments)
	post.BodyHTML = utils.RenderMarkdown(post.Body)
	c.JSON(http.StatusOK, post)
}

func (h *PostHandler) Create(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"kind": "bad_request", "error": err.Error()})
		return
	}

	post, err := h.events.CreatePost(c.Request.Context(), user, req.Title, req.Body, req.TagIDs)
	if err != nil {
		Error(c, err)
		return
	}
	post.BodyHTML = utils.RenderMarkdown(post.Body)
	c.JSON(http.StatusCreated, post)
}

func (h *PostHandler) Update(c *gin.Context) {
	user := middleware.CurrentUser(c)
	id := utils.StringToUint(c.Param("id"))

	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"kind": "bad_request", "error": err.Error()})
		return
	}

	post, err := h.events.UpdatePost(c.Request.Context(), user, id, req.Title, req.Body, req.TagIDs)
	if err != nil {
		Error(c, err)
		return
	}
	post.BodyHTML = utils.RenderMarkdown(post.Body)
	c.JSON(http.StatusOK, post)
}

package generate

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"persona-app/database"
	"persona-app/internal/credits"
	"persona-app/internal/domain/generations"
	"persona-app/internal/generation"
	"persona-app/internal/infra/storage"

	"github.com/gin-gonic/gin"
)

// maxReferenceUpload bounds a single uploaded reference image.
const maxReferenceUpload = 16 << 20

type Handler struct {
	orchestrator *generation.Orchestrator
	uploader     *storage.Uploader
}

func NewHandler(orchestrator *generation.Orchestrator, uploader *storage.Uploader) *Handler {
	return &Handler{orchestrator: orchestrator, uploader: uploader}
}

// POST /generate
func (h *Handler) Generate(c *gin.Context) {
	userID := c.GetUint("user_id")

	req := generation.Request{
		UserID:      userID,
		Prompt:      c.PostForm("prompt"),
		AIModelID:   c.PostForm("aiModelId"),
		AspectRatio: c.DefaultPostForm("aspectRatio", "1:1"),
		Resolution:  c.DefaultPostForm("resolution", "1K"),
		Count:       1,
	}

	if raw := c.PostForm("imageCount"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "imageCount must be an integer"})
			return
		}
		req.Count = n
	}

	if raw := c.PostForm("modelId"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "modelId must be an integer"})
			return
		}
		personaID := uint(id)
		req.PersonaID = &personaID
	}

	if raw := c.PostForm("referenceOptions"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.ReferenceOptions); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "referenceOptions must be a JSON array of strings"})
			return
		}
	}

	if file, err := c.FormFile("referenceImage"); err == nil {
		if file.Size > maxReferenceUpload {
			c.JSON(http.StatusBadRequest, gin.H{"error": "reference image too large"})
			return
		}
		f, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read reference image"})
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read reference image"})
			return
		}
		req.ReferenceImage = data
	}

	result, err := h.orchestrator.Generate(c.Request.Context(), req)
	if err != nil {
		respondGenerationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"images":           result.Images,
		"creditsUsed":      result.CreditsUsed,
		"remainingCredits": result.RemainingCredits,
	})
}

// POST /generate/edit
func (h *Handler) Edit(c *gin.Context) {
	userID := c.GetUint("user_id")

	result, err := h.orchestrator.Edit(c.Request.Context(), generation.EditRequest{
		UserID:            userID,
		Instruction:       c.PostForm("prompt"),
		ReferenceImageURL: c.PostForm("referenceImageUrl"),
		AIModelID:         c.PostForm("aiModelId"),
		AspectRatio:       c.DefaultPostForm("aspectRatio", "1:1"),
		Resolution:        c.DefaultPostForm("resolution", "1K"),
	})
	if err != nil {
		respondGenerationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"images":           result.Images,
		"creditsUsed":      result.CreditsUsed,
		"remainingCredits": result.RemainingCredits,
	})
}

// GET /generations
func (h *Handler) List(c *gin.Context) {
	userID := c.GetUint("user_id")

	var rows []generations.Generation
	if err := database.DB.
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load generations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"generations": rows})
}

// DELETE /generations/:id
func (h *Handler) Delete(c *gin.Context) {
	userID := c.GetUint("user_id")

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid generation id"})
		return
	}

	var row generations.Generation
	if err := database.DB.
		Where("id = ? AND user_id = ?", id, userID).
		First(&row).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "generation not found"})
		return
	}

	if err := database.DB.Delete(&row).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete generation"})
		return
	}

	// The stored object is removed best-effort; the row is already gone.
	if row.ImageURL != "" {
		_ = h.uploader.Delete(c.Request.Context(), row.ImageURL)
	}

	c.JSON(http.StatusOK, gin.H{"message": "generation deleted"})
}

func respondGenerationError(c *gin.Context, err error) {
	var invalid *generation.InvalidRequestError
	if errors.As(err, &invalid) {
		c.JSON(http.StatusBadRequest, gin.H{"error": invalid.Reason})
		return
	}
	if errors.Is(err, generation.ErrModelNotReady) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "model is not ready for generation"})
		return
	}
	var insufficient *credits.InsufficientCreditsError
	if errors.As(err, &insufficient) {
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":     "insufficient credits",
			"required":  insufficient.Required,
			"available": insufficient.Available,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "image generation failed"})
}

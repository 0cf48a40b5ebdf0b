package personas

import (
	"io"
	"net/http"
	"strconv"

	"persona-app/database"
	"persona-app/internal/domain/personas"
	"persona-app/internal/infra/storage"
	"persona-app/internal/training"

	"github.com/gin-gonic/gin"
)

const (
	minSelfies      = 1
	maxSelfies      = 20
	maxSelfieUpload = 16 << 20
)

type Handler struct {
	uploader *storage.Uploader
	runner   *training.Runner
}

func NewHandler(uploader *storage.Uploader, runner *training.Runner) *Handler {
	return &Handler{uploader: uploader, runner: runner}
}

// POST /models
func (h *Handler) Create(c *gin.Context) {
	userID := c.GetUint("user_id")

	name := c.PostForm("name")
	personaType := c.PostForm("type")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	if !personas.ValidType(personaType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be one of man, woman, person, style"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form required"})
		return
	}
	files := form.File["selfies"]
	if len(files) < minSelfies || len(files) > maxSelfies {
		c.JSON(http.StatusBadRequest, gin.H{"error": "between 1 and 20 selfies are required"})
		return
	}

	var imageURLs []string
	for _, file := range files {
		if file.Size > maxSelfieUpload {
			c.JSON(http.StatusBadRequest, gin.H{"error": "selfie too large: " + file.Filename})
			return
		}
		f, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read selfie: " + file.Filename})
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read selfie: " + file.Filename})
			return
		}

		contentType := file.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "image/jpeg"
		}
		url, err := h.uploader.Upload(c.Request.Context(), data, contentType)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store selfie"})
			return
		}
		imageURLs = append(imageURLs, url)
	}

	persona := personas.Persona{
		UserID:         userID,
		Name:           name,
		Type:           personaType,
		Status:         personas.StatusTraining,
		Progress:       0,
		TrainingImages: imageURLs,
	}
	if err := database.DB.Create(&persona).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create model"})
		return
	}

	if err := h.runner.Enqueue(c.Request.Context(), persona.ID); err != nil {
		// The row exists but training never starts; mark it failed so the
		// client is not left polling a stuck model.
		database.DB.Model(&personas.Persona{}).
			Where("id = ?", persona.ID).
			Updates(map[string]interface{}{"status": personas.StatusFailed})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start training"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"model": persona})
}

// GET /models
func (h *Handler) List(c *gin.Context) {
	userID := c.GetUint("user_id")

	var rows []personas.Persona
	if err := database.DB.
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load models"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"models": rows})
}

// GET /models/:id
func (h *Handler) Get(c *gin.Context) {
	userID := c.GetUint("user_id")

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid model id"})
		return
	}

	var persona personas.Persona
	if err := database.DB.
		Where("id = ? AND user_id = ?", id, userID).
		First(&persona).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "model not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"model": persona})
}

// DELETE /models/:id
func (h *Handler) Delete(c *gin.Context) {
	userID := c.GetUint("user_id")

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid model id"})
		return
	}

	var persona personas.Persona
	if err := database.DB.
		Where("id = ? AND user_id = ?", id, userID).
		First(&persona).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "model not found"})
		return
	}

	if err := database.DB.Delete(&persona).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete model"})
		return
	}

	for _, url := range persona.TrainingImages {
		_ = h.uploader.Delete(c.Request.Context(), url)
	}

	c.JSON(http.StatusOK, gin.H{"message": "model deleted"})
}

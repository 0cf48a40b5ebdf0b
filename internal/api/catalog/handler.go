package catalog

import (
	"net/http"
	"strconv"
	"strings"

	"persona-app/database"
	"persona-app/internal/domain/catalog"

	"github.com/gin-gonic/gin"
)

// GET /templates
func List(c *gin.Context) {
	query := database.DB.Preload("Tags").Order("created_at DESC")

	if tag := c.Query("tag"); tag != "" {
		query = query.
			Joins("JOIN template_tags ON template_tags.template_id = templates.id").
			Joins("JOIN tags ON tags.id = template_tags.tag_id").
			Where("tags.name = ?", tag)
	}

	var templates []catalog.Template
	if err := query.Find(&templates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load templates"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"templates": templates})
}

// GET /templates/:slug
func GetBySlug(c *gin.Context) {
	slug := c.Param("slug")

	var template catalog.Template
	if err := database.DB.Preload("Tags").
		Where("slug = ?", slug).
		First(&template).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "template not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"template": template})
}

type templateInput struct {
	Heading      string   `json:"heading" binding:"required"`
	Prompt       string   `json:"prompt" binding:"required"`
	PseudoPrompt string   `json:"pseudoPrompt"`
	ImageURL     string   `json:"imageUrl"`
	Tags         []string `json:"tags"`
}

// POST /admin/templates
func Create(c *gin.Context) {
	var input templateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "heading and prompt are required"})
		return
	}

	slug, err := catalog.UniqueSlug(database.DB, input.Heading)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to derive slug"})
		return
	}

	tags, err := resolveTags(input.Tags)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve tags"})
		return
	}

	template := catalog.Template{
		Heading:      input.Heading,
		Slug:         slug,
		Prompt:       input.Prompt,
		PseudoPrompt: input.PseudoPrompt,
		ImageURL:     input.ImageURL,
		Tags:         tags,
	}
	if err := database.DB.Create(&template).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create template"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"template": template})
}

// PUT /admin/templates/:id
func Update(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template id"})
		return
	}

	var template catalog.Template
	if err := database.DB.First(&template, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "template not found"})
		return
	}

	var input templateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "heading and prompt are required"})
		return
	}

	if input.Heading != template.Heading {
		slug, err := catalog.UniqueSlug(database.DB, input.Heading)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to derive slug"})
			return
		}
		template.Slug = slug
	}

	tags, err := resolveTags(input.Tags)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve tags"})
		return
	}

	template.Heading = input.Heading
	template.Prompt = input.Prompt
	template.PseudoPrompt = input.PseudoPrompt
	template.ImageURL = input.ImageURL

	if err := database.DB.Save(&template).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update template"})
		return
	}
	if err := database.DB.Model(&template).Association("Tags").Replace(tags); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update tags"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"template": template})
}

// DELETE /admin/templates/:id
func Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template id"})
		return
	}

	var template catalog.Template
	if err := database.DB.First(&template, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "template not found"})
		return
	}

	if err := database.DB.Select("Tags").Delete(&template).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete template"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "template deleted"})
}

func resolveTags(names []string) ([]catalog.Tag, error) {
	var tags []catalog.Tag
	for _, name := range names {
		name = strings.TrimSpace(strings.ToLower(name))
		if name == "" {
			continue
		}
		var tag catalog.Tag
		if err := database.DB.Where(catalog.Tag{Name: name}).FirstOrCreate(&tag).Error; err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

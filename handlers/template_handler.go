package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"visionchatserver/database"
	"visionchatserver/models"
	"visionchatserver/templates"
)

// GetTemplates возвращает список шаблонов уведомлений.
// Поддерживаются фильтры ?type=email|whatsapp|sms и ?active=true.
func GetTemplates(c *gin.Context) {
	templateType := c.Query("type")
	onlyActive := c.Query("active") == "true"

	items, err := database.ListTemplates(templateType, onlyActive)
	if err != nil {
		log.Printf("Ошибка получения шаблонов: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка получения шаблонов"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items, "totalItems": len(items)})
}

// GetTemplateByID возвращает один шаблон
func GetTemplateByID(c *gin.Context) {
	tpl, err := database.GetTemplate(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Шаблон не найден"})
		return
	}
	c.JSON(http.StatusOK, tpl)
}

// CreateTemplate создает шаблон после проверки движком
func CreateTemplate(c *gin.Context) {
	var tpl models.NotificationTemplate
	if err := c.ShouldBindJSON(&tpl); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные данные: " + err.Error()})
		return
	}

	if fieldErrors := templates.ValidateTemplate(tpl); len(fieldErrors) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": fieldErrors})
		return
	}

	created, err := database.CreateTemplate(tpl)
	if err != nil {
		log.Printf("Ошибка создания шаблона: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка создания шаблона"})
		return
	}

	log.Printf("Создан шаблон %s (%s, тип %s)", created.ID, created.Name, created.Type)
	c.JSON(http.StatusCreated, created)
}

// UpdateTemplate обновляет существующий шаблон
func UpdateTemplate(c *gin.Context) {
	var tpl models.NotificationTemplate
	if err := c.ShouldBindJSON(&tpl); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные данные: " + err.Error()})
		return
	}
	tpl.ID = c.Param("id")

	if fieldErrors := templates.ValidateTemplate(tpl); len(fieldErrors) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": fieldErrors})
		return
	}

	updated, err := database.UpdateTemplate(tpl)
	if err != nil {
		if strings.Contains(err.Error(), "не найден") {
			c.JSON(http.StatusNotFound, gin.H{"error": "Шаблон не найден"})
			return
		}
		log.Printf("Ошибка обновления шаблона %s: %v", tpl.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка обновления шаблона"})
		return
	}

	c.JSON(http.StatusOK, updated)
}

// DeleteTemplate удаляет шаблон
func DeleteTemplate(c *gin.Context) {
	id := c.Param("id")
	if err := database.DeleteTemplate(id); err != nil {
		if strings.Contains(err.Error(), "не найден") {
			c.JSON(http.StatusNotFound, gin.H{"error": "Шаблон не найден"})
			return
		}
		log.Printf("Ошибка удаления шаблона %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка удаления шаблона"})
		return
	}

	log.Printf("Удален шаблон %s", id)
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// PreviewTemplate подставляет данные в текст шаблона.
// Без присланных данных используются демонстрационные значения каталога.
func PreviewTemplate(c *gin.Context) {
	var body struct {
		Subject string            `json:"subject"`
		Content string            `json:"content" binding:"required"`
		Data    map[string]string `json:"data"`
		Syntax  string            `json:"syntax"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные данные: " + err.Error()})
		return
	}

	data := templates.SampleData()
	for k, v := range body.Data {
		data[k] = v
	}

	syntaxes := []templates.Syntax{templates.SyntaxCurly}
	if body.Syntax == string(templates.SyntaxBracket) {
		syntaxes = []templates.Syntax{templates.SyntaxBracket}
	}

	resp := gin.H{
		"preview":   templates.GeneratePreview(body.Content, data, syntaxes...),
		"variables": templates.ExtractVariables(body.Content, syntaxes...),
	}
	if body.Subject != "" {
		resp["subjectPreview"] = templates.GeneratePreview(body.Subject, data, syntaxes...)
	}

	c.JSON(http.StatusOK, resp)
}

// ValidateTemplateBody проверяет шаблон без сохранения
func ValidateTemplateBody(c *gin.Context) {
	var tpl models.NotificationTemplate
	if err := c.ShouldBindJSON(&tpl); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные данные: " + err.Error()})
		return
	}

	fieldErrors := templates.ValidateTemplate(tpl)
	c.JSON(http.StatusOK, gin.H{
		"valid":  len(fieldErrors) == 0,
		"errors": fieldErrors,
	})
}

// GetTemplateVariables возвращает каталог переменных шаблонов.
// Фильтр ?category=patient|event|system сужает список.
func GetTemplateVariables(c *gin.Context) {
	category := c.Query("category")

	var vars []templates.Variable
	if category != "" {
		vars = templates.CatalogByCategory(templates.Category(category))
	} else {
		vars = templates.Catalog()
	}

	c.JSON(http.StatusOK, gin.H{
		"variables": vars,
		"required": gin.H{
			models.TemplateTypeEmail:    templates.RequiredVariables(models.TemplateTypeEmail),
			models.TemplateTypeWhatsApp: templates.RequiredVariables(models.TemplateTypeWhatsApp),
			models.TemplateTypeSMS:      templates.RequiredVariables(models.TemplateTypeSMS),
		},
	})
}

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func setupTemplateTest() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/templates/preview", PreviewTemplate)
	r.POST("/api/templates/validate", ValidateTemplateBody)
	r.GET("/api/templates/variables", GetTemplateVariables)
	return r
}

func TestPreviewTemplateHandler(t *testing.T) {
	r := setupTemplateTest()

	w := postJSON(r, "/api/templates/preview", gin.H{
		"content": "Здравствуйте, {{patient_name}}! Ждём вас на {{event_name}}.",
		"data":    gin.H{"patient_name": "Анна"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("статус %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &resp)
	preview := resp["preview"].(string)

	// Присланное значение перекрывает демонстрационное, остальные
	// переменные берутся из каталога
	if !strings.Contains(preview, "Анна") {
		t.Errorf("preview = %q", preview)
	}
	if strings.Contains(preview, "{{") {
		t.Errorf("в предпросмотре остались плейсхолдеры: %q", preview)
	}
}

func TestPreviewTemplateMarksUnknown(t *testing.T) {
	r := setupTemplateTest()

	w := postJSON(r, "/api/templates/preview", gin.H{"content": "Привет, {{opechatka}}"})
	var resp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &resp)

	preview := resp["preview"].(string)
	if !strings.Contains(preview, "opechatka") || !strings.Contains(preview, "⚠️") {
		t.Errorf("неизвестная переменная не помечена: %q", preview)
	}
}

func TestPreviewTemplateBracketSyntax(t *testing.T) {
	r := setupTemplateTest()

	w := postJSON(r, "/api/templates/preview", gin.H{
		"content": "[patient_name], запись подтверждена",
		"syntax":  "bracket",
	})
	var resp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &resp)

	if preview := resp["preview"].(string); strings.Contains(preview, "[patient_name]") {
		t.Errorf("скобочный плейсхолдер не подставлен: %q", preview)
	}
}

func TestValidateTemplateHandler(t *testing.T) {
	r := setupTemplateTest()

	w := postJSON(r, "/api/templates/validate", gin.H{
		"name":    "Подтверждение",
		"type":    "email",
		"subject": "Запись на {{event_name}}",
		"content": "Здравствуйте, {{patient_name}}! Ждём на {{event_name}}.",
	})
	var resp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["valid"] != true {
		t.Errorf("валидный шаблон отклонён: %v", resp["errors"])
	}

	// Email без темы — невалиден
	w = postJSON(r, "/api/templates/validate", gin.H{
		"name":    "Без темы",
		"type":    "email",
		"content": "{{patient_name}} {{event_name}}",
	})
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["valid"] != false {
		t.Error("email-шаблон без темы должен быть невалиден")
	}
}

func TestGetTemplateVariablesHandler(t *testing.T) {
	r := setupTemplateTest()

	req := httptest.NewRequest(http.MethodGet, "/api/templates/variables", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("статус %d", w.Code)
	}

	var resp struct {
		Variables []struct {
			Name     string `json:"name"`
			Category string `json:"category"`
			Sample   string `json:"sample"`
		} `json:"variables"`
		Required map[string][]string `json:"required"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Variables) == 0 {
		t.Error("каталог переменных пуст")
	}
	if len(resp.Required["email"]) == 0 {
		t.Error("у email нет обязательных переменных")
	}

	// Фильтр по разделу
	req = httptest.NewRequest(http.MethodGet, "/api/templates/variables?category=patient", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	json.Unmarshal(w.Body.Bytes(), &resp)
	for _, v := range resp.Variables {
		if v.Category != "patient" {
			t.Errorf("фильтр вернул чужой раздел: %+v", v)
		}
	}
}

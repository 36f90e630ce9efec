package templates

import "visionchatserver/models"

// Category — раздел каталога переменных
type Category string

const (
	CategoryPatient Category = "patient"
	CategoryEvent   Category = "event"
	CategorySystem  Category = "system"
)

// Variable — одна переменная каталога с примером значения для предпросмотра
type Variable struct {
	Name        string   `json:"name"`
	Category    Category `json:"category"`
	Description string   `json:"description"`
	Sample      string   `json:"sample"`
}

// catalog — известные переменные, сгруппированные по разделам.
// Плейсхолдер вне каталога — ошибка валидации шаблона.
var catalog = []Variable{
	{"patient_name", CategoryPatient, "Имя пациента", "Мария Силва"},
	{"patient_phone", CategoryPatient, "Телефон пациента", "+55 11 91234-5678"},
	{"patient_email", CategoryPatient, "Email пациента", "maria@example.com"},
	{"event_name", CategoryEvent, "Название мероприятия", "День проверки зрения"},
	{"event_date", CategoryEvent, "Дата мероприятия", "15/10/2026"},
	{"event_time", CategoryEvent, "Время мероприятия", "09:00"},
	{"event_location", CategoryEvent, "Место проведения", "Поликлиника, зал 2"},
	{"system_name", CategorySystem, "Название системы", "VisionCare"},
	{"confirmation_link", CategorySystem, "Ссылка подтверждения записи", "https://visioncare.example/confirm/abc123"},
	{"current_date", CategorySystem, "Текущая дата", "01/09/2026"},
}

// requiredByType — обязательные переменные по каналу. У email и
// WhatsApp разный обязательный набор, SMS свободен.
var requiredByType = map[string][]string{
	models.TemplateTypeEmail:    {"patient_name", "event_name"},
	models.TemplateTypeWhatsApp: {"patient_name"},
	models.TemplateTypeSMS:      nil,
}

// Catalog возвращает копию каталога переменных
func Catalog() []Variable {
	out := make([]Variable, len(catalog))
	copy(out, catalog)
	return out
}

// CatalogByCategory возвращает переменные одного раздела
func CatalogByCategory(category Category) []Variable {
	var out []Variable
	for _, v := range catalog {
		if v.Category == category {
			out = append(out, v)
		}
	}
	return out
}

// RequiredVariables возвращает обязательные переменные канала
func RequiredVariables(templateType string) []string {
	req := requiredByType[templateType]
	out := make([]string, len(req))
	copy(out, req)
	return out
}

// SampleData возвращает примерные значения всех переменных каталога
// для генерации предпросмотра
func SampleData() map[string]string {
	data := make(map[string]string, len(catalog))
	for _, v := range catalog {
		data[v.Name] = v.Sample
	}
	return data
}

func knownNames() map[string]struct{} {
	known := make(map[string]struct{}, len(catalog))
	for _, v := range catalog {
		known[v.Name] = struct{}{}
	}
	return known
}

package security

import (
	"strings"
	"testing"
	"time"

	"visionchatserver/models"
)

func TestValidateAndSanitizeMessage(t *testing.T) {
	t.Run("обычный текст проходит без изменений", func(t *testing.T) {
		res := ValidateAndSanitizeMessage("Hello world!")
		if !res.Valid {
			t.Fatalf("отказ: %s (%s)", res.Code, res.Message)
		}
		if res.Value != "Hello world!" {
			t.Errorf("Value = %q, ожидалось исходное сообщение", res.Value)
		}
	})

	t.Run("не строка", func(t *testing.T) {
		res := ValidateAndSanitizeMessage(42)
		if res.Valid || res.Code != FailNotAString {
			t.Errorf("ожидался отказ %s, получено %+v", FailNotAString, res)
		}
	})

	t.Run("пустое и пробельное", func(t *testing.T) {
		for _, in := range []string{"", "   ", "\n\t"} {
			res := ValidateAndSanitizeMessage(in)
			if res.Valid || res.Code != FailEmpty {
				t.Errorf("ValidateAndSanitizeMessage(%q): ожидался %s, получено %+v", in, FailEmpty, res)
			}
		}
	})

	t.Run("граница длины в символах", func(t *testing.T) {
		// Кириллица: граница считается в рунах, не в байтах
		atLimit := strings.Repeat("я", MaxMessageLength)
		if res := ValidateAndSanitizeMessage(atLimit); !res.Valid {
			t.Errorf("сообщение ровно в %d символов должно проходить: %s", MaxMessageLength, res.Code)
		}

		overLimit := strings.Repeat("я", MaxMessageLength+1)
		if res := ValidateAndSanitizeMessage(overLimit); res.Valid || res.Code != FailTooLong {
			t.Errorf("ожидался отказ %s для %d символов", FailTooLong, MaxMessageLength+1)
		}
	})

	t.Run("XSS отклоняется целиком", func(t *testing.T) {
		res := ValidateAndSanitizeMessage("привет <script>alert(1)</script>")
		if res.Valid || res.Code != FailXSS {
			t.Errorf("ожидался отказ %s, получено %+v", FailXSS, res)
		}
	})

	t.Run("HTML без XSS вычищается", func(t *testing.T) {
		res := ValidateAndSanitizeMessage("текст с <b>разметкой</b>")
		if !res.Valid {
			t.Fatalf("отказ: %s", res.Code)
		}
		if res.Value != "текст с разметкой" {
			t.Errorf("Value = %q", res.Value)
		}
	})
}

func TestValidateAndSanitizeRequest(t *testing.T) {
	valid := func() *models.N8nChatRequest {
		return &models.N8nChatRequest{
			SessionID: "chat_public_abc123",
			Message:   "Здравствуйте!",
			UserType:  models.SessionTypePublic,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
	}

	t.Run("валидный запрос", func(t *testing.T) {
		res := ValidateAndSanitizeRequest(valid())
		if !res.Valid {
			t.Fatalf("отказ: %s (%s)", res.Code, res.Message)
		}
		if res.Request.Metadata == nil {
			t.Error("nil-метаданные должны заменяться пустой картой")
		}
	})

	t.Run("nil запрос", func(t *testing.T) {
		res := ValidateAndSanitizeRequest(nil)
		if res.Valid || res.Code != FailNotAnObject {
			t.Errorf("ожидался %s, получено %+v", FailNotAnObject, res)
		}
	})

	t.Run("формат идентификатора сессии", func(t *testing.T) {
		bad := []string{"", "abc", "chat_", "chat_other_x", "chat_public_", "chat_public_!!!", "session_public_x"}
		for _, id := range bad {
			req := valid()
			req.SessionID = id
			res := ValidateAndSanitizeRequest(req)
			if res.Valid || res.Code != FailInvalidSession {
				t.Errorf("sessionID %q: ожидался %s, получено %+v", id, FailInvalidSession, res)
			}
		}
		for _, id := range []string{"chat_public_abc", "chat_admin_A1-b_2"} {
			req := valid()
			req.SessionID = id
			if res := ValidateAndSanitizeRequest(req); !res.Valid {
				t.Errorf("sessionID %q должен проходить: %s", id, res.Code)
			}
		}
	})

	t.Run("тип пользователя", func(t *testing.T) {
		req := valid()
		req.UserType = "visitor"
		res := ValidateAndSanitizeRequest(req)
		if res.Valid || res.Code != FailInvalidUserType {
			t.Errorf("ожидался %s, получено %+v", FailInvalidUserType, res)
		}
	})

	t.Run("timestamp", func(t *testing.T) {
		req := valid()
		req.Timestamp = "вчера"
		res := ValidateAndSanitizeRequest(req)
		if res.Valid || res.Code != FailInvalidTime {
			t.Errorf("ожидался %s, получено %+v", FailInvalidTime, res)
		}
	})

	t.Run("метаданные очищаются рекурсивно", func(t *testing.T) {
		req := valid()
		req.Metadata = map[string]interface{}{
			"page":  "<b>главная</b>",
			"count": 3,
			"nested": map[string]interface{}{
				"ref": "utm  <i>source</i>",
			},
			"list": []interface{}{"<u>a</u>", 1},
		}
		res := ValidateAndSanitizeRequest(req)
		if !res.Valid {
			t.Fatalf("отказ: %s", res.Code)
		}
		md := res.Request.Metadata
		if md["page"] != "главная" {
			t.Errorf("page = %v", md["page"])
		}
		if md["count"] != 3 {
			t.Errorf("числовые значения должны сохраняться: %v", md["count"])
		}
		nested := md["nested"].(map[string]interface{})
		if nested["ref"] != "utm source" {
			t.Errorf("nested.ref = %v", nested["ref"])
		}
		list := md["list"].([]interface{})
		if list[0] != "a" || list[1] != 1 {
			t.Errorf("list = %v", list)
		}
	})
}

func TestValidateResponse(t *testing.T) {
	t.Run("валидный ответ с очисткой", func(t *testing.T) {
		raw := []byte(`{"success":true,"data":{"response":"<b>Записали вас!</b>","actions":[{"type":"open","payload":{"url":"<i>x</i>"}}],"sessionComplete":true}}`)
		res := ValidateResponse(raw)
		if !res.Valid {
			t.Fatalf("отказ: %s (%s)", res.Code, res.Message)
		}
		if res.Response.Data.Response != "Записали вас!" {
			t.Errorf("Response = %q", res.Response.Data.Response)
		}
		if !res.Response.Data.SessionComplete {
			t.Error("sessionComplete потерян")
		}
		if res.Response.Data.Actions[0].Payload["url"] != "x" {
			t.Errorf("payload действия не очищен: %v", res.Response.Data.Actions[0].Payload)
		}
	})

	t.Run("не объект", func(t *testing.T) {
		for _, raw := range []string{`[1,2]`, `"строка"`, `мусор`} {
			res := ValidateResponse([]byte(raw))
			if res.Valid || res.Code != FailNotAnObject {
				t.Errorf("ValidateResponse(%s): ожидался %s, получено %+v", raw, FailNotAnObject, res)
			}
		}
	})

	t.Run("поле success", func(t *testing.T) {
		res := ValidateResponse([]byte(`{"data":{"response":"ok"}}`))
		if res.Valid || res.Code != FailNoSuccessField {
			t.Errorf("без success: ожидался %s, получено %+v", FailNoSuccessField, res)
		}

		res = ValidateResponse([]byte(`{"success":"да"}`))
		if res.Valid || res.Code != FailNoSuccessField {
			t.Errorf("небулев success: ожидался %s, получено %+v", FailNoSuccessField, res)
		}
	})

	t.Run("success=false тоже валиден", func(t *testing.T) {
		res := ValidateResponse([]byte(`{"success":false,"error":{"message":"занято"}}`))
		if !res.Valid {
			t.Fatalf("отказ: %s", res.Code)
		}
		if res.Response.Success {
			t.Error("Success должен быть false")
		}
	})
}

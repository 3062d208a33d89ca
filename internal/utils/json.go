// Package utils содержит вспомогательные функции для восстановления JSON
// из сырого вывода генеративной модели (кодовые блоки, обрезанные ответы).
package utils

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

var (
	jsonBlockRegex = regexp.MustCompile("(?s)```json\\s*([\\s\\S]*?)\\s*```")
	anyBlockRegex  = regexp.MustCompile("(?s)```\\s*([\\s\\S]*?)\\s*```")
)

// DecodeStrict декодирует JSON-данные в out, запрещая неизвестные поля.
func DecodeStrict(data []byte, out interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func isValidJSON(s string) bool {
	var js json.RawMessage
	return json.Unmarshal([]byte(s), &js) == nil
}

// balanceBrackets добавляет недостающие закрывающие скобки в конец строки.
// Скобки внутри строковых литералов не учитываются.
func balanceBrackets(text string) string {
	curly, square := 0, 0
	inString, escape := false, false
	for _, r := range text {
		if escape {
			escape = false
			continue
		}
		switch r {
		case '\\':
			escape = true
		case '"':
			inString = !inString
		case '{':
			if !inString {
				curly++
			}
		case '}':
			if !inString {
				curly--
			}
		case '[':
			if !inString {
				square++
			}
		case ']':
			if !inString {
				square--
			}
		}
	}
	balanced := text
	for square > 0 {
		balanced += "]"
		square--
	}
	for curly > 0 {
		balanced += "}"
		curly--
	}
	return balanced
}

func processPotentialJSON(content string) string {
	trimmed := strings.TrimSpace(content)
	if isValidJSON(trimmed) {
		return trimmed
	}
	if balanced := balanceBrackets(trimmed); isValidJSON(balanced) {
		return balanced
	}
	return ""
}

// ExtractJSONContent извлекает JSON-объект/массив из сырого текста модели.
// Порядок попыток: блок ```json, любой кодовый блок, срез между первой и
// последней скобкой. Возвращает пустую строку, если JSON не найден.
func ExtractJSONContent(rawText string) string {
	rawText = strings.TrimSpace(rawText)

	if matches := jsonBlockRegex.FindStringSubmatch(rawText); len(matches) > 1 {
		if result := processPotentialJSON(matches[1]); result != "" {
			return result
		}
	}
	if matches := anyBlockRegex.FindStringSubmatch(rawText); len(matches) > 1 {
		if result := processPotentialJSON(matches[1]); result != "" {
			return result
		}
	}

	firstBrace := strings.Index(rawText, "{")
	firstBracket := strings.Index(rawText, "[")
	startIdx, endIdx := -1, -1
	if firstBrace != -1 && (firstBracket == -1 || firstBrace < firstBracket) {
		startIdx, endIdx = firstBrace, strings.LastIndex(rawText, "}")
	} else if firstBracket != -1 {
		startIdx, endIdx = firstBracket, strings.LastIndex(rawText, "]")
	}
	if startIdx != -1 {
		candidate := rawText[startIdx:]
		if endIdx > startIdx {
			candidate = rawText[startIdx : endIdx+1]
		}
		if result := processPotentialJSON(candidate); result != "" {
			return result
		}
		// Последняя попытка: обрезанный ответ с добалансировкой скобок.
		if result := processPotentialJSON(rawText[startIdx:]); result != "" {
			return result
		}
	}

	return ""
}

// StringShort обрезает строку до maxLen, добавляя многоточие при обрезке.
func StringShort(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return s[:maxLen-3] + "..."
}

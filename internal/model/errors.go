package model

import "errors"

// Общие ошибки уровня данных.
var (
	// ErrNotFound возвращается репозиториями при отсутствии записи.
	ErrNotFound = errors.New("запись не найдена")
)

// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound — ресурс не найден или удалён.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrTooLarge — файл превышает допустимый размер.
	ErrTooLarge = errors.New("файл слишком большой")
	// ErrLoginRequired — операция требует входа.
	ErrLoginRequired = errors.New("требуется вход")
	// ErrForbidden — недостаточно прав.
	ErrForbidden = errors.New("недостаточно прав")
	// ErrConflict — конфликт записи.
	ErrConflict = errors.New("конфликт — запись уже существует")
)

// Error — типизированная ошибка операции.
// Kind — одна из sentinel-ошибок пакета, Message — текст для клиента.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, e.Message)
}

// Unwrap позволяет сопоставлять ошибку через errors.Is(err, ErrNotFound).
func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func notFound(message string) *Error      { return newError(ErrNotFound, message) }
func validation(message string) *Error    { return newError(ErrValidation, message) }
func forbidden(message string) *Error     { return newError(ErrForbidden, message) }
func loginRequired(message string) *Error { return newError(ErrLoginRequired, message) }

// ClientMessage возвращает текст ошибки для клиента.
// Для ошибок вне таксономии возвращается текст исходной ошибки.
func ClientMessage(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Message
	}
	return err.Error()
}

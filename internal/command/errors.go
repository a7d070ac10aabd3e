package command

import (
	"errors"
	"fmt"

	"github.com/shaiso/Grantflow/internal/clients"
)

// Стабильные коды ошибок команд.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeCommandNotFound    = "COMMAND_NOT_FOUND"
	CodeUnknown            = "UNKNOWN_ERROR"
	CodeConfiguration      = "CONFIGURATION_ERROR"
	CodeBackendUnavailable = "BACKEND_UNAVAILABLE"
	CodeBackend            = "BACKEND_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodePoolRejected       = "POOL_REJECTED"
)

// Ошибки пакета.
var (
	// ErrInvalidRequest — запрос не прошёл валидацию.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrCommandNotFound — команда не зарегистрирована.
	ErrCommandNotFound = errors.New("command not found")

	// ErrPoolClosed — pool остановлен и не принимает задачи.
	ErrPoolClosed = errors.New("executor pool closed")
)

// Error — типизированная ошибка команды.
// Executor повторяет вызов только для Retryable ошибок этого типа.
type Error struct {
	Code      string
	Message   string
	Retryable bool
	Err       error
}

// Error реализует интерфейс error.
func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap возвращает базовую ошибку.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError создаёт *Error.
func NewError(code, message string, retryable bool, err error) *Error {
	return &Error{Code: code, Message: message, Retryable: retryable, Err: err}
}

// ValidationError оборачивает ошибку валидации запроса.
func ValidationError(err error) *Error {
	return &Error{
		Code:    CodeValidation,
		Message: err.Error(),
		Err:     fmt.Errorf("%w: %w", ErrInvalidRequest, err),
	}
}

// FromBackend переводит ошибку клиента backend'а в *Error:
//   - ConfigurationError → CONFIGURATION_ERROR
//   - недоступность → BACKEND_UNAVAILABLE (retryable)
//   - 404 → NOT_FOUND
//   - 5xx/429 → BACKEND_ERROR (retryable)
//   - прочие 4xx → BACKEND_ERROR
func FromBackend(err error) *Error {
	if err == nil {
		return nil
	}

	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}

	var cfgErr *clients.ConfigurationError
	if errors.As(err, &cfgErr) {
		return NewError(CodeConfiguration, cfgErr.Error(), false, err)
	}

	var be *clients.BackendError
	if errors.As(err, &be) {
		switch {
		case be.StatusCode == 0 && be.Temporary():
			return NewError(CodeBackendUnavailable, be.Error(), true, err)
		case be.NotFound():
			return NewError(CodeNotFound, be.Error(), false, err)
		default:
			return NewError(CodeBackend, be.Error(), be.Temporary(), err)
		}
	}

	return NewError(CodeUnknown, err.Error(), false, err)
}

// CodeOf возвращает код *Error или UNKNOWN_ERROR.
func CodeOf(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CodeUnknown
}

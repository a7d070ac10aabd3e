package membership

import (
	"errors"
	"fmt"
)

// Ошибки заявок.
var (
	// ErrInvalidRequest — запрос на заявку не прошёл валидацию.
	ErrInvalidRequest = errors.New("invalid membership request")

	// ErrAutomationPlatform — backend не смог запустить workflow.
	ErrAutomationPlatform = errors.New("automation platform error")
)

// AutomationPlatformError — сбой запуска workflow.
// Повторы уже выполнены Executor'ом, на этом уровне не повторяется.
type AutomationPlatformError struct {
	Operation string
	Code      string
	Message   string
	Err       error
}

// Error реализует интерфейс error.
func (e *AutomationPlatformError) Error() string {
	return fmt.Sprintf("%s failed [%s]: %s", e.Operation, e.Code, e.Message)
}

// Unwrap возвращает причину.
func (e *AutomationPlatformError) Unwrap() error {
	return e.Err
}

// Is сопоставляет ошибку с ErrAutomationPlatform.
func (e *AutomationPlatformError) Is(target error) bool {
	return target == ErrAutomationPlatform
}

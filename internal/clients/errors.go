package clients

import (
	"errors"
	"fmt"
	"strings"
)

// Ошибки конфигурации и транспорта.
var (
	// ErrUnknownInstance — инстанс с таким именем не сконфигурирован.
	ErrUnknownInstance = errors.New("unknown instance")

	// ErrNoInstances — в семействе нет ни одного инстанса.
	ErrNoInstances = errors.New("no instances configured")

	// ErrInstanceRequired — семейство требует явного имени инстанса.
	ErrInstanceRequired = errors.New("instance name is required")

	// ErrBackendUnavailable — backend недоступен (сеть, таймаут, TLS).
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrBackendStatus — backend ответил кодом ошибки.
	ErrBackendStatus = errors.New("backend returned error status")
)

// ConfigurationError — ошибка выбора или создания клиента инстанса.
// Всегда содержит список известных инстансов для диагностики.
type ConfigurationError struct {
	Family   string
	Instance string
	Known    []string
	Err      error
}

// Error реализует интерфейс error.
func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Family)
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	if e.Instance != "" {
		fmt.Fprintf(&b, " %q", e.Instance)
	}
	fmt.Fprintf(&b, " (known instances: [%s])", strings.Join(e.Known, ", "))
	return b.String()
}

// Unwrap возвращает базовую ошибку.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// BackendError — ошибка вызова backend'а.
// Сырые ошибки транспорта не выходят за пределы пакета, только в Err.
type BackendError struct {
	Instance   string
	Method     string
	Path       string
	StatusCode int
	Body       string
	Err        error
}

// Error реализует интерфейс error.
func (e *BackendError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s on %s: HTTP %d: %s", e.Method, e.Path, e.Instance, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s %s on %s: %v", e.Method, e.Path, e.Instance, e.Err)
}

// Unwrap возвращает базовую ошибку.
func (e *BackendError) Unwrap() error {
	return e.Err
}

// Temporary сообщает, имеет ли смысл повторить вызов.
// Недоступность и 5xx/429 — да, остальные 4xx — нет.
func (e *BackendError) Temporary() bool {
	if e.StatusCode == 0 {
		return errors.Is(e.Err, ErrBackendUnavailable)
	}
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// NotFound сообщает, что backend ответил 404.
func (e *BackendError) NotFound() bool {
	return e.StatusCode == 404
}

package command

import "time"

// Result — итог выполнения команды.
// Создаётся один раз Executor'ом и дальше не изменяется.
type Result struct {
	Success         bool           `json:"success"`
	Data            any            `json:"data,omitempty"`
	ErrorMessage    string         `json:"errorMessage,omitempty"`
	ErrorCode       string         `json:"errorCode,omitempty"`
	ServiceName     string         `json:"serviceName"`
	CommandName     string         `json:"commandName"`
	StartTime       time.Time      `json:"startTime"`
	EndTime         time.Time      `json:"endTime"`
	ExecutionTimeMs int64          `json:"executionTimeMs"`
	Metadata        map[string]any `json:"metadata,omitempty"`

	err error
}

// Err возвращает исходную ошибку неуспешного результата (не сериализуется).
func (r *Result) Err() error {
	return r.err
}

// DataAs возвращает Data, приведённые к T.
func DataAs[T any](r *Result) (T, bool) {
	if r == nil || !r.Success {
		var zero T
		return zero, false
	}
	v, ok := r.Data.(T)
	return v, ok
}

// failure собирает неуспешный Result без вызова команды.
func failure(service, name, code, message string, start, end time.Time, err error) *Result {
	return &Result{
		ErrorCode:       code,
		ErrorMessage:    message,
		ServiceName:     service,
		CommandName:     name,
		StartTime:       start,
		EndTime:         end,
		ExecutionTimeMs: end.Sub(start).Milliseconds(),
		Metadata:        map[string]any{},
		err:             err,
	}
}

package awx

import "strings"

// Phase — фаза workflow job с точки зрения согласования статуса.
type Phase int

const (
	// PhaseRunning — job ещё выполняется.
	PhaseRunning Phase = iota

	// PhaseSucceeded — job завершился успешно.
	PhaseSucceeded

	// PhaseFailed — job завершился ошибкой или отменён.
	PhaseFailed
)

// String возвращает имя фазы.
func (p Phase) String() string {
	switch p {
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return "running"
	}
}

// Статусы workflow job AWX.
const (
	StatusNew        = "new"
	StatusPending    = "pending"
	StatusWaiting    = "waiting"
	StatusRunning    = "running"
	StatusSuccessful = "successful"
	StatusFailed     = "failed"
	StatusError      = "error"
	StatusCanceled   = "canceled"
)

// Classify переводит статус AWX в Phase.
func Classify(status string) Phase {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case StatusSuccessful:
		return PhaseSucceeded
	case StatusFailed, StatusError, StatusCanceled:
		return PhaseFailed
	default:
		return PhaseRunning
	}
}

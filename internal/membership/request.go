package membership

import (
	"strings"
	"time"
)

// Claims request token.
const (
	ClaimRequestID   = "request_id"
	ClaimJobID       = "job_id"
	ClaimReference   = "reference"
	ClaimProject     = "project"
	ClaimUser        = "user"
	ClaimEnvironment = "environment"
	ClaimRole        = "role"
	ClaimInitiator   = "initiator"
)

// AddUserRequest — заявка на добавление пользователя в проект.
type AddUserRequest struct {
	ProjectKey  string `json:"projectKey" validate:"required"`
	User        string `json:"user" validate:"required"`
	Role        string `json:"role" validate:"required"`
	Environment string `json:"environment"`
	Comment     string `json:"comment,omitempty" validate:"max=2000"`
	Initiator   string `json:"initiator,omitempty"`
}

// Status — внешний статус заявки.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

// StatusView — ответ на опрос статуса.
// Вычисляется заново при каждом опросе и нигде не хранится.
type StatusView struct {
	RequestID    string `json:"requestId"`
	Project      string `json:"project"`
	User         string `json:"user"`
	Environment  string `json:"environment"`
	Status       Status `json:"status"`
	Completed    bool   `json:"completed"`
	Successful   bool   `json:"successful"`
	Message      string `json:"message"`
	ErrorDetails string `json:"errorDetails,omitempty"`
}

func (v *StatusView) inProgress(message string) {
	v.Status = StatusInProgress
	v.Completed = false
	v.Successful = false
	v.Message = message
}

func (v *StatusView) complete(successful bool, message, details string) {
	v.Status = StatusCompleted
	v.Completed = true
	v.Successful = successful
	v.Message = message
	v.ErrorDetails = details
}

// Initiation — результат запуска заявки.
type Initiation struct {
	RequestID string      `json:"requestId"`
	JobID     string      `json:"jobId"`
	Reference string      `json:"reference"`
	ExpiresAt time.Time   `json:"expiresAt"`
	Status    *StatusView `json:"status"`
}

// referenceEscaper экранирует разделитель внутри компонентов reference.
var referenceEscaper = strings.NewReplacer("%", "%25", "-", "%2D")

// CorrelationReference связывает AWX job с элементом очереди UiPath.
// Одна и та же (project, user, role) всегда даёт одну и ту же строку,
// разные тройки не совпадают: "-" и "%" внутри компонентов экранируются.
func CorrelationReference(projectKey, user, role string) string {
	return referenceComponent(projectKey) + "-" + referenceComponent(user) + "-" + referenceComponent(role)
}

func referenceComponent(s string) string {
	return referenceEscaper.Replace(strings.TrimSpace(s))
}

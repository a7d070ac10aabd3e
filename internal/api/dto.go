package api

import (
	"encoding/json"
	"time"

	"github.com/shaiso/Grantflow/internal/command"
)

// Membership DTOs

// VerifyMembershipRequest — проверка принадлежности token.
type VerifyMembershipRequest struct {
	Project string `json:"project"`
	User    string `json:"user"`
}

// VerifyMembershipResponse — результат проверки.
type VerifyMembershipResponse struct {
	Valid bool `json:"valid"`
}

// Command DTOs

// ExecuteCommandRequest — тело вызова команды.
type ExecuteCommandRequest struct {
	Request json.RawMessage `json:"request"`
	Context *CommandContext `json:"context,omitempty"`
}

// CommandContext — параметры вызова в JSON.
type CommandContext struct {
	Instance      string         `json:"instance,omitempty"`
	TimeoutMs     int64          `json:"timeoutMs,omitempty"`
	RetryAttempts *int           `json:"retryAttempts,omitempty"`
	Async         bool           `json:"async,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// ToCommand конвертирует CommandContext в command.Context.
// Незаданные поля остаются нулевыми и заполняются dispatcher'ом.
func (c *CommandContext) ToCommand() *command.Context {
	if c == nil {
		return nil
	}
	cc := &command.Context{
		Instance: c.Instance,
		Timeout:  time.Duration(c.TimeoutMs) * time.Millisecond,
		Async:    c.Async,
		Metadata: c.Metadata,
	}
	if c.RetryAttempts != nil {
		cc.RetryAttempts = *c.RetryAttempts
	} else {
		cc.RetryAttempts = command.DefaultRetryAttempts
	}
	return cc
}

// AsyncAccepted — ответ на асинхронный вызов.
type AsyncAccepted struct {
	ServiceName string `json:"serviceName"`
	CommandName string `json:"commandName"`
	Async       bool   `json:"async"`
}

// CommandResponse — описание зарегистрированной команды.
type CommandResponse struct {
	Service string `json:"service"`
	Command string `json:"command"`
}

// Instance DTOs

// FamilyResponse — инстансы одного семейства.
type FamilyResponse struct {
	Family          string   `json:"family"`
	DefaultInstance string   `json:"defaultInstance,omitempty"`
	Instances       []string `json:"instances"`
}

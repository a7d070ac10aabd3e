package api

import (
	"context"
	"log/slog"

	"github.com/shaiso/Grantflow/internal/command"
	"github.com/shaiso/Grantflow/internal/membership"
	"github.com/shaiso/Grantflow/internal/telemetry"
)

// Memberships — операции над заявками.
type Memberships interface {
	Initiate(ctx context.Context, req *membership.AddUserRequest) (*membership.Initiation, error)
	Status(ctx context.Context, requestID string) (*membership.StatusView, error)
	ValidateRequestToken(requestID, project, user string) bool
}

// Commands — вызов зарегистрированных команд.
type Commands interface {
	ExecuteCommand(ctx context.Context, service, name string, req any, cc *command.Context) *command.Result
	ExecuteCommandAsync(ctx context.Context, service, name string, req any, cc *command.Context) (*command.Future, error)
	Registry() *command.Registry
}

// InstanceFamily — фабрика клиентов одного семейства backend'ов.
type InstanceFamily interface {
	Family() string
	AvailableInstances() []string
	ResolveInstanceName(explicit string) (string, error)
	ClearCache()
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	memberships Memberships
	commands    Commands
	families    map[string]InstanceFamily
	order       []string
	logger      *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Memberships Memberships
	Commands    Commands
	Families    []InstanceFamily
	Logger      *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	h := &Handler{
		memberships: cfg.Memberships,
		commands:    cfg.Commands,
		families:    make(map[string]InstanceFamily, len(cfg.Families)),
		logger:      telemetry.OrDefault(cfg.Logger),
	}
	for _, f := range cfg.Families {
		if _, dup := h.families[f.Family()]; !dup {
			h.order = append(h.order, f.Family())
		}
		h.families[f.Family()] = f
	}
	return h
}

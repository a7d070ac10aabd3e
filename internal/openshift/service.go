// Package openshift — контейнерная платформа.
//
// В отличие от остальных семейств, имя инстанса обязательно:
// пустое имя — ошибка конфигурации, default_instance не применяется.
package openshift

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/shaiso/Grantflow/internal/clients"
	"github.com/shaiso/Grantflow/internal/command"
	"github.com/shaiso/Grantflow/internal/config"
	"github.com/shaiso/Grantflow/internal/telemetry"
)

const (
	ServiceName         = "openshift"
	CommandGetNamespace = "get_namespace"
)

// NamespaceRequest — запрос namespace по имени.
type NamespaceRequest struct {
	Name string `json:"name" validate:"required,hostname_rfc1123"`
}

// Namespace — namespace кластера.
type Namespace struct {
	Name    string            `json:"name"`
	UID     string            `json:"uid"`
	Phase   string            `json:"phase"`
	Labels  map[string]string `json:"labels,omitempty"`
	Created *time.Time        `json:"created,omitempty"`
}

type namespaceResponse struct {
	Metadata struct {
		Name              string            `json:"name"`
		UID               string            `json:"uid"`
		Labels            map[string]string `json:"labels"`
		CreationTimestamp *time.Time        `json:"creationTimestamp"`
	} `json:"metadata"`
	Status struct {
		Phase string `json:"phase"`
	} `json:"status"`
}

// Service — сервис команд OpenShift.
type Service struct {
	clients *clients.Factory[*clients.Client]
	logger  *slog.Logger
}

func NewFactory(cfg *config.Family, logger *slog.Logger) *clients.Factory[*clients.Client] {
	return clients.NewFactory(config.FamilyOpenShift, cfg, clients.PolicyExplicit, clients.HTTPBuilder(nil), logger)
}

func NewService(factory *clients.Factory[*clients.Client], logger *slog.Logger) *Service {
	return &Service{
		clients: factory,
		logger:  telemetry.OrDefault(logger).With("service", ServiceName),
	}
}

func (s *Service) Name() string                               { return ServiceName }
func (s *Service) Clients() *clients.Factory[*clients.Client] { return s.clients }

func (s *Service) Commands() []command.Command {
	return []command.Command{
		command.New(ServiceName, CommandGetNamespace, s.GetNamespace, nil),
	}
}

// GetNamespace возвращает namespace.
func (s *Service) GetNamespace(ctx context.Context, req *NamespaceRequest, cc *command.Context) (*Namespace, error) {
	client, err := s.clients.Client(cc.Instance)
	if err != nil {
		return nil, command.FromBackend(err)
	}

	var resp namespaceResponse
	if err := client.GetJSON(ctx, "/api/v1/namespaces/"+url.PathEscape(req.Name), nil, &resp); err != nil {
		return nil, command.FromBackend(err)
	}

	s.logger.Debug("namespace fetched", "instance", client.Instance(), "namespace", resp.Metadata.Name)
	return &Namespace{
		Name:    resp.Metadata.Name,
		UID:     resp.Metadata.UID,
		Phase:   resp.Status.Phase,
		Labels:  resp.Metadata.Labels,
		Created: resp.Metadata.CreationTimestamp,
	}, nil
}

// Package jira — трекер задач. Пустое имя инстанса разрешается через default_instance.
package jira

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/shaiso/Grantflow/internal/clients"
	"github.com/shaiso/Grantflow/internal/command"
	"github.com/shaiso/Grantflow/internal/config"
	"github.com/shaiso/Grantflow/internal/telemetry"
)

const (
	ServiceName       = "jira"
	CommandGetProject = "get_project"
)

// ProjectRequest — запрос проекта по ключу.
type ProjectRequest struct {
	Key string `json:"key" validate:"required,alphanum"`
}

// Project — проект Jira.
type Project struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
	Lead string `json:"lead,omitempty"`
}

type projectResponse struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
	Lead struct {
		DisplayName string `json:"displayName"`
	} `json:"lead"`
}

// Service — сервис команд Jira.
type Service struct {
	clients *clients.Factory[*clients.Client]
	logger  *slog.Logger
}

func NewFactory(cfg *config.Family, logger *slog.Logger) *clients.Factory[*clients.Client] {
	return clients.NewFactory(config.FamilyJira, cfg, clients.PolicyDeclaredDefault, clients.HTTPBuilder(nil), logger)
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
		command.New(ServiceName, CommandGetProject, s.GetProject, nil),
	}
}

// GetProject возвращает проект по ключу.
func (s *Service) GetProject(ctx context.Context, req *ProjectRequest, cc *command.Context) (*Project, error) {
	client, err := s.clients.Client(cc.Instance)
	if err != nil {
		return nil, command.FromBackend(err)
	}

	var resp projectResponse
	if err := client.GetJSON(ctx, "/rest/api/2/project/"+url.PathEscape(req.Key), nil, &resp); err != nil {
		return nil, command.FromBackend(err)
	}

	s.logger.Debug("project fetched", "instance", client.Instance(), "key", resp.Key)
	return &Project{ID: resp.ID, Key: resp.Key, Name: resp.Name, Lead: resp.Lead.DisplayName}, nil
}

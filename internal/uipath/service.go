// Package uipath — backend B: очередь RPA (UiPath Orchestrator).
//
// Команда get_queue_item_status ищет последний элемент очереди по reference
// и классифицирует его (см. Outcome). Пустой reference не вызывает backend.
package uipath

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/shaiso/Grantflow/internal/clients"
	"github.com/shaiso/Grantflow/internal/command"
	"github.com/shaiso/Grantflow/internal/config"
	"github.com/shaiso/Grantflow/internal/telemetry"
)

// Имена сервиса и команд.
const (
	ServiceName               = "uipath"
	CommandGetQueueItemStatus = "get_queue_item_status"

	folderHeader = "X-UIPATH-OrganizationUnitId"
)

// QueueItemRequest — запрос статуса элемента очереди.
type QueueItemRequest struct {
	Reference string `json:"reference"`
	QueueName string `json:"queueName" validate:"required"`
}

// QueueItemStatus — классифицированный элемент очереди.
type QueueItemStatus struct {
	Reference string     `json:"reference"`
	Outcome   Outcome    `json:"outcome"`
	Status    string     `json:"status,omitempty"`
	ItemID    int64      `json:"itemId,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	Details   string     `json:"details,omitempty"`
	Created   *time.Time `json:"created,omitempty"`
}

// Message возвращает человекочитаемое описание исхода.
func (s *QueueItemStatus) Message() string {
	switch s.Outcome {
	case OutcomeNoReference:
		return "no queue item expected"
	case OutcomeNotFound:
		return fmt.Sprintf("queue item %q not found", s.Reference)
	case OutcomeInProgress:
		return fmt.Sprintf("queue item %q is %s", s.Reference, s.Status)
	case OutcomeSuccess:
		return fmt.Sprintf("queue item %q processed", s.Reference)
	case OutcomeFailure:
		if s.Reason != "" {
			return fmt.Sprintf("queue item %q %s: %s", s.Reference, strings.ToLower(s.Status), s.Reason)
		}
		return fmt.Sprintf("queue item %q %s", s.Reference, strings.ToLower(s.Status))
	default:
		return fmt.Sprintf("queue item %q has unrecognised status %q", s.Reference, s.Status)
	}
}

type queueItemsResponse struct {
	Value []queueItem `json:"value"`
}

type queueItem struct {
	ID                  int64      `json:"Id"`
	Status              string     `json:"Status"`
	Reference           string     `json:"Reference"`
	CreationTime        *time.Time `json:"CreationTime"`
	ProcessingException *struct {
		Reason  string `json:"Reason"`
		Details string `json:"Details"`
	} `json:"ProcessingException"`
}

// Service — сервис команд UiPath.
type Service struct {
	clients *clients.Factory[*clients.Client]
	logger  *slog.Logger
}

// NewFactory создаёт фабрику клиентов UiPath.
// Для инстанса с folder_id добавляется заголовок папки Orchestrator.
func NewFactory(cfg *config.Family, logger *slog.Logger) *clients.Factory[*clients.Client] {
	build := clients.HTTPBuilder(func(inst config.Instance) []clients.Option {
		if inst.FolderID == "" {
			return nil
		}
		return []clients.Option{clients.WithHeader(folderHeader, inst.FolderID)}
	})
	return clients.NewFactory(config.FamilyUiPath, cfg, clients.PolicyDeclaredDefault, build, logger)
}

// NewService создаёт Service.
func NewService(factory *clients.Factory[*clients.Client], logger *slog.Logger) *Service {
	return &Service{
		clients: factory,
		logger:  telemetry.OrDefault(logger).With("service", ServiceName),
	}
}

func (s *Service) Name() string                               { return ServiceName }
func (s *Service) Clients() *clients.Factory[*clients.Client] { return s.clients }

// Commands возвращает команды сервиса.
func (s *Service) Commands() []command.Command {
	return []command.Command{
		command.New(ServiceName, CommandGetQueueItemStatus, s.GetQueueItemStatus, nil),
	}
}

// GetQueueItemStatus находит последний элемент очереди с reference.
func (s *Service) GetQueueItemStatus(ctx context.Context, req *QueueItemRequest, cc *command.Context) (*QueueItemStatus, error) {
	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		return &QueueItemStatus{Outcome: OutcomeNoReference}, nil
	}

	client, err := s.clients.Client(cc.Instance)
	if err != nil {
		return nil, command.FromBackend(err)
	}

	query := url.Values{
		"$filter":  {fmt.Sprintf("Reference eq '%s' and QueueDefinition/Name eq '%s'", quote(reference), quote(req.QueueName))},
		"$orderby": {"CreationTime desc"},
		"$top":     {"1"},
	}

	var resp queueItemsResponse
	if err := client.GetJSON(ctx, "/odata/QueueItems", query, &resp); err != nil {
		return nil, command.FromBackend(err)
	}

	status := &QueueItemStatus{Reference: reference}
	if len(resp.Value) == 0 {
		status.Outcome = OutcomeNotFound
	} else {
		item := resp.Value[0]
		status.Outcome = Classify(item.Status)
		status.Status = item.Status
		status.ItemID = item.ID
		status.Created = item.CreationTime
		if item.ProcessingException != nil {
			status.Reason = item.ProcessingException.Reason
			status.Details = item.ProcessingException.Details
		}
	}

	s.logger.Debug("queue item status",
		"instance", client.Instance(),
		"reference", reference,
		"outcome", status.Outcome,
	)
	return status, nil
}

// quote экранирует строковый литерал OData.
func quote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

package awx

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shaiso/Grantflow/internal/clients"
	"github.com/shaiso/Grantflow/internal/command"
	"github.com/shaiso/Grantflow/internal/config"
	"github.com/shaiso/Grantflow/internal/telemetry"
)

// Имена сервиса и команд.
const (
	ServiceName           = "awx"
	CommandLaunchWorkflow = "launch_workflow"
	CommandGetJobStatus   = "get_job_status"
)

// LaunchRequest — запрос на запуск workflow job template.
type LaunchRequest struct {
	TemplateID int            `json:"templateId" validate:"required,gt=0"`
	ExtraVars  map[string]any `json:"extraVars,omitempty"`
}

// LaunchResult — созданный workflow job.
type LaunchResult struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
	URL    string `json:"url,omitempty"`
}

// JobStatusRequest — запрос статуса workflow job.
type JobStatusRequest struct {
	JobID string `json:"jobId" validate:"required,numeric"`
}

// JobStatus — состояние workflow job.
type JobStatus struct {
	JobID       string     `json:"jobId"`
	Name        string     `json:"name,omitempty"`
	Status      string     `json:"status"`
	Phase       string     `json:"phase"`
	Failed      bool       `json:"failed"`
	Explanation string     `json:"jobExplanation,omitempty"`
	Started     *time.Time `json:"started,omitempty"`
	Finished    *time.Time `json:"finished,omitempty"`
	Elapsed     float64    `json:"elapsed"`
}

// Classify возвращает фазу job.
func (s *JobStatus) Classify() Phase {
	return Classify(s.Status)
}

// launchResponse — ответ POST .../launch/.
type launchResponse struct {
	ID          int64  `json:"id"`
	WorkflowJob int64  `json:"workflow_job"`
	Status      string `json:"status"`
	URL         string `json:"url"`
}

// workflowJob — ответ GET /api/v2/workflow_jobs/{id}/.
type workflowJob struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	Status         string     `json:"status"`
	Failed         bool       `json:"failed"`
	JobExplanation string     `json:"job_explanation"`
	Started        *time.Time `json:"started"`
	Finished       *time.Time `json:"finished"`
	Elapsed        float64    `json:"elapsed"`
}

// Service — сервис команд AWX.
type Service struct {
	clients *clients.Factory[*clients.Client]
	logger  *slog.Logger
}

// NewFactory создаёт фабрику клиентов AWX.
func NewFactory(cfg *config.Family, logger *slog.Logger) *clients.Factory[*clients.Client] {
	return clients.NewFactory(config.FamilyAWX, cfg, clients.PolicyDeclaredDefault, clients.HTTPBuilder(nil), logger)
}

// NewService создаёт Service.
func NewService(factory *clients.Factory[*clients.Client], logger *slog.Logger) *Service {
	return &Service{
		clients: factory,
		logger:  telemetry.OrDefault(logger).With("service", ServiceName),
	}
}

// Name возвращает имя сервиса.
func (s *Service) Name() string {
	return ServiceName
}

// Clients возвращает фабрику клиентов сервиса.
func (s *Service) Clients() *clients.Factory[*clients.Client] {
	return s.clients
}

// Commands возвращает команды сервиса.
func (s *Service) Commands() []command.Command {
	return []command.Command{
		command.New(ServiceName, CommandLaunchWorkflow, s.LaunchWorkflow, nil),
		command.New(ServiceName, CommandGetJobStatus, s.GetJobStatus, nil),
	}
}

// LaunchWorkflow запускает workflow job template.
func (s *Service) LaunchWorkflow(ctx context.Context, req *LaunchRequest, cc *command.Context) (*LaunchResult, error) {
	client, err := s.clients.Client(cc.Instance)
	if err != nil {
		return nil, command.FromBackend(err)
	}

	body := map[string]any{}
	if len(req.ExtraVars) > 0 {
		body["extra_vars"] = req.ExtraVars
	}

	var resp launchResponse
	path := fmt.Sprintf("/api/v2/workflow_job_templates/%d/launch/", req.TemplateID)
	if err := client.PostJSON(ctx, path, body, &resp); err != nil {
		return nil, command.FromBackend(err)
	}

	jobID := resp.WorkflowJob
	if jobID == 0 {
		jobID = resp.ID
	}
	if jobID == 0 {
		return nil, command.NewError(command.CodeBackend, "launch response carries no workflow job id", false, nil)
	}

	result := &LaunchResult{
		JobID:  strconv.FormatInt(jobID, 10),
		Status: resp.Status,
		URL:    resp.URL,
	}

	telemetry.WithJobID(telemetry.WithInstance(s.logger, client.Instance()), result.JobID).
		Info("workflow launched", "template_id", req.TemplateID)

	return result, nil
}

// GetJobStatus возвращает статус workflow job.
func (s *Service) GetJobStatus(ctx context.Context, req *JobStatusRequest, cc *command.Context) (*JobStatus, error) {
	client, err := s.clients.Client(cc.Instance)
	if err != nil {
		return nil, command.FromBackend(err)
	}

	var job workflowJob
	if err := client.GetJSON(ctx, "/api/v2/workflow_jobs/"+req.JobID+"/", nil, &job); err != nil {
		return nil, command.FromBackend(err)
	}

	status := &JobStatus{
		JobID:       req.JobID,
		Name:        job.Name,
		Status:      job.Status,
		Failed:      job.Failed,
		Explanation: job.JobExplanation,
		Started:     job.Started,
		Finished:    job.Finished,
		Elapsed:     job.Elapsed,
	}
	status.Phase = status.Classify().String()

	s.logger.Debug("workflow job status",
		"instance", client.Instance(),
		"job_id", req.JobID,
		"status", job.Status,
	)
	return status, nil
}

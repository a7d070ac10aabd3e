package membership

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/shaiso/Grantflow/internal/awx"
	"github.com/shaiso/Grantflow/internal/command"
	"github.com/shaiso/Grantflow/internal/mq"
	"github.com/shaiso/Grantflow/internal/telemetry"
	"github.com/shaiso/Grantflow/internal/token"
	"github.com/shaiso/Grantflow/internal/uipath"
)

// Default configuration values.
const (
	defaultTokenTTL  = 24 * time.Hour
	defaultQueueName = "ProjectMembership"

	messageCompleted = "Membership request completed"
)

// Runner выполняет команды по имени. Реализуется command.Dispatcher.
type Runner interface {
	ExecuteCommand(ctx context.Context, service, name string, req any, cc *command.Context) *command.Result
}

// EventPublisher публикует события жизненного цикла заявки.
// Реализуется mq.Publisher. Ошибки публикации только логируются.
type EventPublisher interface {
	PublishRequestInitiated(ctx context.Context, payload mq.RequestInitiatedPayload) error
	PublishRequestCompleted(ctx context.Context, payload mq.RequestCompletedPayload) error
}

// Config — конфигурация Service.
type Config struct {
	Runner Runner
	Tokens *token.Service

	// TokenTTL — срок жизни request token (default: 24h).
	TokenTTL time.Duration

	// AWXInstance, AWXTemplateID — куда запускать workflow.
	AWXInstance   string
	AWXTemplateID int

	// UiPathInstance, UiPathQueue — где искать элемент очереди (queue default: ProjectMembership).
	UiPathInstance string
	UiPathQueue    string

	// CommandContext — шаблон параметров вызова команд (retry, timeout).
	// Если nil — command.DefaultContext().
	CommandContext *command.Context

	// Publisher (опционально)
	Publisher EventPublisher

	Logger *slog.Logger
	Now    func() time.Time
}

// Service запускает заявки и согласует их статус.
type Service struct {
	runner    Runner
	tokens    *token.Service
	ttl       time.Duration
	awxInst   string
	template  int
	rpaInst   string
	queue     string
	cc        *command.Context
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
	validate  *validator.Validate
}

// NewService создаёт Service.
func NewService(cfg Config) *Service {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	queue := cfg.UiPathQueue
	if queue == "" {
		queue = defaultQueueName
	}

	cc := cfg.CommandContext
	if cc == nil {
		cc = command.DefaultContext()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		runner:    cfg.Runner,
		tokens:    cfg.Tokens,
		ttl:       ttl,
		awxInst:   cfg.AWXInstance,
		template:  cfg.AWXTemplateID,
		rpaInst:   cfg.UiPathInstance,
		queue:     queue,
		cc:        cc.Clone(),
		publisher: cfg.Publisher,
		logger:    telemetry.OrDefault(cfg.Logger),
		now:       now,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Initiate запускает AWX workflow и выпускает request token.
//
// При сбое backend'а возвращает *AutomationPlatformError, token не выпускается.
func (s *Service) Initiate(ctx context.Context, req *AddUserRequest) (*Initiation, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: empty request", ErrInvalidRequest)
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	requestID := uuid.NewString()
	reference := CorrelationReference(req.ProjectKey, req.User, req.Role)
	logger := telemetry.FromContextOr(ctx, s.logger).With(
		"request_id", requestID,
		"project", req.ProjectKey,
		"user", req.User,
	)

	launch := &awx.LaunchRequest{
		TemplateID: s.template,
		ExtraVars: map[string]any{
			"project_key": req.ProjectKey,
			"user":        req.User,
			"role":        req.Role,
			"environment": req.Environment,
			"comment":     req.Comment,
			"reference":   reference,
			"initiator":   req.Initiator,
		},
	}

	res := s.runner.ExecuteCommand(ctx, awx.ServiceName, awx.CommandLaunchWorkflow, launch, s.commandContext(s.awxInst))
	if !res.Success {
		logger.Error("workflow launch failed", "error_code", res.ErrorCode, "error", res.ErrorMessage)
		return nil, &AutomationPlatformError{
			Operation: awx.CommandLaunchWorkflow,
			Code:      res.ErrorCode,
			Message:   res.ErrorMessage,
			Err:       res.Err(),
		}
	}

	launched, ok := command.DataAs[*awx.LaunchResult](res)
	if !ok || launched.JobID == "" {
		return nil, &AutomationPlatformError{
			Operation: awx.CommandLaunchWorkflow,
			Code:      command.CodeBackend,
			Message:   fmt.Sprintf("unexpected launch result %T", res.Data),
		}
	}

	claims := map[string]any{
		ClaimRequestID:   requestID,
		ClaimJobID:       launched.JobID,
		ClaimReference:   reference,
		ClaimProject:     req.ProjectKey,
		ClaimUser:        req.User,
		ClaimEnvironment: req.Environment,
		ClaimRole:        req.Role,
		ClaimInitiator:   req.Initiator,
	}

	tok, err := s.tokens.Create(claims, s.ttl)
	if err != nil {
		logger.Error("token creation failed", "job_id", launched.JobID, "error", err)
		return nil, err
	}
	telemetry.TokensIssued.Inc()

	logger.Info("membership request initiated", "job_id", launched.JobID, "reference", reference)

	s.publishInitiated(ctx, logger, mq.RequestInitiatedPayload{
		RequestID:   requestID,
		JobID:       launched.JobID,
		Reference:   reference,
		Project:     req.ProjectKey,
		User:        req.User,
		Role:        req.Role,
		Environment: req.Environment,
		Initiator:   req.Initiator,
	})

	return &Initiation{
		RequestID: tok,
		JobID:     launched.JobID,
		Reference: reference,
		ExpiresAt: s.now().Add(s.ttl),
		Status: &StatusView{
			RequestID:   tok,
			Project:     req.ProjectKey,
			User:        req.User,
			Environment: req.Environment,
			Status:      StatusPending,
			Message:     "Membership request submitted (workflow job " + launched.JobID + ")",
		},
	}, nil
}

// Status согласует статус заявки по request token.
//
// Ошибку возвращает только для нечитаемого token (*token.Error).
// Сбои backend'ов дают COMPLETED/unsuccessful.
func (s *Service) Status(ctx context.Context, requestID string) (*StatusView, error) {
	claims, err := s.tokens.Decode(requestID)
	if err == nil {
		err = claims.Require(ClaimJobID, ClaimProject, ClaimUser)
	}
	if err != nil {
		telemetry.TokensRejected.WithLabelValues(string(token.KindOf(err))).Inc()
		s.logger.Warn("request token rejected", "kind", token.KindOf(err), "error", err)
		return nil, err
	}

	view := &StatusView{
		RequestID:   requestID,
		Project:     claims.String(ClaimProject),
		User:        claims.String(ClaimUser),
		Environment: claims.String(ClaimEnvironment),
	}

	logger := telemetry.WithJobID(telemetry.FromContextOr(ctx, s.logger), claims.String(ClaimJobID)).
		With("request_id", claims.String(ClaimRequestID))

	s.reconcile(ctx, logger, claims, view)

	telemetry.StatusPolls.WithLabelValues(string(view.Status), strconv.FormatBool(view.Successful)).Inc()
	logger.Info("membership status reconciled",
		"status", view.Status,
		"successful", view.Successful,
	)

	if view.Completed {
		s.publishCompleted(ctx, logger, mq.RequestCompletedPayload{
			RequestID:    claims.String(ClaimRequestID),
			JobID:        claims.String(ClaimJobID),
			Reference:    claims.String(ClaimReference),
			Project:      view.Project,
			User:         view.User,
			Successful:   view.Successful,
			Message:      view.Message,
			ErrorDetails: view.ErrorDetails,
		})
	}

	return view, nil
}

// reconcile опрашивает AWX, затем (только после успеха AWX) UiPath.
func (s *Service) reconcile(ctx context.Context, logger *slog.Logger, claims *token.Claims, view *StatusView) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("status reconciliation panicked", "panic", r)
			view.complete(false, "Failed to determine membership request status", fmt.Sprint(r))
		}
	}()

	jobID := claims.String(ClaimJobID)

	jobRes := s.runner.ExecuteCommand(ctx, awx.ServiceName, awx.CommandGetJobStatus,
		&awx.JobStatusRequest{JobID: jobID}, s.commandContext(s.awxInst))
	if !jobRes.Success {
		logger.Warn("workflow status query failed", "error_code", jobRes.ErrorCode, "error", jobRes.ErrorMessage)
		view.complete(false, "Failed to query workflow job "+jobID, jobRes.ErrorMessage)
		return
	}

	job, ok := command.DataAs[*awx.JobStatus](jobRes)
	if !ok {
		view.complete(false, "Failed to query workflow job "+jobID, fmt.Sprintf("unexpected result %T", jobRes.Data))
		return
	}

	switch job.Classify() {
	case awx.PhaseRunning:
		view.inProgress(fmt.Sprintf("Workflow job %s is %s", jobID, job.Status))
		return
	case awx.PhaseFailed:
		msg := fmt.Sprintf("Workflow job %s %s", jobID, job.Status)
		if job.Explanation != "" {
			msg += ": " + job.Explanation
		}
		view.complete(false, msg, job.Explanation)
		return
	}

	itemRes := s.runner.ExecuteCommand(ctx, uipath.ServiceName, uipath.CommandGetQueueItemStatus,
		&uipath.QueueItemRequest{Reference: claims.String(ClaimReference), QueueName: s.queue},
		s.commandContext(s.rpaInst))
	if !itemRes.Success {
		logger.Warn("queue item query failed", "error_code", itemRes.ErrorCode, "error", itemRes.ErrorMessage)
		view.complete(false, "Failed to query queue item", itemRes.ErrorMessage)
		return
	}

	item, ok := command.DataAs[*uipath.QueueItemStatus](itemRes)
	if !ok {
		view.complete(false, "Failed to query queue item", fmt.Sprintf("unexpected result %T", itemRes.Data))
		return
	}

	switch item.Outcome {
	case uipath.OutcomeNoReference, uipath.OutcomeSuccess:
		view.complete(true, messageCompleted, "")
	case uipath.OutcomeInProgress:
		view.inProgress("Workflow finished, " + item.Message())
	case uipath.OutcomeNotFound:
		view.complete(false, "Membership request failed: "+item.Message(), "")
	default:
		details := item.Details
		if details == "" {
			details = item.Reason
		}
		view.complete(false, "Membership request failed: "+item.Message(), details)
	}
}

// ValidateRequestToken проверяет, что token выпущен для project и user.
// Сравнение точное и регистрозависимое. Никогда не возвращает ошибку.
func (s *Service) ValidateRequestToken(requestID, project, user string) bool {
	claims, err := s.tokens.Decode(requestID)
	if err != nil {
		return false
	}
	if err := claims.Require(ClaimProject, ClaimUser); err != nil {
		return false
	}
	return claims.String(ClaimProject) == project && claims.String(ClaimUser) == user
}

// commandContext собирает Context вызова для инстанса.
func (s *Service) commandContext(instance string) *command.Context {
	cc := s.cc.Clone()
	cc.Instance = instance
	return cc
}

func (s *Service) publishInitiated(ctx context.Context, logger *slog.Logger, payload mq.RequestInitiatedPayload) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishRequestInitiated(ctx, payload); err != nil {
		// Не возвращаем ошибку — заявка уже запущена, token выпущен
		logger.Warn("failed to publish request.initiated", "error", err)
	}
}

func (s *Service) publishCompleted(ctx context.Context, logger *slog.Logger, payload mq.RequestCompletedPayload) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishRequestCompleted(ctx, payload); err != nil {
		logger.Warn("failed to publish request.completed", "error", err)
	}
}

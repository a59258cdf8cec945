package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stellarc/stellarc/internal/identity"
	"github.com/stellarc/stellarc/internal/llm"
	"github.com/stellarc/stellarc/internal/platform/httpx"
	"github.com/stellarc/stellarc/internal/rbac"
)

// Caller-facing messages.
const (
	MsgPromptRequired    = "Prompt is required"
	MsgInsufficientRoles = "Access denied: Insufficient permissions"
	MsgNotConfigured     = "AI service not configured"
)

// Options selects the authentication variant of the agent endpoint.
type Options struct {
	// RequireAuth rejects anonymous callers. When false, a request without
	// credentials runs unowned and skips the role check.
	RequireAuth  bool
	AllowedRoles []string
}

// Request is the agent invocation payload.
type Request struct {
	Prompt   string `json:"prompt"`
	TaskType string `json:"taskType"`
}

// Result is the normalized success response.
type Result struct {
	Result        string         `json:"result"`
	ExecutionTime int64          `json:"executionTime"`
	LogID         *uuid.UUID     `json:"logId"`
	Model         string         `json:"model"`
	ToolCalls     []llm.ToolCall `json:"toolCalls"`
}

// Service runs agent invocations and exposes their logs.
type Service struct {
	store    LogStore
	provider llm.Provider
	checker  rbac.Checker
	opts     Options
	tools    []llm.Tool
	system   string
	logger   *slog.Logger
	metrics  *Metrics
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(store LogStore, provider llm.Provider, checker rbac.Checker, opts Options, logger *slog.Logger, metrics *Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	opts.AllowedRoles = rbac.NormalizeRoles(opts.AllowedRoles)
	if len(opts.AllowedRoles) == 0 {
		opts.AllowedRoles = []string{rbac.RoleAdmin, rbac.RoleUser}
	}
	tools := llm.Tools()
	return &Service{
		store:    store,
		provider: provider,
		checker:  checker,
		opts:     opts,
		tools:    tools,
		system:   llm.SystemPrompt(tools),
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// RequiresAuth reports whether anonymous callers are rejected.
func (s *Service) RequiresAuth() bool {
	return s.opts.RequireAuth
}

// Authorize checks the caller against the permitted role set.
// A nil principal is an anonymous caller.
func (s *Service) Authorize(ctx context.Context, principal *identity.Principal) error {
	if principal == nil {
		if s.opts.RequireAuth {
			s.metrics.invocation(outcomeRejected)
			return httpx.NewError(httpx.ErrUnauthenticated, identity.MsgAuthRequired)
		}
		return nil
	}
	ok, err := s.checker.HasAnyRole(ctx, principal.ID, s.opts.AllowedRoles)
	if err != nil {
		return fmt.Errorf("%w: role lookup: %v", httpx.ErrStorage, err)
	}
	if !ok {
		s.metrics.invocation(outcomeRejected)
		return httpx.NewError(httpx.ErrForbidden, MsgInsufficientRoles)
	}
	return nil
}

// Run authorizes the caller and then executes the request.
func (s *Service) Run(ctx context.Context, principal *identity.Principal, req Request) (Result, error) {
	if err := s.Authorize(ctx, principal); err != nil {
		return Result{}, err
	}
	return s.Execute(ctx, principal, req)
}

// Execute performs one invocation for an already authorized caller: open a
// processing log record, call the provider once, then finalize the record.
// Log store failures are reported and otherwise ignored.
func (s *Service) Execute(ctx context.Context, principal *identity.Principal, req Request) (Result, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		s.metrics.invocation(outcomeRejected)
		return Result{}, httpx.NewError(httpx.ErrInvalidRequest, MsgPromptRequired)
	}
	taskType := strings.TrimSpace(req.TaskType)
	if taskType == "" {
		taskType = DefaultTaskType
	}
	if !s.provider.Configured() {
		s.logger.Error("completion provider api key not configured")
		s.metrics.invocation(outcomeNotConfig)
		return Result{}, httpx.NewError(httpx.ErrConfiguration, MsgNotConfigured)
	}

	// The caller cannot abort the call once issued.
	ctx = context.WithoutCancel(ctx)
	model := s.provider.Model()

	var owner *uuid.UUID
	if principal != nil {
		id := principal.ID
		owner = &id
	}
	logger := s.logger.With(slog.String("task_type", taskType), slog.Int("prompt_length", len(req.Prompt)))
	if owner != nil {
		logger = logger.With(slog.String("user_id", owner.String()))
	}

	var logID *uuid.UUID
	id, err := s.store.Create(ctx, NewLog{
		UserID:   owner,
		TaskType: taskType,
		Input:    Input{Prompt: req.Prompt, TaskType: taskType},
		Model:    model,
	})
	if err != nil {
		s.metrics.logWriteFailed("create")
		logger.Warn("create automation log", slog.Any("error", err))
	} else {
		logID = &id
		logger = logger.With(slog.String("log_id", id.String()))
	}

	logger.Info("processing agent request")
	start := s.now()
	completion, callErr := s.provider.Complete(ctx, llm.CompletionRequest{
		System: s.system,
		Prompt: req.Prompt,
		Tools:  s.tools,
	})
	elapsed := s.now().Sub(start)
	executionMS := elapsed.Milliseconds()
	if executionMS < 0 {
		executionMS = 0
	}

	if callErr != nil {
		message := callErr.Error()
		s.metrics.upstreamCall(outcomeUpstream, elapsed)
		s.metrics.invocation(outcomeUpstream)
		if logID != nil {
			if err := s.store.MarkError(ctx, *logID, message, executionMS); err != nil {
				s.metrics.logWriteFailed("mark_error")
				logger.Warn("finalize automation log", slog.Any("error", err))
			}
		}
		var upstream *llm.UpstreamError
		if errors.As(callErr, &upstream) {
			logger.Error("completion provider rejected request", slog.Int("status", upstream.StatusCode), slog.String("body", upstream.Body))
		} else {
			logger.Error("completion provider call failed", slog.Any("error", callErr))
		}
		return Result{}, httpx.NewError(httpx.ErrUpstream, message)
	}

	toolCalls := completion.ToolCalls
	if toolCalls == nil {
		toolCalls = []llm.ToolCall{}
	}
	s.metrics.upstreamCall(outcomeSuccess, elapsed)
	s.metrics.invocation(outcomeSuccess)
	if logID != nil {
		out := Output{Result: completion.Content, Model: model, ToolCalls: toolCalls}
		if err := s.store.MarkSuccess(ctx, *logID, out, executionMS); err != nil {
			s.metrics.logWriteFailed("mark_success")
			logger.Warn("finalize automation log", slog.Any("error", err))
		}
	}
	logger.Info("agent request completed",
		slog.Int64("execution_ms", executionMS),
		slog.Int("tool_calls", len(toolCalls)),
		slog.Int("total_tokens", completion.Usage.TotalTokens))

	return Result{
		Result:        completion.Content,
		ExecutionTime: executionMS,
		LogID:         logID,
		Model:         model,
		ToolCalls:     toolCalls,
	}, nil
}

// ListLogs returns records visible to principal: all for admins, otherwise own.
func (s *Service) ListLogs(ctx context.Context, principal identity.Principal, filter ListFilter) ([]LogRecord, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, httpx.NewError(httpx.ErrInvalidRequest, "Unknown status filter")
	}
	admin, err := s.checker.HasAnyRole(ctx, principal.ID, []string{rbac.RoleAdmin})
	if err != nil {
		return nil, fmt.Errorf("%w: role lookup: %v", httpx.ErrStorage, err)
	}
	if !admin {
		id := principal.ID
		filter.UserID = &id
	}
	logs, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: list automation logs: %v", httpx.ErrStorage, err)
	}
	if logs == nil {
		logs = []LogRecord{}
	}
	return logs, nil
}

// GetLog loads one record. Records owned by someone else are reported as
// missing unless principal is an admin.
func (s *Service) GetLog(ctx context.Context, principal identity.Principal, id uuid.UUID) (LogRecord, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return LogRecord{}, httpx.NewError(httpx.ErrNotFound, "Log not found")
		}
		return LogRecord{}, fmt.Errorf("%w: get automation log: %v", httpx.ErrStorage, err)
	}
	if rec.UserID != nil && *rec.UserID == principal.ID {
		return rec, nil
	}
	admin, err := s.checker.HasAnyRole(ctx, principal.ID, []string{rbac.RoleAdmin})
	if err != nil {
		return LogRecord{}, fmt.Errorf("%w: role lookup: %v", httpx.ErrStorage, err)
	}
	if !admin {
		return LogRecord{}, httpx.NewError(httpx.ErrNotFound, "Log not found")
	}
	return rec, nil
}

package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Phase names the workflow state, reported in debug logs.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseDisabled   Phase = "disabled"
	PhaseQuerying   Phase = "querying"
	PhaseFormatting Phase = "formatting"
	PhaseDone       Phase = "done"
)

// Messages returned to the agent by the tool-facing operations.
const (
	NothingFoundMessage = "(Nothing relevant was found in memory.)"
	remoteFailurePrefix = "Failed to reach memory service: "
)

// Workflow is the Manager implementation backed by a remote Client.
//
// It holds configuration and collaborators only, so one Workflow can serve
// concurrent turns for different agents.
type Workflow struct {
	client    Client
	config    *Config
	builder   *QueryBuilder
	injection *Formatter
	recall    *Formatter
	logger    logrus.FieldLogger
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithLogger sets the logging collaborator. Warnings about degraded
// automatic recall are written here.
func WithLogger(l logrus.FieldLogger) Option {
	return func(w *Workflow) {
		w.logger = l
	}
}

// NewWorkflow creates a Workflow over client.
func NewWorkflow(client Client, config *Config, opts ...Option) *Workflow {
	if config == nil {
		config = DefaultConfig()
	}
	w := &Workflow{
		client:    client,
		config:    config,
		builder:   NewQueryBuilder(config),
		injection: NewInjectionFormatter(config.InjectionBudget),
		recall:    NewRecallFormatter(config.InjectionBudget),
		logger:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.WithField("component", "memory")
	return w
}

// Config returns the configuration the workflow was built with.
func (w *Workflow) Config() *Config {
	return w.config
}

// AutoRecall implements Manager. It never fails: any error is logged as a
// warning and yields an empty injection.
func (w *Workflow) AutoRecall(ctx context.Context, turn Turn) string {
	log := w.logger.WithField("op", "auto_recall")

	if w.config.RecallTopK == 0 {
		log.WithField("phase", PhaseDisabled).Debug("automatic recall disabled")
		return ""
	}

	agent := w.config.agentOrDefault(turn.Agent)
	req := w.builder.Build(turn.History, agent, w.config.RecallTopK)
	req.UserID = turn.UserID
	if isBlank(req.Query) {
		log.WithField("phase", PhaseDone).Debug("no conversation to recall from")
		return ""
	}

	records, err := w.Recall(ctx, req)
	if err != nil {
		log.WithError(err).Warn("automatic recall failed, continuing without memories")
		return ""
	}

	log.WithField("phase", PhaseFormatting).Debugf("formatting %d memories", len(records))
	injected := w.injection.Format(records)
	if injected != "" {
		log.WithFields(logrus.Fields{
			"agent_id": agent.ID,
			"user_id":  turn.UserID,
			"count":    len(records),
		}).Info("injected relevant memories")
	}
	return injected
}

// ExplicitRecall implements Manager. Unlike AutoRecall it reports failures
// to the caller, since the caller asked for the action.
func (w *Workflow) ExplicitRecall(ctx context.Context, opts RecallOptions) string {
	topK := opts.TopK
	if topK <= 0 {
		topK = w.config.ExplicitTopK
	}
	agent := w.config.agentOrDefault(opts.Agent)

	records, err := w.Recall(ctx, RecallRequest{
		AgentID:   agent.ID,
		AgentName: agent.Name,
		UserID:    opts.UserID,
		Query:     opts.Query,
		TopK:      topK,
	})
	if err != nil {
		w.logger.WithField("op", "explicit_recall").WithError(err).Error("recall failed")
		return failureMessage("Cannot recall", err)
	}

	formatted := w.recall.Format(records)
	if formatted == "" {
		return NothingFoundMessage
	}
	return formatted
}

// RecordMemory implements Manager.
func (w *Workflow) RecordMemory(ctx context.Context, opts WriteOptions) string {
	agent := w.config.agentOrDefault(opts.Agent)

	id, err := w.Remember(ctx, WriteRequest{
		AgentID:   agent.ID,
		AgentName: agent.Name,
		UserID:    opts.UserID,
		UserName:  opts.UserName,
		Content:   opts.Content,
		Metadata:  opts.Metadata,
	})
	if err != nil {
		w.logger.WithField("op", "record_memory").WithError(err).Error("record failed")
		return failureMessage("Cannot record memory", err)
	}
	return fmt.Sprintf("%s will remember that (record %s).", agent.Name, id)
}

// Recall runs a search and keeps the TopK most relevant records.
// A TopK of zero returns no records without calling the service.
func (w *Workflow) Recall(ctx context.Context, req RecallRequest) ([]Record, error) {
	log := w.logger.WithField("op", "recall")
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.TopK == 0 {
		log.WithField("phase", PhaseDisabled).Debug("top_k is zero, skipping search")
		return nil, nil
	}

	log.WithField("phase", PhaseQuerying).Debugf("searching memories for query: %q", truncateLog(req.Query, 50))
	records, err := w.client.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}

	records = SortByRelevance(records)
	if len(records) > req.TopK {
		records = records[:req.TopK]
	}
	log.WithField("phase", PhaseDone).Debugf("retrieved %d memories", len(records))
	return records, nil
}

// Remember validates and stores a memory, returning the new record id.
func (w *Workflow) Remember(ctx context.Context, req WriteRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	id, err := w.client.Store(ctx, req)
	if err != nil {
		return "", fmt.Errorf("store memory: %w", err)
	}

	w.logger.WithFields(logrus.Fields{
		"op":       "record_memory",
		"agent_id": req.AgentID,
		"user_id":  req.UserID,
		"id":       id,
	}).Info("memory submitted")
	return id, nil
}

// failureMessage renders err as the one-line reply a tool returns.
func failureMessage(action string, err error) string {
	var validation *ValidationError
	if errors.As(err, &validation) {
		return fmt.Sprintf("%s: %s", action, validation.Error())
	}
	return remoteFailurePrefix + Reason(err)
}

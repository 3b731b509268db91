// Package service implements the agent turn: history assembly, the bounded
// tool-calling loop, confirmation resolution and the session/usage ledger.
package service

import (
	"log/slog"
	"sync"
	"time"

	"github.com/rooftopsai/rooftopsgpt-sub002/internal/adapter/llm"
	"github.com/rooftopsai/rooftopsgpt-sub002/internal/adapter/pipedream"
	"github.com/rooftopsai/rooftopsgpt-sub002/internal/config"
	"github.com/rooftopsai/rooftopsgpt-sub002/internal/observability"
	store "github.com/rooftopsai/rooftopsgpt-sub002/internal/repository"
	"github.com/rooftopsai/rooftopsgpt-sub002/internal/tools"
)

const (
	defaultModel         = "gpt-4o"
	defaultTemperature   = 0.7
	defaultMaxTokens     = 4096
	defaultMaxIterations = 5
	defaultHistoryLimit  = 50
)

type Service struct {
	store    store.Store
	llm      llm.LLMClient
	executor *tools.Executor
	source   *pipedream.Source
	gate     *tools.Gate
	config   *config.Config
	logger   *slog.Logger
	metrics  *observability.Metrics
	now      func() time.Time

	clockMu   sync.Mutex
	lastStamp time.Time
}

// New creates the agent service. source and metrics may be nil.
func New(st store.Store, llmClient llm.LLMClient, executor *tools.Executor, source *pipedream.Source, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = &config.Config{}
	}
	var dynamic tools.DynamicPolicy
	if source != nil {
		dynamic = source
	}
	return &Service{
		store:    st,
		llm:      llmClient,
		executor: executor,
		source:   source,
		gate:     tools.NewGate(executor.Catalog(), dynamic),
		config:   cfg,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

func (s *Service) maxIterations() int {
	if s.config.MaxIterations > 0 {
		return s.config.MaxIterations
	}
	return defaultMaxIterations
}

func (s *Service) historyLimit() int {
	if s.config.HistoryLimit > 0 {
		return s.config.HistoryLimit
	}
	return defaultHistoryLimit
}

func (s *Service) currentMonth() string {
	return s.now().UTC().Format("2006-01")
}

// stamp returns a strictly increasing UTC timestamp at microsecond
// precision so transcript order survives storage round trips.
func (s *Service) stamp() time.Time {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	ts := s.now().UTC().Truncate(time.Microsecond)
	if !ts.After(s.lastStamp) {
		ts = s.lastStamp.Add(time.Microsecond)
	}
	s.lastStamp = ts
	return ts
}

package model

import (
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Outcome is the typed result of processing one item during a run.
type Outcome string

const (
	// Harvest outcomes.
	OutcomeHarvested        Outcome = "harvested"
	OutcomeExtractionFailed Outcome = "extraction_failed"
	OutcomeSkippedExisting  Outcome = "skipped_existing"

	// Enrich outcomes.
	OutcomeAlreadyResolved  Outcome = "already_resolved"
	OutcomeResolved         Outcome = "resolved"
	OutcomeCacheHit         Outcome = "cache_hit"
	OutcomeNotFound         Outcome = "not_found"
	OutcomeTransientFailure Outcome = "transient_failure"
	OutcomeNoAddress        Outcome = "no_address"
)

// Summary aggregates per-item outcomes for a single stage or a whole run.
type Summary struct {
	RunID      string          `yaml:"run_id"`
	Stage      string          `yaml:"stage"`
	StartedAt  time.Time       `yaml:"started_at"`
	FinishedAt time.Time       `yaml:"finished_at"`
	Counts     map[Outcome]int `yaml:"counts"`
	// Stuck is set when pagination stopped because the reveal control stayed
	// obstructed past the retry limit rather than disappearing.
	Stuck bool `yaml:"stuck,omitempty"`
	// Rendered is the number of records handed to the renderer.
	Rendered int `yaml:"rendered,omitempty"`
}

// NewSummary starts a summary for the named stage.
func NewSummary(stage string) *Summary {
	return &Summary{
		RunID:     uuid.New().String(),
		Stage:     stage,
		StartedAt: time.Now().UTC(),
		Counts:    make(map[Outcome]int),
	}
}

// Add records one item with the given outcome.
func (s *Summary) Add(o Outcome) {
	if s.Counts == nil {
		s.Counts = make(map[Outcome]int)
	}
	s.Counts[o]++
}

// Count returns the number of items recorded with outcome o.
func (s *Summary) Count(o Outcome) int {
	return s.Counts[o]
}

// Total returns the number of items recorded.
func (s *Summary) Total() int {
	n := 0
	for _, c := range s.Counts {
		n += c
	}
	return n
}

// Finish stamps the finish time.
func (s *Summary) Finish() {
	s.FinishedAt = time.Now().UTC()
}

// Merge folds other into s. The run ID and start time of s are kept.
func (s *Summary) Merge(other *Summary) {
	if other == nil {
		return
	}
	for o, c := range other.Counts {
		if s.Counts == nil {
			s.Counts = make(map[Outcome]int)
		}
		s.Counts[o] += c
	}
	s.Stuck = s.Stuck || other.Stuck
	s.Rendered += other.Rendered
	if other.FinishedAt.After(s.FinishedAt) {
		s.FinishedAt = other.FinishedAt
	}
}

// Log writes the summary as a single structured log line.
func (s *Summary) Log(log *zap.Logger) {
	outcomes := make([]string, 0, len(s.Counts))
	for o := range s.Counts {
		outcomes = append(outcomes, string(o))
	}
	sort.Strings(outcomes)

	fields := []zap.Field{
		zap.String("run_id", s.RunID),
		zap.String("stage", s.Stage),
		zap.Int("total", s.Total()),
		zap.Duration("elapsed", s.FinishedAt.Sub(s.StartedAt)),
	}
	for _, o := range outcomes {
		fields = append(fields, zap.Int(o, s.Counts[Outcome(o)]))
	}
	if s.Rendered > 0 {
		fields = append(fields, zap.Int("rendered", s.Rendered))
	}
	if s.Stuck {
		log.Warn("run summary (pagination stuck)", fields...)
		return
	}
	log.Info("run summary", fields...)
}

// WriteYAML writes the summary report to path.
func (s *Summary) WriteYAML(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return eris.Wrap(err, "model: marshal summary")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "model: write summary %s", path)
	}
	return nil
}

package http

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fyrsmithlabs/specula/internal/workflow"
)

const collectTimeout = 2 * time.Second

// stateCollector exports the project state file as Prometheus gauges at
// scrape time.
type stateCollector struct {
	svc workflow.Service

	phase       *prometheus.Desc
	artifacts   *prometheus.Desc
	validations *prometheus.Desc
}

func newStateCollector(svc workflow.Service) *stateCollector {
	return &stateCollector{
		svc: svc,
		phase: prometheus.NewDesc("specula_project_phase",
			"Current methodology phase of the project; the value is always 1.",
			[]string{"project_id", "phase"}, nil),
		artifacts: prometheus.NewDesc("specula_project_artifacts",
			"Artifacts held in the project's artifact index.",
			[]string{"project_id"}, nil),
		validations: prometheus.NewDesc("specula_project_validations",
			"Validation records across all artifacts of the project.",
			[]string{"project_id"}, nil),
	}
}

func (c *stateCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.phase
	ch <- c.artifacts
	ch <- c.validations
}

func (c *stateCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
	defer cancel()

	ps, err := c.svc.State(ctx)
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.phase, err)
		return
	}

	var records int
	for _, recs := range ps.ValidationRecords {
		records += len(recs)
	}

	ch <- prometheus.MustNewConstMetric(c.phase, prometheus.GaugeValue, 1, ps.ProjectID, string(ps.CurrentPhase))
	ch <- prometheus.MustNewConstMetric(c.artifacts, prometheus.GaugeValue, float64(len(ps.ArtifactIndex)), ps.ProjectID)
	ch <- prometheus.MustNewConstMetric(c.validations, prometheus.GaugeValue, float64(records), ps.ProjectID)
}

package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/huangsam/codepulse/core/algo"
	"github.com/huangsam/codepulse/core/history"
	"github.com/huangsam/codepulse/core/parse"
	"github.com/huangsam/codepulse/internal/contract"
	"github.com/huangsam/codepulse/schema"
	"github.com/sirupsen/logrus"
)

// analyzer holds the collaborators shared by every file of one run.
type analyzer struct {
	cfg       *contract.Config
	registry  *parse.Registry
	churn     *history.ChurnCalculator   // nil when history is disabled
	ownership *history.OwnershipCalculator // nil when history is disabled
	scorer    *algo.HotspotScorer
}

// FileAnalysisBuilder computes the KPIs of one file in a fixed order:
// structure, then history, then the derived hotspot score.
type FileAnalysisBuilder struct {
	ctx  context.Context
	an   *analyzer
	file *schema.File
	err  error
}

// newFileAnalysisBuilder starts the analysis of a slash-separated repository path.
func newFileAnalysisBuilder(ctx context.Context, an *analyzer, relPath string) *FileAnalysisBuilder {
	var lang schema.Language
	if p, ok := an.registry.ResolvePath(relPath); ok {
		lang = p.Language()
	}
	return &FileAnalysisBuilder{ctx: ctx, an: an, file: schema.NewFile(relPath, lang)}
}

// Parse reads the file and attaches its structural KPIs and functions.
// Files without a parser are left without structural metrics.
func (b *FileAnalysisBuilder) Parse() *FileAnalysisBuilder {
	if b.err != nil {
		return b
	}
	parser, ok := b.an.registry.ResolvePath(b.file.Path)
	if !ok {
		return b
	}

	source, err := os.ReadFile(filepath.Join(b.an.cfg.RepoPath, filepath.FromSlash(b.file.Path)))
	if err != nil {
		b.degrade(fmt.Sprintf("read failed: %v", err), err)
		return b
	}

	res, err := parser.Analyze(b.ctx, source)
	if err != nil {
		if ctxErr := b.ctx.Err(); ctxErr != nil {
			b.err = ctxErr
			return b
		}
		var pe *schema.ParseError
		if errors.As(err, &pe) && pe.Path == "" {
			pe.Path = b.file.Path
		}
		b.degrade(err.Error(), err)
		return b
	}

	for _, fn := range res.Functions {
		b.file.Functions = append(b.file.Functions, schema.Function{
			Name:      fn.Name,
			StartLine: fn.StartLine,
			EndLine:   fn.EndLine,
			KPIs: schema.KPIMap{
				schema.MetricCyclomatic: schema.NewKPI(schema.MetricCyclomatic, float64(fn.Cyclomatic), schema.SourceStructure),
				schema.MetricCognitive:  schema.NewKPI(schema.MetricCognitive, float64(fn.Cognitive), schema.SourceStructure),
			},
		})
	}

	cyclomatic := schema.NewKPI(schema.MetricCyclomatic, float64(res.Cyclomatic), schema.SourceStructure)
	if res.Detail != nil {
		cyclomatic.Detail = res.Detail
	}
	b.set(
		cyclomatic,
		schema.NewKPI(schema.MetricCognitive, float64(res.Cognitive), schema.SourceStructure),
		schema.NewKPI(schema.MetricFunctions, float64(len(res.Functions)), schema.SourceStructure),
	)
	return b
}

// History attaches churn and ownership when the file has usable history.
func (b *FileAnalysisBuilder) History() *FileAnalysisBuilder {
	if b.err != nil || b.an.churn == nil {
		return b
	}

	churn, ok, err := b.an.churn.Compute(b.ctx, b.file.Path, b.an.cfg.WindowDays)
	if err != nil {
		b.err = err
		return b
	}
	if ok {
		b.set(churn.KPIs()...)
	} else {
		b.logger().WithField("status", churn.Status).Debug("churn unavailable")
	}

	owners, ok, err := b.an.ownership.Compute(b.ctx, b.file.Path)
	if err != nil {
		b.err = err
		return b
	}
	if ok {
		b.set(owners.KPIs()...)
	} else {
		b.logger().WithField("status", owners.Status).Debug("ownership unavailable")
	}
	return b
}

// Score attaches the hotspot KPI when both complexity and churn are present.
func (b *FileAnalysisBuilder) Score() *FileAnalysisBuilder {
	if b.err != nil {
		return b
	}
	snapshot := b.file.Snapshot()
	if hotspot, ok := b.an.scorer.Score(snapshot.Value(schema.MetricCyclomatic), snapshot.Value(schema.MetricChurn)); ok {
		b.set(hotspot.KPI())
	}
	return b
}

// Build returns the finished file. The error is only set for a canceled run
// or a corrupt history cache.
func (b *FileAnalysisBuilder) Build() (*schema.File, error) {
	return b.file, b.err
}

func (b *FileAnalysisBuilder) set(kpis ...schema.KPI) {
	for _, k := range kpis {
		if err := b.file.SetKPI(k); err != nil {
			b.logger().WithError(err).WithField("metric", k.Name).Warn("KPI rejected")
		}
	}
}

func (b *FileAnalysisBuilder) degrade(reason string, err error) {
	b.file.MarkDegraded(reason)
	level := logrus.WarnLevel
	if !errors.Is(err, schema.ErrParse) && !errors.Is(err, os.ErrNotExist) {
		level = logrus.ErrorLevel
	}
	b.logger().WithError(err).Log(level, "file degraded")
}

func (b *FileAnalysisBuilder) logger() *logrus.Entry {
	return contract.LogFields(logrus.Fields{"path": b.file.Path})
}

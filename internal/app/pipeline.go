package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/curvewatch/internal/adapters/mq/queue"
	"github.com/okian/curvewatch/internal/adapters/mq/worker"
	"github.com/okian/curvewatch/internal/domain/aggregate"
	"github.com/okian/curvewatch/internal/domain/assumption"
	"github.com/okian/curvewatch/internal/domain/dedupe"
	"github.com/okian/curvewatch/internal/domain/fill"
	"github.com/okian/curvewatch/internal/domain/model"
	"github.com/okian/curvewatch/internal/domain/profile"
	"github.com/okian/curvewatch/pkg/logger"
	"github.com/okian/curvewatch/pkg/metrics"
)

// Stage names used in metrics and errors.
const (
	stageLoad      = "load"
	stageDedupe    = "dedupe"
	stageAggregate = "aggregate"
	stageIndex     = "index"
	stageFill      = "fill"
	stageJoin      = "join"
	stageRatio     = "ratio"
	stageProfile   = "profile"
	stagePublish   = "publish"
	stageSink      = "sink"
)

// stage times fn and records its latency, or the failure.
func stage(ctx context.Context, log logger.Logger, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	metrics.RecordStageLatency(name, elapsed)
	if err != nil {
		metrics.RecordRunError(name)
		log.Error(ctx, "stage failed", logger.String("stage", name), logger.Error(err))
		return fmt.Errorf("%s: %w", name, err)
	}
	log.Debug(ctx, "stage done", logger.String("stage", name), logger.Duration("elapsed", elapsed))
	return nil
}

// pipeline runs every stage once. Each stage's output is handed to the next
// explicitly; nothing is shared between runs.
func (s *Service) pipeline(ctx context.Context, runID string) (*model.Run, error) { //nolint:funlen // linear list of stages
	log := s.logger.With(logger.String("run_id", runID))
	run := &model.Run{
		RunID:     runID,
		Tag:       s.cfg.Sink.RunTag,
		StartedAt: time.Now().UTC(),
		Variant:   s.variant,
	}
	log.Info(ctx, "run started",
		logger.Float64("pbad_scale", s.variant.PbadScale),
		logger.String("pvol_denominator", s.variant.PvolDenominator),
		logger.Bool("clamp_negative", s.variant.ClampNegative),
	)

	var (
		facts       []model.StatementFact
		assumptions []model.AssumptionRow
	)
	if err := stage(ctx, log, stageLoad, func() error {
		f, fst, err := s.loader.Facts(ctx)
		if err != nil {
			return fmt.Errorf("facts: %w", err)
		}
		a, ast, err := s.loader.Assumptions(ctx)
		if err != nil {
			return fmt.Errorf("assumptions: %w", err)
		}
		facts, assumptions = f, a
		run.Stats.FactsRead = fst.Read
		run.Stats.FactsInvalid = fst.Invalid
		run.Stats.AssumptionsRead = ast.Read
		metrics.RecordFactsRead(fst.Read)
		metrics.RecordFactsInvalid(fst.Invalid)
		if fst.Invalid > 0 || ast.Invalid > 0 {
			log.Warn(ctx, "skipped unparseable rows",
				logger.Int("facts", fst.Invalid),
				logger.Int("assumptions", ast.Invalid),
			)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := stage(ctx, log, stageDedupe, func() error {
		rep := dedupe.Scan(ctx, facts)
		run.Stats.DuplicateStatements = rep.Duplicates
		metrics.RecordDuplicates(rep.Duplicates)
		if rep.Duplicates > 0 {
			log.Warn(ctx, "duplicate account statements",
				logger.Int("count", rep.Duplicates),
				logger.String("examples", strings.Join(rep.Examples, ",")),
			)
		}
		return ctx.Err()
	}); err != nil {
		return nil, err
	}

	var agg *aggregate.Result
	if err := stage(ctx, log, stageAggregate, func() error {
		res, err := s.aggregator.Aggregate(ctx, facts)
		if err != nil {
			return err
		}
		agg = res
		run.Stats.FactsIncluded = res.Included
		run.Stats.FactsExcluded = res.Excluded
		run.Stats.FactsInvalid += res.Invalid
		run.Stats.Groups = len(res.Rows)
		metrics.RecordFactsIncluded(res.Included)
		metrics.RecordFactsExcluded(res.Excluded)
		metrics.RecordFactsInvalid(res.Invalid)
		if res.Invalid > 0 {
			log.Warn(ctx, "skipped facts with non-finite values", logger.Int("count", res.Invalid))
		}
		metrics.UpdateGroups(len(res.Rows))
		return nil
	}); err != nil {
		return nil, err
	}

	var idx *assumption.Index
	if err := stage(ctx, log, stageIndex, func() error {
		idx = assumption.NewIndex(assumptions)
		run.Stats.DuplicateAssumptions = idx.Duplicates()
		if idx.Duplicates() > 0 {
			log.Warn(ctx, "duplicate assumption keys; first row kept", logger.Int("count", idx.Duplicates()))
		}
		return nil
	}); err != nil {
		return nil, err
	}

	var filled []model.AggregateRow
	if err := stage(ctx, log, stageFill, func() error {
		filler := fill.New(
			fill.WithLedStatements(s.cfg.Fill.LedStatements),
			fill.WithForecastFactors(s.cfg.Fill.ConversionFactor, s.cfg.Fill.RollRateFactor, s.cfg.Fill.Annualization),
			fill.WithPbadScale(s.cfg.Ratio.PbadScale),
			fill.WithMaxStatement(s.cfg.MaxStatement),
			fill.WithAgeSource(idx),
		)
		parts := fill.Split(agg.Rows)
		rows, st, err := s.fillParallel(ctx, filler, parts)
		if err != nil {
			return err
		}
		aggregate.SortRows(rows)
		filled = rows
		run.Raw = rows
		run.Stats.Partitions = len(parts)
		run.Stats.CarriedFills = st.Carried
		run.Stats.ForecastFills = st.Forecast
		metrics.RecordCarriedFills(st.Carried)
		metrics.RecordForecastFills(st.Forecast)
		return nil
	}); err != nil {
		return nil, err
	}

	var joined []model.JoinedRow
	if err := stage(ctx, log, stageJoin, func() error {
		var js assumption.Stats
		joined, js = idx.Join(filled)
		run.Stats.Matched = js.Matched
		run.Stats.Unmatched = js.Unmatched
		metrics.RecordAssumptionJoin(js.Matched, js.Unmatched)
		if js.Unmatched > 0 {
			log.Warn(ctx, "rows without an assumption curve",
				logger.Int("unmatched", js.Unmatched),
				logger.Int("matched", js.Matched),
			)
		}
		return ctx.Err()
	}); err != nil {
		return nil, err
	}

	if err := stage(ctx, log, stageRatio, func() error {
		run.Rows = s.calc.ComputeAll(joined)
		run.Stats.OutputRows = len(run.Rows)
		return ctx.Err()
	}); err != nil {
		return nil, err
	}

	if err := stage(ctx, log, stageProfile, func() error {
		run.Profile = profile.Build(run.Rows)
		run.Validation = profile.Validate(run.Rows)
		return nil
	}); err != nil {
		return nil, err
	}

	run.FinishedAt = time.Now().UTC()

	if err := stage(ctx, log, stagePublish, func() error {
		return s.store.Publish(ctx, run)
	}); err != nil {
		return nil, err
	}

	if s.sink != nil {
		if err := stage(ctx, log, stageSink, func() error {
			return s.sink.WriteRun(ctx, run)
		}); err != nil {
			return nil, err
		}
	}

	elapsed := run.FinishedAt.Sub(run.StartedAt)
	metrics.UpdateOutputRows(len(run.Rows))
	metrics.RecordRunSuccess(elapsed, run.FinishedAt)
	log.Info(ctx, "run finished",
		logger.Int("facts", run.Stats.FactsRead),
		logger.Int("groups", run.Stats.Groups),
		logger.Int("rows", run.Stats.OutputRows),
		logger.Int("forecast_fills", run.Stats.ForecastFills),
		logger.Duration("elapsed", elapsed),
	)
	return run, nil
}

// fillParallel fans partitions out to the worker pool and puts the results
// back in partition order.
func (s *Service) fillParallel(ctx context.Context, f *fill.Filler, parts []fill.Partition) ([]model.AggregateRow, fill.Stats, error) {
	var st fill.Stats
	if len(parts) == 0 {
		return nil, st, nil
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	q := queue.NewInMemoryQueue(queue.WithCapacity(s.cfg.QueueSize))
	pool := worker.NewPool(min(s.cfg.WorkerCount, len(parts)), q, f)
	pool.Start(ctx)

	produced := make(chan error, 1)
	go func() {
		defer func() { _ = q.Close() }()
		for i, p := range parts {
			if err := q.Put(ctx, queue.Task{Seq: i, Partition: p}); err != nil {
				produced <- err
				return
			}
		}
		produced <- nil
	}()

	filled := make([][]model.AggregateRow, len(parts))
	got, total := 0, 0
	for res := range pool.Results() {
		filled[res.Seq] = res.Rows
		st.Add(res.Stats)
		got++
		total += len(res.Rows)
	}

	if got != len(parts) {
		if err := ctx.Err(); err != nil {
			return nil, st, err
		}
		return nil, st, fmt.Errorf("%w: %d of %d", ErrIncompleteFill, got, len(parts))
	}
	if err := <-produced; err != nil {
		return nil, st, err
	}

	out := make([]model.AggregateRow, 0, total)
	for _, rows := range filled {
		out = append(out, rows...)
	}
	return out, st, nil
}

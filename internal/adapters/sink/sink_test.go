package sink_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/curvewatch/internal/adapters/sink"
	"github.com/okian/curvewatch/internal/domain/model"
)

func sampleRun() *model.Run {
	key := model.DimensionalKey{
		Series: "S1", Segment: "Y1", RiskGroup: "5", UtilGroup: "3",
		Eligibility: "Eligible", RewardsType: "Rewards", APRType: "Low",
		CreditLimitBucket: "2000", ClipAmountGroup: "A",
	}
	return &model.Run{
		RunID:      "6f1c1f0e-5d43-4bb4-9f3c-5b1e3c3e9a10",
		StartedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		FinishedAt: time.Date(2026, 1, 2, 3, 4, 6, 0, time.UTC),
		Variant:    model.Variant{PbadScale: 12, PvolDenominator: "credit_limit", ClampNegative: true},
		Stats:      model.RunStats{FactsRead: 2, FactsIncluded: 2, OutputRows: 2, Unmatched: 1},
		Rows: []model.MetricRow{
			{Key: key, StatementAge: 11, Source: model.SourceActual, OpenStatements: 1, Utilization: 0.5,
				Assumption: &model.AssumptionRow{Utilization: model.Some(0.45)}},
			{Key: key, StatementAge: 12, Source: model.SourceCarried, OpenStatements: 1, Utilization: -0.1},
		},
		Raw: []model.AggregateRow{
			{Key: key, StatementAge: 11, Source: model.SourceActual, OpenStatements: model.Some(1)},
		},
	}
}

// runHeaderArgs lists the values WriteRun binds to the runs insert.
func runHeaderArgs(run *model.Run, tag *string) []interface{} {
	return []interface{}{
		uuid.MustParse(run.RunID), tag, run.StartedAt, run.FinishedAt,
		run.Variant.PbadScale, run.Variant.PvolDenominator,
		run.Stats.FactsRead, run.Stats.FactsIncluded, run.Stats.FactsExcluded, run.Stats.FactsInvalid,
		run.Stats.DuplicateStatements, run.Stats.Unmatched, run.Stats.OutputRows,
	}
}

func readCSV(path string) [][]string {
	f, err := os.Open(path)
	So(err, ShouldBeNil)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	So(err, ShouldBeNil)
	return records
}

func column(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

func TestFileSinks(t *testing.T) {
	Convey("Given a finished run", t, func() {
		ctx := context.Background()
		run := sampleRun()
		dir := t.TempDir()

		Convey("When writing the metric CSV", func() {
			path := filepath.Join(dir, "out", "metrics.csv")
			So(sink.NewCSVFile(path).WriteRun(ctx, run), ShouldBeNil)
			records := readCSV(path)

			Convey("Then unmatched assumption cells are empty and negatives clamped", func() {
				So(records, ShouldHaveLength, 3)
				header := records[0]
				u, ua := column(header, "utilization"), column(header, "utilization_assumption")
				So(records[1][u], ShouldEqual, "0.5")
				So(records[1][ua], ShouldEqual, "0.45")
				So(records[2][u], ShouldEqual, "0")
				So(records[2][ua], ShouldEqual, "")
				So(records[2][column(header, "source")], ShouldEqual, "carried")
			})

			Convey("Then the run rows are left untouched", func() {
				So(run.Rows[1].Utilization, ShouldEqual, -0.1)
			})
		})

		Convey("When writing the raw dump", func() {
			path := filepath.Join(dir, "raw.csv")
			So(sink.NewRawCSVFile(path).WriteRun(ctx, run), ShouldBeNil)
			records := readCSV(path)

			Convey("Then absent measures are empty cells", func() {
				So(records, ShouldHaveLength, 2)
				So(records[1][column(records[0], "open_statements")], ShouldEqual, "1")
				So(records[1][column(records[0], "pbad_numerator")], ShouldEqual, "")
			})
		})

		Convey("When writing the JSON report", func() {
			var buf bytes.Buffer
			So(sink.WriteReport(&buf, run), ShouldBeNil)

			var decoded model.Run
			So(json.Unmarshal(buf.Bytes(), &decoded), ShouldBeNil)

			Convey("Then metadata and presented rows round out the report", func() {
				So(decoded.RunID, ShouldEqual, run.RunID)
				So(decoded.Variant.PvolDenominator, ShouldEqual, "credit_limit")
				So(decoded.Rows, ShouldHaveLength, 2)
				So(decoded.Rows[1].Utilization, ShouldEqual, 0)
				So(decoded.Rows[1].Assumption, ShouldBeNil)
				So(decoded.Rows[0].Assumption.Utilization, ShouldResemble, model.Some(0.45))
			})
		})

		Convey("When writing to several sinks and one fails", func() {
			bad := sink.NewCSVFile(filepath.Join(dir, "missing-parent-is-a-file", "x.csv"))
			So(os.WriteFile(filepath.Join(dir, "missing-parent-is-a-file"), nil, 0o600), ShouldBeNil)
			good := sink.NewJSONFile(filepath.Join(dir, "report.json"))

			err := sink.Multi{bad, good}.WriteRun(ctx, run)

			Convey("Then the other sinks still run", func() {
				So(err, ShouldNotBeNil)
				_, statErr := os.Stat(filepath.Join(dir, "report.json"))
				So(statErr, ShouldBeNil)
			})
		})

		Convey("When the run is nil", func() {
			So(errors.Is(sink.NewJSONFile(filepath.Join(dir, "r.json")).WriteRun(ctx, nil), sink.ErrNoRun), ShouldBeTrue)
		})
	})
}

func TestPostgresSink(t *testing.T) {
	Convey("Given a mocked pool", t, func() {
		mock, err := pgxmock.NewPool()
		So(err, ShouldBeNil)
		defer mock.Close()
		ctx := context.Background()

		Convey("When the schema name is unsafe", func() {
			_, err := sink.NewPostgres(mock, "bad;drop", "")
			So(errors.Is(err, sink.ErrInvalidSchema), ShouldBeTrue)
		})

		Convey("When bootstrapping the schema", func() {
			p, err := sink.NewPostgres(mock, "curvewatch", "")
			So(err, ShouldBeNil)
			mock.ExpectExec("CREATE SCHEMA IF NOT EXISTS curvewatch").WillReturnResult(pgxmock.NewResult("CREATE", 0))
			mock.ExpectExec("CREATE TABLE IF NOT EXISTS curvewatch.runs").WillReturnResult(pgxmock.NewResult("CREATE", 0))
			mock.ExpectExec("CREATE TABLE IF NOT EXISTS curvewatch.metric_rows").WillReturnResult(pgxmock.NewResult("CREATE", 0))
			mock.ExpectExec("CREATE INDEX IF NOT EXISTS metric_rows_run_idx").WillReturnResult(pgxmock.NewResult("CREATE", 0))

			Convey("Then every statement runs", func() {
				So(p.EnsureSchema(ctx), ShouldBeNil)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When writing a run", func() {
			p, err := sink.NewPostgres(mock, "curvewatch", "nightly")
			So(err, ShouldBeNil)
			run := sampleRun()
			tag := "nightly"
			mock.ExpectBegin()
			mock.ExpectExec("INSERT INTO curvewatch.runs").
				WithArgs(runHeaderArgs(run, &tag)...).
				WillReturnResult(pgxmock.NewResult("INSERT", 1))
			mock.ExpectCopyFrom(pgx.Identifier{"curvewatch", "metric_rows"}, sink.MetricColumns).WillReturnResult(2)
			mock.ExpectCommit()

			Convey("Then the header and rows commit together", func() {
				So(p.WriteRun(ctx, run), ShouldBeNil)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When the copy fails", func() {
			p, _ := sink.NewPostgres(mock, "curvewatch", "")
			run := sampleRun()
			mock.ExpectBegin()
			mock.ExpectExec("INSERT INTO curvewatch.runs").
				WithArgs(runHeaderArgs(run, (*string)(nil))...).
				WillReturnResult(pgxmock.NewResult("INSERT", 1))
			mock.ExpectCopyFrom(pgx.Identifier{"curvewatch", "metric_rows"}, sink.MetricColumns).WillReturnError(errors.New("disk full"))
			mock.ExpectRollback()

			Convey("Then the transaction rolls back", func() {
				err := p.WriteRun(ctx, run)
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "copy metric rows")
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When the run id is not a uuid", func() {
			p, _ := sink.NewPostgres(mock, "curvewatch", "")
			run := sampleRun()
			run.RunID = "not-a-uuid"
			So(p.WriteRun(ctx, run), ShouldNotBeNil)
		})
	})
}

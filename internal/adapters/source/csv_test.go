package source_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/curvewatch/internal/adapters/source"
	"github.com/okian/curvewatch/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

const factsCSV = `Account ID,Statement_Age,Risk Series,risk_group,util_group,clip_group,credit_limit,eligible,reward_rate,apr,dq_bucket,is_open,is_charged_off,total_balance,included
a1,11,S1,5,3,A,1500,Y,0.01,0.2,0,1,0,750,1
a2,twelve,S1,5,3,A,1500,Y,0,0.1,0,1,0,100,1
a3,12,S1,5,3,A,1500,maybe,0,0.1,0,1,0,100,1
a4,12,S1,5,3,,2500,N,,,,0,1,,0
`

const assumptionsCSV = `series,segment,risk_group,util_group,credit_line_bucket,statement_number,clip_amount_group,pbad_assumption,utilization
S1,Y1,05,3,2000,11,A,0.02,
S1,Y1,5,3,2000,12.0,A,,0.4
S1,Y1,5,3,2000,12.5,A,,0.4
`

func TestReadFacts(t *testing.T) {
	convey.Convey("Given a facts CSV with aliased headers", t, func() {
		convey.Convey("When reading", func() {
			facts, st, err := source.ReadFacts(strings.NewReader(factsCSV))

			convey.Convey("Then valid rows are parsed and invalid rows counted", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(st.Read, convey.ShouldEqual, 4)
				convey.So(st.Invalid, convey.ShouldEqual, 2)
				convey.So(facts, convey.ShouldHaveLength, 2)
			})

			convey.Convey("Then fields are mapped", func() {
				f := facts[0]
				convey.So(f.AccountID, convey.ShouldEqual, "a1")
				convey.So(f.StatementAge, convey.ShouldEqual, 11)
				convey.So(f.RiskSeries, convey.ShouldEqual, "S1")
				convey.So(f.ClipAmountGroup, convey.ShouldEqual, "A")
				convey.So(f.CreditLimit, convey.ShouldEqual, 1500)
				convey.So(f.Eligible, convey.ShouldBeTrue)
				convey.So(f.APR, convey.ShouldEqual, 0.2)
				convey.So(f.IsOpen, convey.ShouldEqual, 1)
				convey.So(f.TotalBalance, convey.ShouldEqual, 750)
				convey.So(f.Included, convey.ShouldBeTrue)
			})

			convey.Convey("Then blank optional cells default to zero values", func() {
				f := facts[1]
				convey.So(f.AccountID, convey.ShouldEqual, "a4")
				convey.So(f.ClipAmountGroup, convey.ShouldEqual, "")
				convey.So(f.RewardRate, convey.ShouldEqual, 0)
				convey.So(f.Included, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When a required column is missing", func() {
			_, _, err := source.ReadFacts(strings.NewReader("account_id,statement_age\na1,1\n"))

			convey.Convey("Then the error names the field", func() {
				convey.So(errors.Is(err, source.ErrMissingColumn), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "risk_series")
			})
		})

		convey.Convey("When the input is empty", func() {
			_, _, err := source.ReadFacts(strings.NewReader(""))
			convey.So(errors.Is(err, source.ErrEmptyInput), convey.ShouldBeTrue)
		})
	})
}

func TestReadAssumptions(t *testing.T) {
	convey.Convey("Given an assumptions CSV", t, func() {
		rows, st, err := source.ReadAssumptions(strings.NewReader(assumptionsCSV))

		convey.Convey("Then keys keep their raw form and empty cells are absent", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(st.Read, convey.ShouldEqual, 3)
			convey.So(st.Invalid, convey.ShouldEqual, 1)
			convey.So(rows, convey.ShouldHaveLength, 2)
			convey.So(rows[0].Key.RiskGroup, convey.ShouldEqual, "05")
			convey.So(rows[0].Pbad, convey.ShouldResemble, model.Some(0.02))
			convey.So(rows[0].Utilization.Valid, convey.ShouldBeFalse)
			convey.So(rows[1].Key.StatementNumber, convey.ShouldEqual, 12)
			convey.So(rows[1].Utilization, convey.ShouldResemble, model.Some(0.4))
		})
	})
}

func TestCSVLoader(t *testing.T) {
	convey.Convey("Given CSV files on disk", t, func() {
		dir := t.TempDir()
		factsPath := filepath.Join(dir, "facts.csv")
		assumptionsPath := filepath.Join(dir, "assumptions.csv")
		convey.So(os.WriteFile(factsPath, []byte(factsCSV), 0o600), convey.ShouldBeNil)
		convey.So(os.WriteFile(assumptionsPath, []byte(assumptionsCSV), 0o600), convey.ShouldBeNil)
		ctx := context.Background()

		convey.Convey("When loading through the loader", func() {
			l := source.NewCSV(factsPath, assumptionsPath)
			facts, _, err := l.Facts(ctx)
			convey.So(err, convey.ShouldBeNil)
			rows, _, err := l.Assumptions(ctx)
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then both sides are read", func() {
				convey.So(facts, convey.ShouldHaveLength, 2)
				convey.So(rows, convey.ShouldHaveLength, 2)
			})
		})

		convey.Convey("When the facts file is missing", func() {
			_, _, err := source.NewCSV(filepath.Join(dir, "nope.csv"), "").Facts(ctx)
			convey.So(errors.Is(err, source.ErrOpen), convey.ShouldBeTrue)
		})

		convey.Convey("When no assumptions path is set", func() {
			rows, _, err := source.NewCSV(factsPath, "").Assumptions(ctx)
			convey.So(err, convey.ShouldBeNil)
			convey.So(rows, convey.ShouldBeEmpty)
		})
	})
}

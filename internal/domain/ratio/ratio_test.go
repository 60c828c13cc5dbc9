package ratio_test

import (
	"errors"
	"testing"

	"github.com/okian/curvewatch/internal/domain/model"
	"github.com/okian/curvewatch/internal/domain/ratio"
	"github.com/smartystreets/goconvey/convey"
)

func TestSafeDiv(t *testing.T) {
	convey.Convey("Given numerator and denominator measures", t, func() {
		convey.Convey("Then zero, negative and absent denominators give exactly 0", func() {
			convey.So(ratio.SafeDiv(model.Some(5), model.Some(0)), convey.ShouldEqual, 0)
			convey.So(ratio.SafeDiv(model.Some(5), model.Some(-2)), convey.ShouldEqual, 0)
			convey.So(ratio.SafeDiv(model.Some(5), model.None()), convey.ShouldEqual, 0)
			convey.So(ratio.SafeDiv(model.None(), model.Some(2)), convey.ShouldEqual, 0)
		})

		convey.Convey("Then present values divide", func() {
			convey.So(ratio.SafeDiv(model.Some(750), model.Some(1500)), convey.ShouldEqual, 0.5)
			convey.So(ratio.SafeDiv(model.Some(-1), model.Some(4)), convey.ShouldEqual, -0.25)
		})
	})
}

func TestCompute(t *testing.T) {
	convey.Convey("Given a filled row", t, func() {
		r := model.AggregateRow{
			StatementAge: 11, Source: model.SourceActual,
			OriginalStatements: model.Some(4), OpenStatements: model.Some(4),
			ChargedOffStatements: model.Some(1), VoluntaryClosures: model.Some(1),
			Bkt2Accounts: model.Some(2), CashAdvanceTakers: model.Some(1), LateFees: model.Some(3),
			CreditLimitOpen: model.Some(4000), TotalBalanceOpen: model.Some(2000),
			PurchaseBalanceOpen: model.Some(400), AverageOutstandingOpen: model.Some(1600),
			PrincipalBalanceChargedOff: model.Some(900), PbadNumerator: model.Some(12),
		}

		convey.Convey("When using the default variant", func() {
			c, err := ratio.New()
			convey.So(err, convey.ShouldBeNil)
			m := c.Compute(model.JoinedRow{AggregateRow: r})

			convey.Convey("Then every ratio follows its definition", func() {
				convey.So(m.Pbad, convey.ShouldEqual, 3)
				convey.So(m.Severity, convey.ShouldEqual, 900)
				convey.So(m.Utilization, convey.ShouldEqual, 0.5)
				convey.So(m.CreditLine, convey.ShouldEqual, 1000)
				convey.So(m.DQ30, convey.ShouldEqual, 0.5)
				convey.So(m.CashAdvance, convey.ShouldEqual, 0.25)
				convey.So(m.Penalty, convey.ShouldEqual, 0.75)
				convey.So(m.Pvol, convey.ShouldEqual, 0.1)
				convey.So(m.Attrition, convey.ShouldEqual, 0.25)
				convey.So(m.RevolveRate, convey.ShouldEqual, 0.25)
				convey.So(m.Outstanding, convey.ShouldEqual, 1600)
				convey.So(m.Assumption, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the Pvol variant changes", func() {
			byTotal, err := ratio.New(ratio.WithPvolDenominator(ratio.PvolTotalBalance))
			convey.So(err, convey.ShouldBeNil)
			byAvg, err := ratio.New(ratio.WithPvolDenominator(ratio.PvolAverageOutstanding))
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then only the Pvol denominator moves", func() {
				convey.So(byTotal.Compute(model.JoinedRow{AggregateRow: r}).Pvol, convey.ShouldEqual, 0.2)
				convey.So(byAvg.Compute(model.JoinedRow{AggregateRow: r}).Pvol, convey.ShouldEqual, 0.25)
				convey.So(byAvg.PvolDenominator(), convey.ShouldEqual, "average_outstanding")
			})
		})

		convey.Convey("When the variant is unknown", func() {
			_, err := ratio.New(ratio.WithPvolDenominator("purchases"))
			convey.So(errors.Is(err, ratio.ErrUnknownDenominator), convey.ShouldBeTrue)
		})

		convey.Convey("When every denominator is zero or absent", func() {
			c, _ := ratio.New()
			m := c.Compute(model.JoinedRow{AggregateRow: model.AggregateRow{
				OpenStatements: model.Some(0), ChargedOffStatements: model.Some(0),
				PrincipalBalanceChargedOff: model.Some(100), PbadNumerator: model.Some(3),
			}})

			convey.Convey("Then ratios are exactly zero", func() {
				convey.So(m.Pbad, convey.ShouldEqual, 0)
				convey.So(m.Severity, convey.ShouldEqual, 0)
				convey.So(m.Utilization, convey.ShouldEqual, 0)
				convey.So(m.RevolveRate, convey.ShouldEqual, 0)
				convey.So(m.Outstanding, convey.ShouldEqual, 0)
			})
		})
	})
}

func TestClamp(t *testing.T) {
	convey.Convey("Given a row with a negative utilization", t, func() {
		rows := []model.MetricRow{{StatementAge: 3, Utilization: -0.2, Pvol: 0.4}}

		convey.Convey("When clamping for presentation", func() {
			out := ratio.ClampAll(rows)

			convey.Convey("Then negatives floor at zero and the row is kept", func() {
				convey.So(out, convey.ShouldHaveLength, 1)
				convey.So(out[0].Utilization, convey.ShouldEqual, 0)
				convey.So(out[0].Pvol, convey.ShouldEqual, 0.4)
				convey.So(rows[0].Utilization, convey.ShouldEqual, -0.2)
			})
		})
	})
}

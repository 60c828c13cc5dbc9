package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/okian/curvewatch/internal/domain/dedupe"
	"github.com/okian/curvewatch/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		ctx := context.Background()

		Convey("When recording statements", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("Then a new ID is recorded and a repeat is reported", func() {
				So(d.SeenAndRecord(ctx, "a1#3"), ShouldBeFalse)
				So(d.SeenAndRecord(ctx, "a1#3"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When the deduper is bounded", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(2))
			d.SeenAndRecord(ctx, "a")
			d.SeenAndRecord(ctx, "b")
			d.SeenAndRecord(ctx, "c")

			Convey("Then the oldest ID is forgotten", func() {
				So(d.Size(), ShouldEqual, 2)
				So(d.SeenAndRecord(ctx, "c"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "a"), ShouldBeFalse)
			})
		})

		Convey("When recording concurrently", func() {
			d := dedupe.NewInMemoryDeduper()
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < 100; j++ {
						d.SeenAndRecord(ctx, fmt.Sprintf("acct-%d", j))
					}
				}()
			}
			wg.Wait()

			Convey("Then each ID is stored once", func() {
				So(d.Size(), ShouldEqual, 100)
			})
		})
	})
}

func TestScan(t *testing.T) {
	Convey("Given facts with a repeated account-statement pair", t, func() {
		facts := []model.StatementFact{
			{AccountID: "a1", StatementAge: 1},
			{AccountID: "a1", StatementAge: 2},
			{AccountID: "a1", StatementAge: 1},
			{AccountID: "a2", StatementAge: 1},
		}

		Convey("When scanning", func() {
			rep := dedupe.Scan(context.Background(), facts)

			Convey("Then the duplicate is counted with an example", func() {
				So(rep.Duplicates, ShouldEqual, 1)
				So(rep.Examples, ShouldResemble, []string{dedupe.StatementID("a1", 1)})
				So(dedupe.StatementID("a1", 1), ShouldEqual, "a1#1")
			})
		})
	})
}

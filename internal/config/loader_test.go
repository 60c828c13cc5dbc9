package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/okian/curvewatch/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		convey.Reset(clearConfigEnvVars)

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.LoadFile(ctx, "")

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.Store.TTL, convey.ShouldEqual, 24*time.Hour)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("CURVEWATCH_ADDR", ":8080")
			_ = os.Setenv("CURVEWATCH_WORKER_COUNT", "3")
			_ = os.Setenv("CURVEWATCH_SOURCE__FACTS_PATH", "/tmp/facts.csv")
			_ = os.Setenv("CURVEWATCH_RATIO__PVOL_DENOMINATOR", "total_balance")
			_ = os.Setenv("CURVEWATCH_FILL__LED_STATEMENTS", "3")
			_ = os.Setenv("CURVEWATCH_DIMENSION__CREDIT_LIMIT_EDGES", "500, 2500")

			cfg, err := config.LoadFile(ctx, "")

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 3)
				convey.So(cfg.Source.FactsPath, convey.ShouldEqual, "/tmp/facts.csv")
				convey.So(cfg.Ratio.PvolDenominator, convey.ShouldEqual, config.PvolTotalBalance)
				convey.So(cfg.Fill.LedStatements, convey.ShouldEqual, 3)
				convey.So(cfg.Dimension.CreditLimitEdges, convey.ShouldResemble, []float64{500, 2500})
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9090"
schedule: "0 6 * * *"
max_statement: 36
dimension:
  credit_limit_edges: [500, 1000, 5000]
  apr_threshold: 0.2
ratio:
  pbad_scale: 1
presentation:
  clamp_negative: false
store:
  ttl: 10m
`
			path := filepath.Join(t.TempDir(), "curvewatch.yaml")
			convey.So(os.WriteFile(path, []byte(yamlContent), 0o600), convey.ShouldBeNil)

			cfg, err := config.LoadFile(ctx, path)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.Schedule, convey.ShouldEqual, "0 6 * * *")
				convey.So(cfg.MaxStatement, convey.ShouldEqual, 36)
				convey.So(cfg.Dimension.CreditLimitEdges, convey.ShouldResemble, []float64{500, 1000, 5000})
				convey.So(cfg.Dimension.APRThreshold, convey.ShouldEqual, 0.2)
				convey.So(cfg.Ratio.PbadScale, convey.ShouldEqual, 1)
				convey.So(cfg.Presentation.ClampNegative, convey.ShouldBeFalse)
				convey.So(cfg.Store.TTL, convey.ShouldEqual, 10*time.Minute)
				convey.So(cfg.Fill.RollRateFactor, convey.ShouldEqual, 0.91)
			})
		})

		convey.Convey("When the file does not exist", func() {
			_, err := config.LoadFile(ctx, filepath.Join(t.TempDir(), "missing.yaml"))

			convey.Convey("Then a load error is returned", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When an enumeration is unknown", func() {
			_ = os.Setenv("CURVEWATCH_RATIO__PVOL_DENOMINATOR", "balance")

			_, err := config.LoadFile(ctx, "")

			convey.Convey("Then validation names the key", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "ratio.pvol_denominator")
			})
		})
	})
}

func TestConfigValidate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		ctx := context.Background()

		convey.Convey("When the schedule is malformed", func() {
			cfg := config.New(ctx)
			cfg.Schedule = "every day"
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When credit limit edges are not ascending", func() {
			cfg := config.New(ctx)
			cfg.Dimension.CreditLimitEdges = []float64{500, 300}
			convey.So(cfg.Validate().Error(), convey.ShouldContainSubstring, "dimension.credit_limit_edges")
		})

		convey.Convey("When a postgres source has no dsn", func() {
			cfg := config.New(ctx)
			cfg.Source.Kind = config.SourcePostgres
			convey.So(cfg.Validate().Error(), convey.ShouldContainSubstring, "source.dsn")
		})

		convey.Convey("When a redis store has no address", func() {
			cfg := config.New(ctx)
			cfg.Store.Kind = config.StoreRedis
			convey.So(cfg.Validate().Error(), convey.ShouldContainSubstring, "store.redis_addr")
		})

		convey.Convey("When a forecast factor is not positive", func() {
			cfg := config.New(ctx)
			cfg.Fill.ConversionFactor = 0
			convey.So(cfg.Validate().Error(), convey.ShouldContainSubstring, "fill.conversion_factor")

			cfg = config.New(ctx)
			cfg.Fill.Annualization = -12
			convey.So(cfg.Validate().Error(), convey.ShouldContainSubstring, "fill.annualization")

			cfg = config.New(ctx)
			cfg.Fill.RollRateFactor = 0
			convey.So(cfg.Validate().Error(), convey.ShouldContainSubstring, "fill.roll_rate_factor")
		})
	})
}

func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "CURVEWATCH_") {
			_ = os.Unsetenv(strings.SplitN(kv, "=", 2)[0])
		}
	}
}

// Package fixtures synthesises statement facts and matching assumption
// curves for demos, load tests and end-to-end tests.
package fixtures

import (
	"cmp"
	"math"
	"math/rand/v2"
	"slices"
	"strconv"

	"github.com/google/uuid"

	"github.com/okian/curvewatch/internal/domain/dimension"
	"github.com/okian/curvewatch/internal/domain/model"
)

// Default generation constants.
const (
	defaultAccounts  = 1000
	defaultMaxAge    = 18
	defaultCurveAges = 24
	defaultSeed      = 42
)

var (
	creditLimits = []float64{250, 450, 900, 1500, 3000, 5000, 7500, 10000}
	clipGroups   = []string{"A", "B", "C"}

	// accountNamespace keeps generated account ids stable across runs for a seed.
	accountNamespace = uuid.MustParse("6f1f3c3e-6a0f-4f5e-9a54-4c1d7c1e8b20")
)

// Config controls the generated population.
type Config struct {
	Accounts int
	// MaxAge is the last observed statement; curves run to CurveAges.
	MaxAge        int
	CurveAges     int
	Series        []string
	Seed          uint64
	ExcludedShare float64
}

// DefaultConfig returns a small mixed portfolio.
func DefaultConfig() Config {
	return Config{
		Accounts:      defaultAccounts,
		MaxAge:        defaultMaxAge,
		CurveAges:     defaultCurveAges,
		Series:        []string{"S1", "S2"},
		Seed:          defaultSeed,
		ExcludedShare: 0.05,
	}
}

// Option configures a Generator.
type Option func(*Generator)

// WithMapper sets the mapper used to label assumption curves. It must match
// the pipeline's mapper for curves to join.
func WithMapper(m *dimension.Mapper) Option {
	return func(g *Generator) {
		if m != nil {
			g.mapper = m
		}
	}
}

// Generator produces deterministic fixtures for a seed.
type Generator struct {
	cfg    Config
	rng    *rand.Rand
	mapper *dimension.Mapper
}

// New returns a Generator. Zero config fields take their defaults.
func New(cfg Config, opts ...Option) *Generator {
	def := DefaultConfig()
	cfg.Accounts = cmp.Or(cfg.Accounts, def.Accounts)
	cfg.MaxAge = cmp.Or(cfg.MaxAge, def.MaxAge)
	cfg.CurveAges = max(cfg.CurveAges, cfg.MaxAge)
	cfg.Seed = cmp.Or(cfg.Seed, def.Seed)
	if len(cfg.Series) == 0 {
		cfg.Series = def.Series
	}

	g := &Generator{
		cfg:    cfg,
		rng:    rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)), //nolint:gosec // fixtures need a seeded generator
		mapper: dimension.New(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) pick(n int) int { return g.rng.IntN(n) }

func (g *Generator) chance(p float64) bool { return g.rng.Float64() < p }

// accountID is stable for a seed and index.
func (g *Generator) accountID(i int) string {
	name := strconv.FormatUint(g.cfg.Seed, 10) + "/" + strconv.Itoa(i)
	return uuid.NewSHA1(accountNamespace, []byte(name)).String()
}

// Facts simulates every account from statement 1 until it charges off,
// closes, or reaches MaxAge.
func (g *Generator) Facts() []model.StatementFact {
	var facts []model.StatementFact
	for i := 0; i < g.cfg.Accounts; i++ {
		facts = append(facts, g.account(i)...)
	}
	return facts
}

func (g *Generator) account(i int) []model.StatementFact {
	risk := 1 + g.pick(9)
	base := model.StatementFact{
		AccountID:       g.accountID(i),
		RiskSeries:      g.cfg.Series[g.pick(len(g.cfg.Series))],
		RiskGroup:       strconv.Itoa(risk),
		UtilGroup:       strconv.Itoa(1 + g.pick(5)),
		ClipAmountGroup: clipGroups[g.pick(len(clipGroups))],
		Cohort:          "2024Q" + strconv.Itoa(1+g.pick(4)),
		CreditLimit:     creditLimits[g.pick(len(creditLimits))],
		Eligible:        g.chance(0.8),
		RewardRate:      []float64{0, 0.01, 0.015}[g.pick(3)],
		APR:             0.09 + 0.01*float64(g.pick(17)),
		Included:        !g.chance(g.cfg.ExcludedShare),
	}

	// monthly hazards grow with the risk group
	chargeOffRoll := 0.35 + 0.05*float64(risk)
	delinquent := 0.004 * float64(risk)
	closure := 0.01

	util := 0.2 + 0.6*g.rng.Float64()
	dq := 0
	var out []model.StatementFact
	for age := 1; age <= g.cfg.MaxAge; age++ {
		f := base
		f.StatementAge = age
		f.IsOpen = 1

		switch {
		case dq >= 3 && g.chance(chargeOffRoll):
			f.IsOpen = 0
			f.IsChargedOff = 1
		case g.chance(closure):
			f.IsOpen = 0
			f.IsVoluntaryClosure = 1
		}

		util = math.Min(1.1, math.Max(0, util+0.05*(g.rng.Float64()-0.45)))
		balance := math.Round(base.CreditLimit*util*100) / 100
		purchases := math.Round(balance*(0.1+0.3*g.rng.Float64())*100) / 100
		f.TotalBalance = balance
		f.PrincipalBalance = math.Round(balance*0.95*100) / 100
		f.PurchaseBalance = purchases
		f.AverageOutstandingBalance = math.Round(balance*(0.9+0.2*g.rng.Float64())*100) / 100
		f.DelinquencyBucket = dq
		if f.IsOpen == 1 {
			if g.chance(0.03) {
				f.TookCashAdvance = 1
			}
			if dq > 0 {
				f.LateFee = 1
			}
		}
		out = append(out, f)

		if f.IsOpen == 0 {
			break
		}
		switch {
		case dq > 0 && g.chance(0.5):
			dq++
		case dq > 0:
			dq = 0
		case g.chance(delinquent):
			dq = 1
		}
	}
	return out
}

// Assumptions builds one curve per assumption key seen in facts, covering
// statements 1..CurveAges.
func (g *Generator) Assumptions(facts []model.StatementFact) []model.AssumptionRow {
	seen := make(map[model.AssumptionKey]bool)
	var curves []model.AssumptionKey
	for _, f := range facts {
		if !f.Included {
			continue
		}
		k := g.mapper.Key(f).AssumptionKey(0)
		if !seen[k] {
			seen[k] = true
			curves = append(curves, k)
		}
	}
	slices.SortFunc(curves, func(a, b model.AssumptionKey) int {
		return cmp.Or(
			cmp.Compare(a.Series, b.Series),
			cmp.Compare(a.Segment, b.Segment),
			cmp.Compare(a.RiskGroup, b.RiskGroup),
			cmp.Compare(a.UtilGroup, b.UtilGroup),
			cmp.Compare(a.CreditLineBucket, b.CreditLineBucket),
			cmp.Compare(a.ClipAmountGroup, b.ClipAmountGroup),
		)
	})

	var rows []model.AssumptionRow
	for _, k := range curves {
		risk, _ := strconv.Atoi(k.RiskGroup)
		util, _ := strconv.Atoi(k.UtilGroup)
		limit, err := strconv.ParseFloat(k.CreditLineBucket, 64)
		if err != nil {
			limit = creditLimits[len(creditLimits)-1]
		}
		for age := 1; age <= g.cfg.CurveAges; age++ {
			// segments are labelled from the statement each curve point describes
			if g.mapper.Segment(age) != k.Segment {
				continue
			}
			key := k
			key.StatementNumber = age
			ramp := math.Min(1, float64(age)/12)
			utilization := 0.15 + 0.12*float64(util)
			rows = append(rows, model.AssumptionRow{
				Key:         key,
				Pbad:        model.Some(round4(0.01 * float64(risk) * ramp)),
				Severity:    model.Some(round4(limit * 0.6)),
				Utilization: model.Some(round4(utilization)),
				CreditLine:  model.Some(round4(limit * 0.8)),
				CashAdvance: model.Some(0.03),
				Penalty:     model.Some(round4(0.004 * float64(risk))),
				Pvol:        model.Some(round4(0.1 + 0.02*float64(util))),
				Attrition:   model.Some(0.01),
				Outstanding: model.Some(round4(limit * 0.8 * utilization)),
				// revolve rate is not forecast for young accounts
				RevolveRate: revolve(age),
			})
		}
	}
	return rows
}

func revolve(age int) model.Measure {
	if age < 3 {
		return model.None()
	}
	return model.Some(0.25)
}

func round4(v float64) float64 { return math.Round(v*1e4) / 1e4 }

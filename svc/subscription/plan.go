package subscription

import (
	"strings"
	"time"
)

// Plan is a billing plan.
type Plan string

const (
	PlanMonthly Plan = "MONTHLY"
	PlanYearly  Plan = "YEARLY"
)

// ParsePlan accepts plan names in any letter case.
func ParsePlan(s string) (Plan, error) {
	p := Plan(strings.ToUpper(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", ErrInvalidPlan.WithMessage("unknown plan " + s)
	}
	return p, nil
}

func (p Plan) Valid() bool {
	return p == PlanMonthly || p == PlanYearly
}

// Duration is the paid period: 30 days for monthly, 365 for yearly.
func (p Plan) Duration() time.Duration {
	switch p {
	case PlanYearly:
		return 365 * 24 * time.Hour
	case PlanMonthly:
		return 30 * 24 * time.Hour
	default:
		return 0
	}
}

// Rank orders plans for minimum-plan checks. Unknown plans rank zero.
func (p Plan) Rank() int {
	switch p {
	case PlanMonthly:
		return 1
	case PlanYearly:
		return 2
	default:
		return 0
	}
}

// Price is an amount in minor currency units.
type Price struct {
	Amount   int64
	Currency string
}

// Catalog maps plans to their current price.
type Catalog map[Plan]Price

// Price returns the price of plan or ErrInvalidPlan.
func (c Catalog) Price(plan Plan) (Price, error) {
	p, ok := c[plan]
	if !ok {
		return Price{}, ErrInvalidPlan.WithMessage("no price configured for plan " + string(plan))
	}
	return p, nil
}

// Config holds plan prices.
type Config struct {
	MonthlyAmount int64  `env:"PLAN_MONTHLY_AMOUNT" envDefault:"99900"`
	YearlyAmount  int64  `env:"PLAN_YEARLY_AMOUNT" envDefault:"999900"`
	Currency      string `env:"PLAN_CURRENCY" envDefault:"INR"`
}

func (c Config) Catalog() Catalog {
	return Catalog{
		PlanMonthly: {Amount: c.MonthlyAmount, Currency: c.Currency},
		PlanYearly:  {Amount: c.YearlyAmount, Currency: c.Currency},
	}
}

// DefaultCatalog prices plans in INR paise.
func DefaultCatalog() Catalog {
	return Config{MonthlyAmount: 99900, YearlyAmount: 999900, Currency: "INR"}.Catalog()
}

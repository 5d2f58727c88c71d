package subscription

import (
	"strings"
	"time"

	"reviewhub_backend/internal/models"
)

// UnboundedLimit - значение review_limit для тарифа без ограничений
const UnboundedLimit = -1

// Quota - лимит отзывов тарифа
type Quota struct {
	Limit     int
	Unbounded bool
}

// Allows - можно ли принять ещё один отзыв при текущем количестве
func (q Quota) Allows(count int64) bool {
	return q.Unbounded || count < int64(q.Limit)
}

var quotas = map[models.Plan]Quota{
	models.PlanFree:     {Limit: 10},
	models.PlanPro:      {Limit: 100},
	models.PlanBusiness: {Unbounded: true},
}

// QuotaFor возвращает лимит тарифа; неизвестный тариф считается FREE
func QuotaFor(plan models.Plan) Quota {
	if q, ok := quotas[plan]; ok {
		return q
	}
	return quotas[models.PlanFree]
}

// ParsePlan принимает название в любом регистре
func ParsePlan(s string) (models.Plan, bool) {
	p := models.Plan(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := quotas[p]
	return p, ok
}

func IsPaid(plan models.Plan) bool {
	return plan == models.PlanPro || plan == models.PlanBusiness
}

// ReviewLimitColumn - кэшированный лимит для shops.review_limit
func ReviewLimitColumn(plan models.Plan) int {
	q := QuotaFor(plan)
	if q.Unbounded {
		return UnboundedLimit
	}
	return q.Limit
}

// PeriodEnd - конец оплаченного периода: +1 календарный месяц или год
func PeriodEnd(start time.Time, period models.BillingPeriod) time.Time {
	if period == models.BillingPeriodYearly {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}

// PlanInfo - строка публичного прайса
type PlanInfo struct {
	Plan      models.Plan                      `json:"plan"`
	Limit     *int                             `json:"reviewLimit"`
	Unbounded bool                             `json:"unbounded"`
	Paid      bool                             `json:"paid"`
	Prices    map[models.BillingPeriod]float64 `json:"prices,omitempty"`
}

// Plans - все тарифы по возрастанию; цены берутся из прайса платёжного шлюза
func Plans(prices PriceList) []PlanInfo {
	order := []models.Plan{models.PlanFree, models.PlanPro, models.PlanBusiness}
	out := make([]PlanInfo, 0, len(order))
	for _, p := range order {
		q := QuotaFor(p)
		info := PlanInfo{Plan: p, Unbounded: q.Unbounded, Paid: IsPaid(p)}
		if !q.Unbounded {
			limit := q.Limit
			info.Limit = &limit
		}
		if info.Paid && prices != nil {
			info.Prices = map[models.BillingPeriod]float64{}
			for _, period := range []models.BillingPeriod{models.BillingPeriodMonthly, models.BillingPeriodYearly} {
				if amount, ok := prices.Price(p, period); ok {
					info.Prices[period] = amount
				}
			}
		}
		out = append(out, info)
	}
	return out
}

// PriceList - цена тарифа за период
type PriceList map[string]float64

func PriceKey(plan models.Plan, period models.BillingPeriod) string {
	return string(plan) + "_" + string(period)
}

func (p PriceList) Price(plan models.Plan, period models.BillingPeriod) (float64, bool) {
	amount, ok := p[PriceKey(plan, period)]
	return amount, ok && amount > 0
}

package statistics

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/gachapon/internal/app/service/payment"
	"github.com/fatflowers/gachapon/internal/models"
	"github.com/fatflowers/gachapon/pkg/errs"
	"github.com/fatflowers/gachapon/pkg/types"
)

type StatisticType string

const (
	StatisticTypeDailyPaymentCount StatisticType = "daily_payment_count"
	StatisticTypeDailyRevenue      StatisticType = "daily_revenue"
	StatisticTypeTotalRevenue      StatisticType = "total_revenue"
	StatisticTypeDailyDrawCount    StatisticType = "daily_draw_count"
	// Value is succeeded/created in basis points; Value2 created, Value3 succeeded.
	StatisticTypeConversionRate StatisticType = "conversion_rate"
)

var statisticTypes = []StatisticType{
	StatisticTypeDailyPaymentCount,
	StatisticTypeDailyRevenue,
	StatisticTypeTotalRevenue,
	StatisticTypeDailyDrawCount,
	StatisticTypeConversionRate,
}

type PaymentStatisticDataItem struct {
	ID StatisticType `json:"id"`
}

type PaymentStatisticRequest struct {
	Filters   []*types.CommonFilter       `json:"filters"`
	DataItems []*PaymentStatisticDataItem `json:"data_items"`
}

// Build ANDs the filters; an empty request matches every row.
func (r *PaymentStatisticRequest) Build(builder clause.Builder) {
	filters := lo.Compact(r.Filters)
	if len(filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	exprs := make([]clause.Expression, 0, len(filters))
	for _, f := range filters {
		exprs = append(exprs, f)
	}
	clause.And(exprs...).Build(builder)
}

func (r *PaymentStatisticRequest) validate() error {
	if r == nil || len(r.DataItems) == 0 {
		return fmt.Errorf("%w: data_items is required", errs.ErrInvalid)
	}
	for _, f := range lo.Compact(r.Filters) {
		if err := f.CheckFields(payment.ScanFields); err != nil {
			return fmt.Errorf("%w: %v", errs.ErrInvalid, err)
		}
	}
	for _, di := range r.DataItems {
		if di == nil || !lo.Contains(statisticTypes, di.ID) {
			return fmt.Errorf("%w: invalid data item id", errs.ErrInvalid)
		}
	}
	return nil
}

type PaymentStatisticResponseDataItem struct {
	Date   string `json:"date"`
	Label  string `json:"label,omitempty"`
	Value  int64  `json:"value"`
	Value2 int64  `json:"value2,omitempty"`
	Value3 int64  `json:"value3,omitempty"`
	Amount string `json:"amount,omitempty"`
}

type PaymentStatisticResponse struct {
	DataItems map[StatisticType][]PaymentStatisticResponseDataItem `json:"data_items"`
}

// Service aggregates payments per UTC day. Grouping happens in Go so the same
// queries run on Postgres and SQLite.
type Service struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Service { return &Service{db: db} }

type paymentRow struct {
	Status    types.PaymentStatus
	Amount    decimal.Decimal
	Currency  string
	DrawCount int
	CreatedAt time.Time
}

func day(t time.Time) string { return t.UTC().Format(time.DateOnly) }

func (s *Service) load(ctx context.Context, request *PaymentStatisticRequest, succeededOnly bool) ([]paymentRow, error) {
	var rows []paymentRow
	q := s.db.WithContext(ctx).Model(&models.Payment{}).
		Select("status, amount, currency, draw_count, created_at").
		Where(clause.Where{Exprs: []clause.Expression{request}})
	if succeededOnly {
		q = q.Where("status = ?", types.PaymentStatusSucceeded)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}
	return rows, nil
}

func (s *Service) getDailyPaymentCount(ctx context.Context, request *PaymentStatisticRequest) ([]PaymentStatisticResponseDataItem, error) {
	rows, err := s.load(ctx, request, true)
	if err != nil {
		return nil, err
	}
	counts := lo.CountValuesBy(rows, func(r paymentRow) string { return day(r.CreatedAt) })
	results := make([]PaymentStatisticResponseDataItem, 0, len(counts))
	for date, n := range counts {
		results = append(results, PaymentStatisticResponseDataItem{Date: date, Value: int64(n)})
	}
	sortByDate(results, false)
	return results, nil
}

func (s *Service) getDailyDrawCount(ctx context.Context, request *PaymentStatisticRequest) ([]PaymentStatisticResponseDataItem, error) {
	rows, err := s.load(ctx, request, true)
	if err != nil {
		return nil, err
	}
	byDay := lo.GroupBy(rows, func(r paymentRow) string { return day(r.CreatedAt) })
	results := make([]PaymentStatisticResponseDataItem, 0, len(byDay))
	for date, group := range byDay {
		draws := lo.SumBy(group, func(r paymentRow) int { return r.DrawCount })
		results = append(results, PaymentStatisticResponseDataItem{Date: date, Value: int64(draws), Value2: int64(len(group))})
	}
	sortByDate(results, false)
	return results, nil
}

type dayCurrency struct{ date, currency string }

func revenueByDay(rows []paymentRow) map[dayCurrency]decimal.Decimal {
	out := make(map[dayCurrency]decimal.Decimal)
	for _, r := range rows {
		k := dayCurrency{day(r.CreatedAt), r.Currency}
		out[k] = out[k].Add(r.Amount)
	}
	return out
}

func (s *Service) getDailyRevenue(ctx context.Context, request *PaymentStatisticRequest) ([]PaymentStatisticResponseDataItem, error) {
	rows, err := s.load(ctx, request, true)
	if err != nil {
		return nil, err
	}
	sums := revenueByDay(rows)
	results := make([]PaymentStatisticResponseDataItem, 0, len(sums))
	for k, sum := range sums {
		results = append(results, PaymentStatisticResponseDataItem{
			Date: k.date, Label: k.currency, Value: sum.Shift(2).IntPart(), Amount: sum.StringFixed(2),
		})
	}
	sortByDate(results, true)
	return results, nil
}

// getTotalRevenue is the running sum per currency over every day that has a
// succeeded payment, newest first.
func (s *Service) getTotalRevenue(ctx context.Context, request *PaymentStatisticRequest) ([]PaymentStatisticResponseDataItem, error) {
	rows, err := s.load(ctx, request, true)
	if err != nil {
		return nil, err
	}
	sums := revenueByDay(rows)
	dates := lo.Uniq(lo.Map(lo.Keys(sums), func(k dayCurrency, _ int) string { return k.date }))
	currencies := lo.Uniq(lo.Map(lo.Keys(sums), func(k dayCurrency, _ int) string { return k.currency }))
	sort.Strings(dates)
	sort.Strings(currencies)

	results := make([]PaymentStatisticResponseDataItem, 0, len(dates)*len(currencies))
	running := make(map[string]decimal.Decimal, len(currencies))
	for _, date := range dates {
		for _, cur := range currencies {
			running[cur] = running[cur].Add(sums[dayCurrency{date, cur}])
			results = append(results, PaymentStatisticResponseDataItem{
				Date: date, Label: cur, Value: running[cur].Shift(2).IntPart(), Amount: running[cur].StringFixed(2),
			})
		}
	}
	sortByDate(results, true)
	return results, nil
}

func (s *Service) getConversionRate(ctx context.Context, request *PaymentStatisticRequest) ([]PaymentStatisticResponseDataItem, error) {
	rows, err := s.load(ctx, request, false)
	if err != nil {
		return nil, err
	}
	byDay := lo.GroupBy(rows, func(r paymentRow) string { return day(r.CreatedAt) })
	results := make([]PaymentStatisticResponseDataItem, 0, len(byDay))
	for date, group := range byDay {
		total := int64(len(group))
		ok := int64(lo.CountBy(group, func(r paymentRow) bool { return r.Status == types.PaymentStatusSucceeded }))
		results = append(results, PaymentStatisticResponseDataItem{Date: date, Value: ok * 10000 / total, Value2: total, Value3: ok})
	}
	sortByDate(results, true)
	return results, nil
}

func sortByDate(items []PaymentStatisticResponseDataItem, desc bool) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Date != items[j].Date {
			if desc {
				return items[i].Date > items[j].Date
			}
			return items[i].Date < items[j].Date
		}
		return items[i].Label < items[j].Label
	})
}

func (s *Service) getPaymentStatistic(ctx context.Context, request *PaymentStatisticRequest, dataItem *PaymentStatisticDataItem) ([]PaymentStatisticResponseDataItem, error) {
	switch dataItem.ID {
	case StatisticTypeDailyPaymentCount:
		return s.getDailyPaymentCount(ctx, request)
	case StatisticTypeDailyRevenue:
		return s.getDailyRevenue(ctx, request)
	case StatisticTypeTotalRevenue:
		return s.getTotalRevenue(ctx, request)
	case StatisticTypeDailyDrawCount:
		return s.getDailyDrawCount(ctx, request)
	case StatisticTypeConversionRate:
		return s.getConversionRate(ctx, request)
	default:
		return nil, fmt.Errorf("%w: invalid data item id: %s", errs.ErrInvalid, dataItem.ID)
	}
}

// GetPaymentStatistic computes every requested data item concurrently.
func (s *Service) GetPaymentStatistic(ctx context.Context, request *PaymentStatisticRequest) (*PaymentStatisticResponse, error) {
	if err := request.validate(); err != nil {
		return nil, err
	}
	var wg sync.WaitGroup
	errChan := make(chan error, len(request.DataItems))
	resChan := make(chan *lo.Entry[StatisticType, []PaymentStatisticResponseDataItem], len(request.DataItems))

	for _, item := range request.DataItems {
		wg.Add(1)
		go func(di *PaymentStatisticDataItem) {
			defer wg.Done()
			res, err := s.getPaymentStatistic(ctx, request, di)
			if err != nil {
				errChan <- err
				return
			}
			resChan <- &lo.Entry[StatisticType, []PaymentStatisticResponseDataItem]{Key: di.ID, Value: res}
		}(item)
	}

	wg.Wait()
	close(errChan)
	close(resChan)
	if err := <-errChan; err != nil {
		return nil, err
	}

	results := make(map[StatisticType][]PaymentStatisticResponseDataItem, len(request.DataItems))
	for entry := range resChan {
		results[entry.Key] = entry.Value
	}
	return &PaymentStatisticResponse{DataItems: results}, nil
}

package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pricecache/internal/pricecache/domain"
	"github.com/wyfcoding/pricecache/pkg/logger"
	"github.com/wyfcoding/pricecache/pkg/metrics"
	"go.uber.org/multierr"
)

// 报价来源，用作指标标签
const (
	SourceHTTP  = "http"
	SourceKafka = "kafka"
)

// PriceApplicationService 报价应用服务
// 负责把传输层的原始字段解析为领域对象并写入缓存
type PriceApplicationService struct {
	cache   *domain.PriceCache
	metrics *metrics.Metrics
}

// NewPriceApplicationService 创建报价应用服务
// m 可以为 nil，此时不记录指标
func NewPriceApplicationService(cache *domain.PriceCache, m *metrics.Metrics) *PriceApplicationService {
	return &PriceApplicationService{
		cache:   cache,
		metrics: m,
	}
}

// PublishPrice 发布单条报价
// 用例流程：
// 1. 解析日期与价格
// 2. 构造并校验领域对象
// 3. 写入缓存（过旧的交易日会被静默丢弃，不视为错误）
func (s *PriceApplicationService) PublishPrice(ctx context.Context, source string, cmd PublishPriceCommand) error {
	p, err := cmd.toDomain()
	if err != nil {
		s.rejected(source)
		logger.Warn(ctx, "Price rejected",
			"source", source,
			"vendor_id", cmd.VendorID,
			"instrument_id", cmd.InstrumentID,
			"error", err,
		)
		return err
	}

	if err := s.cache.Publish(p); err != nil {
		s.rejected(source)
		return err
	}
	if s.metrics != nil {
		s.metrics.PricesPublished.WithLabelValues(source).Inc()
	}

	logger.Debug(ctx, "Price published",
		"source", source,
		"vendor_id", p.VendorID,
		"instrument_id", p.InstrumentID,
		"price_date", p.PriceDate.String(),
	)
	return nil
}

// PublishPrices 批量发布
// 每条独立处理，失败的元素不影响其他元素，错误按下标合并返回
func (s *PriceApplicationService) PublishPrices(ctx context.Context, source string, cmds []PublishPriceCommand) error {
	defer logger.LogDuration(ctx, "Batch publish", "source", source, "count", len(cmds))()

	var errs error
	for i, cmd := range cmds {
		if err := s.PublishPrice(ctx, source, cmd); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("prices[%d]: %w", i, err))
		}
	}
	if errs != nil {
		logger.Info(ctx, "Batch publish completed with errors",
			"source", source,
			"total", len(cmds),
			"failed", len(multierr.Errors(errs)),
		)
	}
	return errs
}

// GetInstrumentPrices 查询某工具在某交易日的全部供应商报价
// 数据不存在（包括空 ID）时返回空结果，只有日期无法解析时返回错误
func (s *PriceApplicationService) GetInstrumentPrices(ctx context.Context, instrumentID, date string) (*InstrumentPricesDTO, error) {
	d, err := parseQueryDate(date)
	if err != nil {
		return nil, err
	}
	prices := s.cache.InstrumentPrices(instrumentID, d)
	logger.Debug(ctx, "Instrument prices queried", "instrument_id", instrumentID, "price_date", date, "count", len(prices))

	return &InstrumentPricesDTO{
		InstrumentID: instrumentID,
		PriceDate:    d.String(),
		Prices:       toPriceDTOs(prices),
	}, nil
}

// GetVendorPrices 查询某供应商在某交易日的全部工具报价
func (s *PriceApplicationService) GetVendorPrices(ctx context.Context, vendorID, date string) (*VendorPricesDTO, error) {
	d, err := parseQueryDate(date)
	if err != nil {
		return nil, err
	}
	prices := s.cache.VendorPrices(vendorID, d)
	logger.Debug(ctx, "Vendor prices queried", "vendor_id", vendorID, "price_date", date, "count", len(prices))

	return &VendorPricesDTO{
		VendorID:  vendorID,
		PriceDate: d.String(),
		Prices:    toPriceDTOs(prices),
	}, nil
}

// GetWindow 当前缓存窗口概况
func (s *PriceApplicationService) GetWindow(ctx context.Context) *WindowDTO {
	summary := s.cache.Summary()
	days := make([]DayDTO, 0, len(summary))
	for _, d := range summary {
		days = append(days, DayDTO{
			PriceDate:   d.Date.String(),
			Records:     d.Records,
			Instruments: d.Instruments,
			Vendors:     d.Vendors,
		})
	}
	return &WindowDTO{
		Capacity: s.cache.Capacity(),
		Resident: len(days),
		Days:     days,
	}
}

func (s *PriceApplicationService) rejected(source string) {
	if s.metrics != nil {
		s.metrics.PricesRejected.WithLabelValues(source).Inc()
	}
}

func (cmd PublishPriceCommand) toDomain() (domain.InstrumentPrice, error) {
	var date domain.TradingDate
	if strings.TrimSpace(cmd.PriceDate) != "" {
		d, err := domain.ParseTradingDate(strings.TrimSpace(cmd.PriceDate))
		if err != nil {
			return domain.InstrumentPrice{}, domain.NewValidationError("price_date", "must be YYYY-MM-DD")
		}
		date = d
	}

	price, err := decimal.NewFromString(strings.TrimSpace(cmd.Price))
	if err != nil {
		return domain.InstrumentPrice{}, domain.NewValidationError("price", "must be a decimal number")
	}

	return domain.NewInstrumentPrice(cmd.VendorID, cmd.InstrumentID, date, price)
}

func parseQueryDate(date string) (domain.TradingDate, error) {
	if strings.TrimSpace(date) == "" {
		return domain.TradingDate{}, domain.NewValidationError("date", "is required")
	}
	d, err := domain.ParseTradingDate(strings.TrimSpace(date))
	if err != nil {
		return domain.TradingDate{}, domain.NewValidationError("date", "must be YYYY-MM-DD")
	}
	return d, nil
}

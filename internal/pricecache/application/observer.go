package application

import (
	"context"

	"github.com/wyfcoding/pricecache/internal/pricecache/domain"
	"github.com/wyfcoding/pricecache/pkg/logger"
	"github.com/wyfcoding/pricecache/pkg/metrics"
)

// CacheObserver 把窗口变化写入日志与指标
type CacheObserver struct {
	metrics *metrics.Metrics
}

// NewCacheObserver 创建窗口观察者，m 可以为 nil
func NewCacheObserver(m *metrics.Metrics) *CacheObserver {
	return &CacheObserver{metrics: m}
}

var _ domain.Observer = (*CacheObserver)(nil)

// OnAdmit 新交易日进入窗口
func (o *CacheObserver) OnAdmit(date domain.TradingDate) {
	logger.Info(context.Background(), "Trading day admitted", "price_date", date.String())
	if o.metrics != nil {
		o.metrics.DaysAdmitted.Inc()
		o.metrics.DaysResident.Inc()
	}
}

// OnEvict 最早的交易日被淘汰
func (o *CacheObserver) OnEvict(date domain.TradingDate) {
	logger.Info(context.Background(), "Trading day evicted", "price_date", date.String())
	if o.metrics != nil {
		o.metrics.DaysEvicted.Inc()
		o.metrics.DaysResident.Dec()
	}
}

// OnDrop 过旧的报价被丢弃
func (o *CacheObserver) OnDrop(p domain.InstrumentPrice) {
	logger.Debug(context.Background(), "Price dropped: trading day older than window",
		"vendor_id", p.VendorID,
		"instrument_id", p.InstrumentID,
		"price_date", p.PriceDate.String(),
	)
	if o.metrics != nil {
		o.metrics.PricesDropped.Inc()
	}
}

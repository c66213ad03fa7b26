package domain

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
)

// DefaultMaxCachedDays 默认保留的交易日数量
const DefaultMaxCachedDays = 30

// Observer 缓存窗口变化的观察者
// 回调在准入临界区释放之后执行，不得反向调用 Publish 阻塞自身
type Observer interface {
	// 新交易日被准入
	OnAdmit(date TradingDate)
	// 最早的交易日被淘汰
	OnEvict(date TradingDate)
	// 窗口已满且记录日期早于最早交易日，记录被丢弃
	OnDrop(p InstrumentPrice)
}

type noopObserver struct{}

func (noopObserver) OnAdmit(TradingDate)    {}
func (noopObserver) OnEvict(TradingDate)    {}
func (noopObserver) OnDrop(InstrumentPrice) {}

// Option PriceCache 选项
type Option func(*PriceCache)

// WithObserver 设置窗口观察者
func WithObserver(o Observer) Option {
	return func(c *PriceCache) {
		if o != nil {
			c.observer = o
		}
	}
}

// window 交易日窗口的不可变快照
type window struct {
	// 升序
	dates []TradingDate
	days  map[TradingDate]*DualIndex
}

func (w *window) earliest() TradingDate { return w.dates[0] }

// PriceCache 按交易日滚动的报价缓存
// 读者无锁加载窗口快照；只有新交易日的准入与淘汰在 admitMu 下串行执行，
// 同一交易日内的写入由 DualIndex 的细粒度锁保护
type PriceCache struct {
	capacity int
	observer Observer

	admitMu sync.Mutex
	current atomic.Pointer[window]
}

// NewPriceCache 创建缓存，maxCachedDays <= 0 时使用 DefaultMaxCachedDays
func NewPriceCache(maxCachedDays int, opts ...Option) *PriceCache {
	if maxCachedDays <= 0 {
		maxCachedDays = DefaultMaxCachedDays
	}
	c := &PriceCache{
		capacity: maxCachedDays,
		observer: noopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.current.Store(&window{days: make(map[TradingDate]*DualIndex)})
	return c
}

// Capacity 最多保留的交易日数量
func (c *PriceCache) Capacity() int { return c.capacity }

// Publish 发布一条报价
// 流程：
// 1. 校验记录
// 2. 交易日已在窗口内则直接写入
// 3. 否则进入准入临界区：窗口已满时，最早交易日早于新日期则淘汰它，否则静默丢弃
// 4. 写入该交易日的双向索引，同键后写覆盖先写
func (c *PriceCache) Publish(p InstrumentPrice) error {
	if err := p.Validate(); err != nil {
		return err
	}

	idx, ok := c.current.Load().days[p.PriceDate]
	if !ok {
		idx, ok = c.admit(p)
		if !ok {
			return nil
		}
	}
	idx.Record(p)
	return nil
}

// admit 准入记录所属交易日，返回该日索引；被丢弃时 ok 为 false
func (c *PriceCache) admit(p InstrumentPrice) (idx *DualIndex, ok bool) {
	date := p.PriceDate
	var evicted TradingDate

	c.admitMu.Lock()
	w := c.current.Load()
	if idx, ok = w.days[date]; ok {
		c.admitMu.Unlock()
		return idx, true
	}

	dates := w.dates
	if len(dates) >= c.capacity {
		earliest := w.earliest()
		if !earliest.Before(date) {
			c.admitMu.Unlock()
			c.observer.OnDrop(p)
			return nil, false
		}
		evicted = earliest
		dates = dates[1:]
	}

	idx = NewDualIndex(date)
	next := &window{
		dates: insertDate(dates, date),
		days:  make(map[TradingDate]*DualIndex, len(dates)+1),
	}
	for _, d := range dates {
		next.days[d] = w.days[d]
	}
	next.days[date] = idx
	c.current.Store(next)
	c.admitMu.Unlock()

	if !evicted.IsZero() {
		c.observer.OnEvict(evicted)
	}
	c.observer.OnAdmit(date)
	return idx, true
}

// insertDate 返回插入 date 后的新升序切片，不修改入参
func insertDate(dates []TradingDate, date TradingDate) []TradingDate {
	i := sort.Search(len(dates), func(i int) bool { return !dates[i].Before(date) })
	out := make([]TradingDate, 0, len(dates)+1)
	out = append(out, dates[:i]...)
	out = append(out, date)
	out = append(out, dates[i:]...)
	return out
}

// PublishAll 按顺序逐条发布
// 整体不具备原子性；校验失败的元素不影响其他元素，错误带下标合并返回
func (c *PriceCache) PublishAll(prices []InstrumentPrice) error {
	var errs error
	for i, p := range prices {
		if err := c.Publish(p); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("prices[%d]: %w", i, err))
		}
	}
	return errs
}

// InstrumentPrices 某工具在某交易日的全部供应商报价（供应商 ID -> 记录）
// 交易日或工具不存在时返回空映射
func (c *PriceCache) InstrumentPrices(instrumentID string, date TradingDate) map[string]InstrumentPrice {
	idx, ok := c.current.Load().days[date]
	if !ok {
		return map[string]InstrumentPrice{}
	}
	return idx.InstrumentPrices(instrumentID)
}

// VendorPrices 某供应商在某交易日的全部工具报价（工具 ID -> 记录）
// 交易日或供应商不存在时返回空映射
func (c *PriceCache) VendorPrices(vendorID string, date TradingDate) map[string]InstrumentPrice {
	idx, ok := c.current.Load().days[date]
	if !ok {
		return map[string]InstrumentPrice{}
	}
	return idx.VendorPrices(vendorID)
}

// Dates 当前窗口内的交易日，升序
func (c *PriceCache) Dates() []TradingDate {
	w := c.current.Load()
	out := make([]TradingDate, len(w.dates))
	copy(out, w.dates)
	return out
}

// Len 当前窗口内的交易日数量
func (c *PriceCache) Len() int { return len(c.current.Load().dates) }

// Contains 交易日是否在窗口内
func (c *PriceCache) Contains(date TradingDate) bool {
	_, ok := c.current.Load().days[date]
	return ok
}

// DaySummary 单个交易日的概况
type DaySummary struct {
	Date        TradingDate
	Records     int
	Instruments int
	Vendors     int
}

// Summary 窗口内每个交易日的概况，按日期升序
func (c *PriceCache) Summary() []DaySummary {
	w := c.current.Load()
	out := make([]DaySummary, 0, len(w.dates))
	for _, d := range w.dates {
		idx := w.days[d]
		out = append(out, DaySummary{
			Date:        d,
			Records:     idx.Len(),
			Instruments: len(idx.Instruments()),
			Vendors:     len(idx.Vendors()),
		})
	}
	return out
}

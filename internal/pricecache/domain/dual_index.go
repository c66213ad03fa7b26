package domain

import (
	"sort"
	"sync"
)

// priceBucket 同一外层键下的内层映射
type priceBucket struct {
	mu     sync.RWMutex
	prices map[string]InstrumentPrice
}

func (b *priceBucket) snapshot() map[string]InstrumentPrice {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]InstrumentPrice, len(b.prices))
	for k, v := range b.prices {
		out[k] = v
	}
	return out
}

// priceIndex 两层映射：外层键 -> (内层键 -> 报价记录)
// 外层映射与每个内层桶各自持锁，不同外层键的写入互不阻塞
type priceIndex struct {
	mu      sync.RWMutex
	buckets map[string]*priceBucket
}

func newPriceIndex() *priceIndex {
	return &priceIndex{buckets: make(map[string]*priceBucket)}
}

// bucket 获取或创建外层键对应的桶，并发创建时只有一个实例生效
func (idx *priceIndex) bucket(outerKey string) *priceBucket {
	idx.mu.RLock()
	b, ok := idx.buckets[outerKey]
	idx.mu.RUnlock()
	if ok {
		return b
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if b, ok = idx.buckets[outerKey]; ok {
		return b
	}
	b = &priceBucket{prices: make(map[string]InstrumentPrice)}
	idx.buckets[outerKey] = b
	return b
}

// lookup 只读查找，不创建桶
func (idx *priceIndex) lookup(outerKey string) (*priceBucket, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	b, ok := idx.buckets[outerKey]
	return b, ok
}

// get 返回外层键对应内层映射的副本，不存在时返回空映射
func (idx *priceIndex) get(outerKey string) map[string]InstrumentPrice {
	b, ok := idx.lookup(outerKey)
	if !ok {
		return map[string]InstrumentPrice{}
	}
	return b.snapshot()
}

func (idx *priceIndex) keys() []string {
	idx.mu.RLock()
	out := make([]string, 0, len(idx.buckets))
	for k := range idx.buckets {
		out = append(out, k)
	}
	idx.mu.RUnlock()
	sort.Strings(out)
	return out
}

// DualIndex 单个交易日的双向索引
// byInstrument: 工具 ID -> (供应商 ID -> 记录)
// byVendor:     供应商 ID -> (工具 ID -> 记录)
// 两个映射只能通过 Record 一起写入，任何读者都不会只在其中一侧看到某条记录
type DualIndex struct {
	date         TradingDate
	byInstrument *priceIndex
	byVendor     *priceIndex
}

// NewDualIndex 创建指定交易日的空索引
func NewDualIndex(date TradingDate) *DualIndex {
	return &DualIndex{
		date:         date,
		byInstrument: newPriceIndex(),
		byVendor:     newPriceIndex(),
	}
}

// Date 索引所属交易日
func (d *DualIndex) Date() TradingDate { return d.date }

// Record 同时写入两个映射
// 先锁工具桶再锁供应商桶，顺序固定，两次写入都完成后才释放，
// 读者要么看到两侧都更新，要么都未更新
func (d *DualIndex) Record(p InstrumentPrice) {
	ib := d.byInstrument.bucket(p.InstrumentID)
	vb := d.byVendor.bucket(p.VendorID)

	ib.mu.Lock()
	vb.mu.Lock()
	ib.prices[p.VendorID] = p
	vb.prices[p.InstrumentID] = p
	vb.mu.Unlock()
	ib.mu.Unlock()
}

// InstrumentPrices 某工具在该交易日的全部供应商报价（供应商 ID -> 记录）
func (d *DualIndex) InstrumentPrices(instrumentID string) map[string]InstrumentPrice {
	return d.byInstrument.get(instrumentID)
}

// VendorPrices 某供应商在该交易日的全部工具报价（工具 ID -> 记录）
func (d *DualIndex) VendorPrices(vendorID string) map[string]InstrumentPrice {
	return d.byVendor.get(vendorID)
}

// Instruments 已有报价的工具 ID，升序
func (d *DualIndex) Instruments() []string { return d.byInstrument.keys() }

// Vendors 已有报价的供应商 ID，升序
func (d *DualIndex) Vendors() []string { return d.byVendor.keys() }

// Len 记录条数
func (d *DualIndex) Len() int {
	d.byVendor.mu.RLock()
	buckets := make([]*priceBucket, 0, len(d.byVendor.buckets))
	for _, b := range d.byVendor.buckets {
		buckets = append(buckets, b)
	}
	d.byVendor.mu.RUnlock()

	n := 0
	for _, b := range buckets {
		b.mu.RLock()
		n += len(b.prices)
		b.mu.RUnlock()
	}
	return n
}

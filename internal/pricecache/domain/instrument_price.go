package domain

import "github.com/shopspring/decimal"

// InstrumentPrice 报价记录实体
// 代表某个供应商在某个交易日对某个金融工具给出的最新价格。
// 按值传递与存储，构造后不再修改；更新通过写入新记录覆盖同一键下的旧记录完成
type InstrumentPrice struct {
	// 供应商 ID
	VendorID string `json:"vendor_id"`
	// 金融工具 ID
	InstrumentID string `json:"instrument_id"`
	// 交易日
	PriceDate TradingDate `json:"price_date"`
	// 价格，不做范围校验
	Price decimal.Decimal `json:"price"`
}

// NewInstrumentPrice 创建报价记录
// vendorID、instrumentID 为空或 priceDate 缺失时返回 *ValidationError
func NewInstrumentPrice(vendorID, instrumentID string, priceDate TradingDate, price decimal.Decimal) (InstrumentPrice, error) {
	p := InstrumentPrice{
		VendorID:     vendorID,
		InstrumentID: instrumentID,
		PriceDate:    priceDate,
		Price:        price,
	}
	if err := p.Validate(); err != nil {
		return InstrumentPrice{}, err
	}
	return p, nil
}

// Validate 校验记录，字面量构造的记录在发布前也会经过这里
// ID 按原样作为不透明键使用，只要求非空
func (p InstrumentPrice) Validate() error {
	if p.VendorID == "" {
		return NewValidationError("vendor_id", "is required")
	}
	if p.InstrumentID == "" {
		return NewValidationError("instrument_id", "is required")
	}
	if p.PriceDate.IsZero() {
		return NewValidationError("price_date", "is required")
	}
	return nil
}

// Equal 结构相等，价格按数值比较
func (p InstrumentPrice) Equal(o InstrumentPrice) bool {
	return p.VendorID == o.VendorID &&
		p.InstrumentID == o.InstrumentID &&
		p.PriceDate == o.PriceDate &&
		p.Price.Equal(o.Price)
}

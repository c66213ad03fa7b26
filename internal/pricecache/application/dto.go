package application

import "github.com/wyfcoding/pricecache/internal/pricecache/domain"

// PublishPriceCommand 发布报价命令
// 字段保持传输层收到的原始字符串，由应用服务统一解析
type PublishPriceCommand struct {
	VendorID     string `json:"vendor_id"`
	InstrumentID string `json:"instrument_id"`
	PriceDate    string `json:"price_date"` // YYYY-MM-DD
	Price        string `json:"price"`      // 十进制字符串
}

// PriceDTO 报价记录 DTO
type PriceDTO struct {
	VendorID     string `json:"vendor_id"`
	InstrumentID string `json:"instrument_id"`
	PriceDate    string `json:"price_date"`
	Price        string `json:"price"`
}

// InstrumentPricesDTO 某工具在某交易日的各供应商报价
type InstrumentPricesDTO struct {
	InstrumentID string              `json:"instrument_id"`
	PriceDate    string              `json:"price_date"`
	Prices       map[string]PriceDTO `json:"prices"` // 供应商 ID -> 报价
}

// VendorPricesDTO 某供应商在某交易日的各工具报价
type VendorPricesDTO struct {
	VendorID  string              `json:"vendor_id"`
	PriceDate string              `json:"price_date"`
	Prices    map[string]PriceDTO `json:"prices"` // 工具 ID -> 报价
}

// DayDTO 单个交易日概况
type DayDTO struct {
	PriceDate   string `json:"price_date"`
	Records     int    `json:"records"`
	Instruments int    `json:"instruments"`
	Vendors     int    `json:"vendors"`
}

// WindowDTO 缓存窗口概况
type WindowDTO struct {
	Capacity int      `json:"capacity"`
	Resident int      `json:"resident"`
	Days     []DayDTO `json:"days"`
}

func toPriceDTO(p domain.InstrumentPrice) PriceDTO {
	return PriceDTO{
		VendorID:     p.VendorID,
		InstrumentID: p.InstrumentID,
		PriceDate:    p.PriceDate.String(),
		Price:        p.Price.String(),
	}
}

func toPriceDTOs(prices map[string]domain.InstrumentPrice) map[string]PriceDTO {
	out := make(map[string]PriceDTO, len(prices))
	for k, p := range prices {
		out[k] = toPriceDTO(p)
	}
	return out
}

package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/pricecache/internal/pricecache/application"
	"github.com/wyfcoding/pricecache/internal/pricecache/domain"
	"github.com/wyfcoding/pricecache/pkg/logger"
	"go.uber.org/multierr"
)

// Handler HTTP 处理器
// 负责报价发布与查询相关的 HTTP 请求
type Handler struct {
	priceService *application.PriceApplicationService // 报价应用服务
}

// NewHandler 创建 HTTP 处理器实例
func NewHandler(priceService *application.PriceApplicationService) *Handler {
	return &Handler{
		priceService: priceService,
	}
}

// BatchPublishRequest 批量发布请求
type BatchPublishRequest struct {
	Prices []application.PublishPriceCommand `json:"prices"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Error  string   `json:"error"`
	Errors []string `json:"errors,omitempty"`
}

// PublishPrice 发布单条报价
// @Summary 发布报价
// @Tags Prices
// @Accept json
// @Success 202
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/prices [post]
func (h *Handler) PublishPrice(c *gin.Context) {
	ctx := c.Request.Context()

	var cmd application.PublishPriceCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		logger.Warn(ctx, "Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.priceService.PublishPrice(ctx, application.SourceHTTP, cmd); err != nil {
		h.writeError(c, err)
		return
	}

	c.Status(http.StatusAccepted)
}

// PublishPrices 批量发布报价
// 合法的元素照常写入；存在非法元素时返回 400 并逐条列出错误
// @Summary 批量发布报价
// @Tags Prices
// @Accept json
// @Success 202
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/prices/batch [post]
func (h *Handler) PublishPrices(c *gin.Context) {
	ctx := c.Request.Context()

	var req BatchPublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn(ctx, "Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	err := h.priceService.PublishPrices(ctx, application.SourceHTTP, req.Prices)
	if err == nil {
		c.Status(http.StatusAccepted)
		return
	}

	errs := multierr.Errors(err)
	details := make([]string, 0, len(errs))
	for _, e := range errs {
		details = append(details, e.Error())
	}
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:  "some prices were rejected",
		Errors: details,
	})
}

// GetInstrumentPrices 查询工具在某交易日的各供应商报价
// @Summary 按工具查询报价
// @Tags Prices
// @Param instrument_id path string true "工具 ID"
// @Param date query string true "交易日 YYYY-MM-DD"
// @Success 200 {object} application.InstrumentPricesDTO
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/prices/instruments/{instrument_id} [get]
func (h *Handler) GetInstrumentPrices(c *gin.Context) {
	dto, err := h.priceService.GetInstrumentPrices(c.Request.Context(), c.Param("instrument_id"), c.Query("date"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": dto,
	})
}

// GetVendorPrices 查询供应商在某交易日的各工具报价
// @Router /api/v1/prices/vendors/{vendor_id} [get]
func (h *Handler) GetVendorPrices(c *gin.Context) {
	dto, err := h.priceService.GetVendorPrices(c.Request.Context(), c.Param("vendor_id"), c.Query("date"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": dto,
	})
}

// GetWindow 当前缓存窗口
// @Router /api/v1/prices/window [get]
func (h *Handler) GetWindow(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"data": h.priceService.GetWindow(c.Request.Context()),
	})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	if domain.IsValidationError(err) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	logger.Error(c.Request.Context(), "Request failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

// RegisterRoutes 注册路由
// publishMiddlewares 只作用于发布接口（如限流）
func (h *Handler) RegisterRoutes(router *gin.Engine, publishMiddlewares ...gin.HandlerFunc) {
	v1 := router.Group("/api/v1/prices")
	{
		publish := v1.Group("", publishMiddlewares...)
		publish.POST("", h.PublishPrice)
		publish.POST("/batch", h.PublishPrices)

		v1.GET("/instruments/:instrument_id", h.GetInstrumentPrices)
		v1.GET("/vendors/:vendor_id", h.GetVendorPrices)
		v1.GET("/window", h.GetWindow)
	}
}

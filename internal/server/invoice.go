package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/tablebill/internal/invoice/domain"
	obslogger "github.com/smallbiznis/tablebill/internal/observability/logger"
	"github.com/smallbiznis/tablebill/pkg/db/pagination"
	"go.uber.org/zap"
)

func (s *Server) GetRestaurant(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	overview, err := s.restaurantSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": overview})
}

func (s *Server) ListRestaurantInvoices(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), invoicedomain.ListInvoiceRequest{
		RestaurantID: id,
		Pagination:   page,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Invoices, "page_info": resp.PageInfo})
}

func (s *Server) CreateExtraTableInvoice(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req invoicedomain.CreateExtraTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}
	req.RestaurantID = id

	view, err := s.invoiceSvc.CreateExtraTableInvoice(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.notify(c, view.Invoice)

	c.JSON(http.StatusCreated, gin.H{"data": view})
}

func (s *Server) CreateRenewalInvoice(c *gin.Context) {
	s.createTermInvoice(c, s.invoiceSvc.CreateRenewalInvoice)
}

func (s *Server) CreateExtensionInvoice(c *gin.Context) {
	s.createTermInvoice(c, s.invoiceSvc.CreateExtensionInvoice)
}

func (s *Server) createTermInvoice(
	c *gin.Context,
	create func(ctx context.Context, req invoicedomain.CreateTermRequest) (invoicedomain.InvoiceView, error),
) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req invoicedomain.CreateTermRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}
	req.RestaurantID = id

	view, err := create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.notify(c, view.Invoice)

	c.JSON(http.StatusCreated, gin.H{"data": view})
}

// notify sends the payment link; failures are logged and never fail the request.
func (s *Server) notify(c *gin.Context, inv invoicedomain.Invoice) {
	if err := s.invoiceSvc.Notify(c.Request.Context(), inv); err != nil {
		obslogger.WithContext(c.Request.Context(), s.log).Warn("payment link notification failed",
			zap.String("invoice_id", inv.ID.String()),
			zap.Error(err),
		)
	}
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	item, err := s.invoiceSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) CancelInvoice(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	result, err := s.paymentSvc.Cancel(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) RunSchedulerJob(c *gin.Context) {
	if s.scheduler == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	result, err := s.scheduler.Run(c.Request.Context(), c.Param("job"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

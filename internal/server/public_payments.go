package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obslogger "github.com/smallbiznis/tablebill/internal/observability/logger"
	paymentdomain "github.com/smallbiznis/tablebill/internal/payment/domain"
	"go.uber.org/zap"
)

func (s *Server) RegisterPublicRoutes() {
	public := s.engine.Group("/public/invoices")

	public.GET("/:token", s.RateLimit("public_status"), s.GetPublicInvoiceStatus)
	public.POST("/:token/checkout", s.RateLimit("public_checkout"), s.CreatePublicCheckoutSession)
	public.POST("/:token/verify", s.RateLimit("public_verify"), s.VerifyPublicPayment)
}

func (s *Server) GetPublicInvoiceStatus(c *gin.Context) {
	status, err := s.publicSvc.GetInvoicePublicStatus(c.Request.Context(), c.Param("token"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": status})
}

func (s *Server) CreatePublicCheckoutSession(c *gin.Context) {
	session, err := s.publicSvc.CreateCheckoutSession(c.Request.Context(), c.Param("token"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": session})
}

// VerifyPublicPayment settles an invoice from the checkout callback. Once the
// request is accepted, settlement runs to completion even if the client goes
// away.
func (s *Server) VerifyPublicPayment(c *gin.Context) {
	var req paymentdomain.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}
	req.Token = strings.TrimSpace(c.Param("token"))

	ctx := context.WithoutCancel(c.Request.Context())
	result, err := s.paymentSvc.Verify(ctx, req)
	if err != nil {
		obslogger.WithContext(ctx, s.log).Info("payment verification rejected",
			zap.String("order_id", req.OrderID),
			zap.String("payment_id", req.PaymentID),
			zap.Error(err),
		)
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

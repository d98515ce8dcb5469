package razorpay

import (
	"github.com/smallbiznis/tablebill/internal/gateway"
	"go.uber.org/zap"
)

// Module wires the Razorpay client as the process gateway.
var Module = gateway.Module(func(keyID, keySecret string, log *zap.Logger) gateway.Gateway {
	return New(keyID, keySecret, log)
})

package handlers

import (
	"net/http"
	"time"

	"agrowatch/services/otp"
	"agrowatch/utils"

	"github.com/gin-gonic/gin"
)

// StatusHandler exposes operational endpoints: which verification
// providers are configured, and process health.
type StatusHandler struct {
	OTP otp.Service
}

func NewStatusHandler(otpSvc otp.Service) *StatusHandler {
	return &StatusHandler{OTP: otpSvc}
}

// ProviderStatusHandler handles GET /api/otp/status. Only configured
// flags are reported, never credentials.
func (h *StatusHandler) ProviderStatusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": h.OTP.ProviderStatus()})
}

// HealthHandler handles GET /health.
func (h *StatusHandler) HealthHandler(c *gin.Context) {
	status := utils.GetHealthStatus()
	code := http.StatusOK
	state := "ok"
	if !status.OK() {
		code = http.StatusServiceUnavailable
		state = "degraded"
	}
	c.JSON(code, gin.H{
		"status":  state,
		"service": "agrowatch-auth",
		"time":    time.Now().UTC(),
		"mongo":   status.Mongo,
		"redis":   status.Redis,
	})
}

package inbound

import (
	"github.com/shandysiswandi/mailotp/internal/pkg/router"
)

func RegisterHTTPEndpoint(r *router.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	r.POST("/api/v1/otp/issue", end.Issue)

	r.POST("/api/v1/otp/verification", end.StartVerification)
	r.GET("/api/v1/otp/verification", end.VerificationStatus)
	r.DELETE("/api/v1/otp/verification", end.CancelVerification)
	r.POST("/api/v1/otp/verification/code", end.SubmitCode)
}

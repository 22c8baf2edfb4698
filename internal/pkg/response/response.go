package response

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"
)

// Success mirrors the donor's envelope for 2xx responses.
func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

// errorBody is the §7 error envelope: {"success": false, "detail": "..."}.
type errorBody struct {
	Success bool   `json:"success"`
	Detail  string `json:"detail"`
	Code    int    `json:"code,omitempty"`
}

// Error writes the error envelope with the HTTP status the error kind
// requires; this diverges from the donor's flatten-everything-to-200
// convention because §7 mandates differentiated status codes.
func Error(c *gin.Context, status int, code int, detail string) {
	c.JSON(status, errorBody{Success: false, Detail: detail, Code: code})
}

// RetryAfter sets the Retry-After header for 429 responses.
func RetryAfter(c *gin.Context, seconds int) {
	if seconds < 1 {
		seconds = 1
	}
	c.Header("Retry-After", strconv.Itoa(seconds))
}

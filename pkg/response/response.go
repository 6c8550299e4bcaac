package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess     = 0
	CodeParamError  = 400
	CodeServerError = 500
)

// Business codes, one per ledger error kind.
const (
	CodeResourceNotFound     = 1001
	CodeInvalidCredentials   = 1002
	CodeAccountBlocked       = 1003
	CodeInvalidAmount        = 1004
	CodeInsufficientFunds    = 1005
	CodeInvalidDestination   = 1006
	CodeDestinationNotFound  = 1007
	CodeSameAccount          = 1008
	CodeInvalidPinFormat     = 1009
	CodeStoreUnavailable     = 1010
	CodeInvalidAccountNumber = 1011
	CodeAccountExists        = 1012
	CodeRequestInProgress    = 1013
)

type Response struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Fail writes an error envelope with a real HTTP status, so clients can
// branch on either the status or the stable kind.
func Fail(c *gin.Context, status, code int, kind, message string) {
	c.AbortWithStatusJSON(status, Response{
		Code:    code,
		Kind:    kind,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Fail(c, http.StatusBadRequest, CodeParamError, "INVALID_REQUEST", message)
}

func ServerError(c *gin.Context, message string) {
	Fail(c, http.StatusInternalServerError, CodeServerError, "INTERNAL", message)
}

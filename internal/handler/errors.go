package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"atmledger/internal/service"
	"atmledger/pkg/money"
	"atmledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type errorMapping struct {
	status int
	code   int
}

var kindMappings = map[service.Kind]errorMapping{
	service.KindNotFound:             {http.StatusNotFound, response.CodeResourceNotFound},
	service.KindInvalidCredentials:   {http.StatusUnauthorized, response.CodeInvalidCredentials},
	service.KindAccountBlocked:       {http.StatusForbidden, response.CodeAccountBlocked},
	service.KindInvalidAmount:        {http.StatusBadRequest, response.CodeInvalidAmount},
	service.KindInsufficientFunds:    {http.StatusConflict, response.CodeInsufficientFunds},
	service.KindInvalidDestination:   {http.StatusBadRequest, response.CodeInvalidDestination},
	service.KindDestinationNotFound:  {http.StatusNotFound, response.CodeDestinationNotFound},
	service.KindSameAccount:          {http.StatusBadRequest, response.CodeSameAccount},
	service.KindInvalidPinFormat:     {http.StatusBadRequest, response.CodeInvalidPinFormat},
	service.KindStoreUnavailable:     {http.StatusServiceUnavailable, response.CodeStoreUnavailable},
	service.KindInvalidAccountNumber: {http.StatusBadRequest, response.CodeInvalidAccountNumber},
	service.KindAccountExists:        {http.StatusConflict, response.CodeAccountExists},
	service.KindInvalidRequest:       {http.StatusBadRequest, response.CodeParamError},
}

// writeError renders a ledger error. Only the kind and the public message
// reach the client; causes stay in the logs.
func writeError(c *gin.Context, err error) {
	kind := service.KindOf(err)
	m, ok := kindMappings[kind]
	if !ok {
		_ = c.Error(err)
		response.ServerError(c, "internal error")
		return
	}
	if kind == service.KindStoreUnavailable {
		_ = c.Error(err)
	}
	response.Fail(c, m.status, m.code, string(kind), service.PublicMessage(err))
}

// writeBindError renders a request decoding failure without echoing the body.
func writeBindError(c *gin.Context, err error) {
	if errors.Is(err, money.ErrTooManyDecimals) || errors.Is(err, money.ErrOutOfRange) || errors.Is(err, money.ErrNotANumber) {
		response.Fail(c, http.StatusBadRequest, response.CodeInvalidAmount,
			string(service.KindInvalidAmount), "amount must be a number with at most 2 decimals")
		return
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
		}
		response.ParamError(c, "invalid fields: "+strings.Join(fields, ", "))
		return
	}
	response.ParamError(c, "malformed request body")
}

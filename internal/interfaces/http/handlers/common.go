// Package handlers holds the gin handlers of the public HTTP API.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/EquityLens/pkg/errors"
	"github.com/turtacn/EquityLens/pkg/types/common"
)

const maxPageSize = 100

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// respondError maps an application error onto its HTTP status.  Server-side
// failures are masked; the typed code still tells the caller what class of
// failure occurred.
func respondError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := errors.HTTPStatusForCode(code)

	body := errorBody{Code: code.String()}
	if appErr, ok := err.(*errors.AppError); ok && status < http.StatusInternalServerError {
		body.Message = appErr.Message
		body.Detail = appErr.Detail
	} else {
		body.Message = errors.DefaultMessageForCode(code)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

// parsePagination reads page/page_size query parameters with bounds applied.
func parsePagination(c *gin.Context) common.Pagination {
	page := common.Pagination{Page: 1, PageSize: 20}
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		page.Page = v
	}
	if v, err := strconv.Atoi(c.Query("page_size")); err == nil && v > 0 {
		if v > maxPageSize {
			v = maxPageSize
		}
		page.PageSize = v
	}
	return page
}

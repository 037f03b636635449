package api

import (
	"errors"
	"fmt"
	"net/http"

	"order-gateway/internal/apperr"
	"order-gateway/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// fieldError is one entry of a validation error response
type fieldError struct {
	Loc []string `json:"loc"`
	Msg string   `json:"msg"`
	Typ string   `json:"type"`
}

// errorHandler renders the last error recorded on the context
func errorHandler(debug bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		last := c.Errors.Last()
		status, body := translateError(last, debug)
		if status >= http.StatusInternalServerError {
			util.GetLogger().Error("Request failed",
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
				zap.Error(last.Err))
		}
		c.AbortWithStatusJSON(status, body)
	}
}

func translateError(ginErr *gin.Error, debug bool) (int, gin.H) {
	err := ginErr.Err

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return http.StatusBadRequest, gin.H{"detail": validationDetail(verrs)}
	}
	if ginErr.IsType(gin.ErrorTypeBind) {
		return http.StatusBadRequest, gin.H{"detail": []fieldError{{
			Loc: []string{"body"},
			Msg: err.Error(),
			Typ: "value_error.parse",
		}}}
	}

	if appErr, ok := apperr.As(err); ok {
		body := gin.H{"error": appErr.Message}
		for k, v := range appErr.Fields {
			body[k] = v
		}
		if debug && appErr.Detail != "" {
			body["detail"] = appErr.Detail
		}
		return appErr.Status, body
	}

	body := gin.H{"error": "internal error"}
	if debug {
		body["detail"] = err.Error()
	}
	return http.StatusInternalServerError, body
}

func validationDetail(verrs validator.ValidationErrors) []fieldError {
	out := make([]fieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fieldError{
			Loc: []string{"body", fe.Field()},
			Msg: validationMessage(fe),
			Typ: "value_error." + fe.Tag(),
		})
	}
	return out
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field required"
	case "phone":
		return "wrong phone format"
	case "cardnumber":
		return apperr.ErrCardNumber.Message
	case "email":
		return apperr.ErrEmailFormat.Message
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "url":
		return "invalid url"
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

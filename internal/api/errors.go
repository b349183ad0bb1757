package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func init() {
	// report form/uri names in validation errors instead of Go field names
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"form", "uri", "json"} {
				name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
				if name != "" && name != "-" {
					return name
				}
			}
			return f.Name
		})
	}
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeErr(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": toAPIError(status, err)})
}

func toAPIError(status int, err error) apiError {
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status == http.StatusBadGateway:
		return apiError{Code: "IM-API-5020", Message: "Upstream service unavailable. Retry shortly."}
	case status >= 500:
		switch {
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{Code: "IM-DB-5001", Message: "Database schema is not initialized. Run migrations and retry."}
		case strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{Code: "IM-DB-5002", Message: "A backing service is unreachable. Check local services and retry."}
		}
		return apiError{Code: "IM-API-5000", Message: "Internal server error. Please retry or check service logs."}
	case status == http.StatusNotFound:
		return apiError{Code: "IM-API-4004", Message: "Requested transaction was not found."}
	case status == http.StatusConflict:
		return apiError{Code: "IM-API-4009", Message: "Transaction is already enqueued or processed."}
	case status == http.StatusRequestEntityTooLarge:
		return apiError{Code: "IM-API-4013", Message: "Uploaded document is too large."}
	}

	// 4xx keeps user-safe validation context only
	msg := "Invalid request. Check inputs and retry."
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		parts := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			parts = append(parts, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
		}
		msg = "Invalid request: " + strings.Join(parts, "; ") + "."
	} else if strings.Contains(raw, "pdf") {
		msg = "Uploaded file is not a readable PDF document."
	}
	return apiError{Code: "IM-API-4001", Message: msg}
}

package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"breederhub/api/internal/api/middleware"
	"breederhub/api/internal/models"
	"breederhub/api/internal/services"
	"breederhub/api/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Validation errors name fields by their JSON key.
func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

// statusFor maps the service error taxonomy onto HTTP statuses. Anything else is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"error": ...}. Internal errors are logged and replaced by fallback.
func respondError(c *gin.Context, err error, fallback string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		log.Printf("ERROR: %s: %v", fallback, err)
		c.JSON(status, gin.H{"error": fallback})
		return
	}
	c.JSON(status, gin.H{"error": services.PublicMessage(err)})
}

// principalOrAbort returns the caller. Routes using it sit behind AuthMiddleware, so a miss is
// answered with 401 rather than trusted.
func principalOrAbort(c *gin.Context) (*models.Principal, bool) {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return nil, false
	}
	return principal, true
}

// parseOptionalID parses a client-supplied ID. Empty input yields the zero ID so the service
// reports the missing field.
func parseOptionalID(raw, field string) (utils.SixID, error) {
	if raw == "" {
		return utils.SixID{}, nil
	}
	id, err := utils.ParseSixID(raw)
	if err != nil {
		return utils.SixID{}, fmt.Errorf("%w: Invalid %s", services.ErrValidation, field)
	}
	return id, nil
}

// pathID parses the :name route parameter, answering 400 on failure.
func pathID(c *gin.Context, name, what string) (utils.SixID, bool) {
	id, err := utils.ParseSixID(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid %s ID format", what)})
		return utils.SixID{}, false
	}
	return id, true
}

// bindJSON decodes the body into dst and runs its binding rules, answering 400 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Required fields missing: " + strings.Join(fields, ", ")})
		return false
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
	return false
}

func queryInt(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"dogovor/internal/apperr"
)

// writeError переводит ошибку сервиса в HTTP-ответ
func writeError(c *gin.Context, log *zap.Logger, err error) {
	var ve *apperr.ValidationError
	var ce *apperr.ConfigError
	var se *apperr.StoreError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"errors": ve.Errors})
	case errors.As(err, &ce):
		c.JSON(http.StatusNotFound, gin.H{"error": ce.Error()})
	case errors.Is(err, apperr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
	case errors.As(err, &se) && se.Conflict():
		c.JSON(http.StatusConflict, gin.H{
			"errors": []apperr.FieldError{apperr.Field(se.Code, "", se.Err.Error())},
		})
	default:
		log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

// bindJSON — ShouldBindJSON с ошибками валидатора в виде []FieldError
func bindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]apperr.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, apperr.Field(apperr.ErrTypeMismatch, fe.Field(), "failed '"+fe.Tag()+"' check"))
		}
		c.JSON(http.StatusBadRequest, gin.H{"errors": out})
		return false
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
	return false
}

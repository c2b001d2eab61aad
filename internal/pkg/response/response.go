package response

import (
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
)

// OK sends a 200 response. Arrays/slices are wrapped in {data: [...]}.
func OK(c *gin.Context, data interface{}) {
	if data != nil {
		v := reflect.ValueOf(data)
		if v.Kind() == reflect.Slice {
			c.JSON(http.StatusOK, gin.H{"data": data})
			return
		}
	}
	c.JSON(http.StatusOK, data)
}

// Created sends a 201 response.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest sends a 400 error response with a stable error code.
func BadRequest(c *gin.Context, code string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"ok": false, "code": http.StatusBadRequest, "error": code})
}

// Unauthorized sends a 401 error response.
func Unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "code": http.StatusUnauthorized, "error": "unauthorized"})
}

// Forbidden sends a 403 error response.
func Forbidden(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"ok": false, "code": http.StatusForbidden, "error": "forbidden"})
}

// NotFound sends a 404 error response.
func NotFound(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"ok": false, "code": http.StatusNotFound, "error": "not_found"})
}

// MethodNotAllowed sends a 405 error response.
func MethodNotAllowed(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusMethodNotAllowed, gin.H{"ok": false, "code": http.StatusMethodNotAllowed, "error": "method_not_allowed"})
}

// Conflict sends a 409 error response.
func Conflict(c *gin.Context, code string) {
	c.AbortWithStatusJSON(http.StatusConflict, gin.H{"ok": false, "code": http.StatusConflict, "error": code})
}

// UnprocessableEntity sends a 422 error response.
func UnprocessableEntity(c *gin.Context, code string) {
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"ok": false, "code": http.StatusUnprocessableEntity, "error": code})
}

// InternalError sends a 500 error response.
func InternalError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"ok": false, "code": http.StatusInternalServerError, "error": err.Error()})
}

// Package handlers – request binding.
//
// bindJSON decodes and validates a request body. Validator failures become a
// single apperr.Validation listing every failing field; any other decode
// failure (empty body, malformed JSON, wrong types, oversized body) is
// malformed input.
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-todo-backend/internal/apperr"
	"github.com/tbourn/go-todo-backend/internal/validation"
)

// bindJSON binds the body into dst. On failure it attaches the error, aborts
// and returns false.
func bindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	if fields, ok := validation.FieldErrors(err); ok {
		fail(c, apperr.Validation(fields))
		return false
	}
	fail(c, apperr.BadInput("request body: %v", err))
	return false
}

// Package handlers – response helpers.
//
// Success bodies are written with ok/created/noContent. Errors go through
// fail, which hands them to middleware.Errors; see middleware.ErrorResponse
// for the error body.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// fail attaches err for the error mapper and stops the chain.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ok writes a 200 JSON response.
func ok(c *gin.Context, body any) {
	c.JSON(http.StatusOK, body)
}

// created writes a 201 JSON response with a Location header.
func created(c *gin.Context, location string, body any) {
	if location != "" {
		c.Header("Location", location)
	}
	c.JSON(http.StatusCreated, body)
}

// noContent writes an HTTP 204 No Content response.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

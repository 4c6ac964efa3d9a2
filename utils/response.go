package utils

import "github.com/gin-gonic/gin"

// Fail writes the error body shared by every endpoint: { "message": ... }.
// Messages are short and human readable; internals never leak into them.
func Fail(ctx *gin.Context, status int, message string) {
	ctx.JSON(status, gin.H{"message": message})
}

// FailPreview writes the preview endpoint's error shape: { "error": ... }.
func FailPreview(ctx *gin.Context, status int, message string) {
	ctx.JSON(status, gin.H{"error": message})
}

package handlers

import "github.com/gin-gonic/gin"

func successResponse(data any) gin.H {
	return gin.H{"status": "success", "data": data}
}

func errorResponse(message string) gin.H {
	return gin.H{"status": "error", "error": message}
}

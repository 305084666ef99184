package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (app *App) CheckHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Control Plane API is running!",
	})
}

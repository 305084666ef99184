package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type storeTokenRequest struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// StoreUserToken encrypts and stores the user's GitHub token, creating the
// user row on first contact.
func (app *App) StoreUserToken(c *gin.Context) {
	var req storeTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}
	if req.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Missing token in request body"})
		return
	}

	if app.Cipher == nil {
		app.Logger.Error("token storage refused: encryption key not configured")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to store token"})
		return
	}

	encrypted, err := app.Cipher.Encrypt(req.Token)
	if err != nil {
		app.Logger.Error("failed to encrypt token", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to store token"})
		return
	}

	username := req.Username
	if username == "" {
		username = "unknown"
	}

	userID, err := app.Store.UpsertUserToken(c.Request.Context(), app.userID(c), username, encrypted)
	if err != nil {
		app.Logger.Error("failed to store token", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to store token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Token stored securely",
		"user_id": userID,
	})
}

// DeleteUserToken clears the stored token; the user row itself stays.
func (app *App) DeleteUserToken(c *gin.Context) {
	if err := app.Store.ClearUserToken(c.Request.Context(), app.userID(c)); err != nil {
		app.Logger.Error("failed to delete token", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to delete token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Token removed"})
}

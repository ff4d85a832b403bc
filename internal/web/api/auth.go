package api

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"techhome/auth"
	"techhome/internal/logging"
	"techhome/internal/web/middleware"
	"techhome/internal/web/models"
)

func RegisterAuthRoutes(router *gin.Engine, authModule *auth.AuthModule, middlewareManager *middleware.MiddlewareManager, dbConn *pgxpool.Pool) {
	r := router.Group("/api/auth")
	{
		r.POST("/register", func(c *gin.Context) {
			var req models.RegisterRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(400, gin.H{"error": "Invalid request"})
				return
			}
			if !auth.IsValidUsername(req.Username) {
				c.JSON(400, gin.H{"error": "Username must be 3-20 characters and contain only letters, numbers, and underscores"})
				return
			}
			if !auth.IsValidEmail(req.Email) {
				c.JSON(400, gin.H{"error": "Invalid email address"})
				return
			}
			if !auth.IsValidPassword(req.Password) {
				c.JSON(400, gin.H{"error": "Password must be at least 8 characters and contain at least one letter and one number"})
				return
			}

			userID, tokens, err := authModule.Register(c, req.Username, req.Email, req.Password, req.FirstName, req.LastName)
			switch {
			case errors.Is(err, auth.ErrUsernameTaken), errors.Is(err, auth.ErrEmailTaken):
				c.JSON(409, gin.H{"error": err.Error()})
				return
			case err != nil:
				clog := logging.Component("api")
				clog.Error().Err(err).Msg("registration failed")
				c.JSON(500, gin.H{"error": "Registration failed"})
				return
			}

			c.JSON(201, gin.H{
				"message":       "User registered successfully",
				"user_id":       userID,
				"access_token":  tokens.AccessToken,
				"refresh_token": tokens.RefreshToken,
			})
		})

		r.POST("/login", func(c *gin.Context) {
			var req models.LoginRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(400, gin.H{"error": "Invalid request"})
				return
			}
			identity := req.Username
			if identity == "" {
				identity = req.Email
			}
			if identity == "" {
				c.JSON(400, gin.H{"error": "Either username or email is required"})
				return
			}
			if req.Password == "" {
				c.JSON(400, gin.H{"error": "Password is required"})
				return
			}

			user, tokens, err := authModule.Login(c, identity, req.Password)
			switch {
			case errors.Is(err, auth.ErrInvalidCredentials):
				c.JSON(401, gin.H{"error": "Invalid credentials"})
				return
			case errors.Is(err, auth.ErrAccountDisabled):
				c.JSON(403, gin.H{"error": "Account is disabled"})
				return
			case err != nil:
				clog := logging.Component("api")
				clog.Error().Err(err).Msg("login failed")
				c.JSON(500, gin.H{"error": "Login failed"})
				return
			}

			c.JSON(200, gin.H{
				"message":       "Login successful",
				"user_id":       user.ID,
				"username":      user.Username,
				"access_token":  tokens.AccessToken,
				"refresh_token": tokens.RefreshToken,
			})
		})

		r.POST("/refresh", func(c *gin.Context) {
			var req models.RefreshRequest
			if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
				c.JSON(400, gin.H{"error": "Refresh token required"})
				return
			}
			accessToken, err := authModule.Refresh(c, req.RefreshToken)
			if err != nil {
				c.JSON(401, gin.H{"error": "Invalid token"})
				return
			}
			c.JSON(200, gin.H{"access_token": accessToken})
		})

		r.POST("/initialize-admin", func(c *gin.Context) {
			var req models.RegisterRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(400, gin.H{"error": "Invalid request"})
				return
			}
			userID, err := authModule.InitializeAdmin(c, req.Username, req.Email, req.Password)
			if err != nil {
				c.JSON(403, gin.H{"error": err.Error()})
				return
			}
			c.JSON(201, gin.H{
				"message": "Admin user initialized successfully",
				"user_id": userID,
			})
		})
	}

	protected := router.Group("/api/auth")
	protected.Use(middlewareManager.RequireAuth())
	{
		protected.POST("/logout", func(c *gin.Context) {
			var req models.LogoutRequest
			if err := c.ShouldBindJSON(&req); err == nil && req.RefreshToken != "" {
				if err := authModule.Logout(c, req.RefreshToken); err != nil {
					clog := logging.Component("api")
					clog.Warn().Err(err).Msg("failed to revoke refresh token")
				}
			}
			c.JSON(200, gin.H{"message": "Logout successful"})
		})

		protected.POST("/logout-all", func(c *gin.Context) {
			userID := c.GetInt("user_id")
			if err := authModule.LogoutAll(c, userID); err != nil {
				clog := logging.Component("api")
				clog.Warn().Err(err).Int("user_id", userID).Msg("logout-all failed")
				c.JSON(500, gin.H{"error": "Logout failed"})
				return
			}
			c.JSON(200, gin.H{"message": "Logged out from all devices"})
		})

		protected.GET("/me", func(c *gin.Context) {
			user, err := authModule.GetUser(c, c.GetInt("user_id"))
			if err != nil {
				c.JSON(404, gin.H{"error": "User not found"})
				return
			}
			c.JSON(200, user)
		})

		protected.PATCH("/me", func(c *gin.Context) {
			userID := c.GetInt("user_id")
			var req models.UpdateProfileRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(400, gin.H{"error": "Invalid request"})
				return
			}

			if req.Email != nil {
				if !auth.IsValidEmail(*req.Email) {
					c.JSON(400, gin.H{"error": "Invalid email address"})
					return
				}
				var taken bool
				if err := dbConn.QueryRow(c,
					"SELECT EXISTS(SELECT 1 FROM users WHERE email = $1 AND id != $2)", *req.Email, userID).Scan(&taken); err == nil && taken {
					c.JSON(409, gin.H{"error": "Email already in use"})
					return
				}
			}

			if req.CurrentPassword != nil && req.NewPassword != nil {
				if !auth.IsValidPassword(*req.NewPassword) {
					c.JSON(400, gin.H{"error": "New password must be at least 8 characters and contain at least one letter and one number"})
					return
				}
				if err := authModule.ChangePassword(c, userID, *req.CurrentPassword, *req.NewPassword); err != nil {
					c.JSON(401, gin.H{"error": "Current password is incorrect"})
					return
				}
			}

			_, err := dbConn.Exec(c,
				`UPDATE users SET
					first_name = COALESCE($1, first_name),
					last_name  = COALESCE($2, last_name),
					email      = COALESCE($3, email),
					updated_at = NOW()
				WHERE id = $4`,
				req.FirstName, req.LastName, req.Email, userID)
			if err != nil {
				clog := logging.Component("api")
				clog.Error().Err(err).Int("user_id", userID).Msg("profile update failed")
				c.JSON(500, gin.H{"error": "Update failed"})
				return
			}
			c.JSON(200, gin.H{"message": "User updated successfully"})
		})
	}
}

package api

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"techhome/internal/logging"
	"techhome/internal/models"
	"techhome/internal/web/middleware"
	webModels "techhome/internal/web/models"
)

func RegisterRoomRoutes(r *gin.Engine, middlewareManager *middleware.MiddlewareManager, dbConn *pgxpool.Pool) {
	logger := logging.Component("api")

	rooms := r.Group("/api/rooms")
	rooms.Use(middlewareManager.RequireAuth())
	{
		rooms.GET("", func(c *gin.Context) {
			rows, err := dbConn.Query(c, "SELECT id, name FROM rooms ORDER BY name")
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to fetch rooms"})
				return
			}
			defer rows.Close()

			list := []models.Room{}
			for rows.Next() {
				var room models.Room
				if err := rows.Scan(&room.ID, &room.Name); err != nil {
					c.JSON(500, gin.H{"error": "Failed to scan room"})
					return
				}
				list = append(list, room)
			}
			c.JSON(200, list)
		})

		rooms.POST("", func(c *gin.Context) {
			var req webModels.AddRoomRequest
			if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
				c.JSON(400, gin.H{"error": "Room name required"})
				return
			}

			room := models.Room{ID: uuid.NewString(), Name: req.Name}
			if _, err := dbConn.Exec(c, "INSERT INTO rooms (id, name) VALUES ($1, $2)", room.ID, room.Name); err != nil {
				logger.Error().Err(err).Str("name", req.Name).Msg("failed to create room")
				c.JSON(409, gin.H{"error": "Room already exists"})
				return
			}
			c.JSON(201, room)
		})

		rooms.PUT("/:id", func(c *gin.Context) {
			var req webModels.AddRoomRequest
			if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
				c.JSON(400, gin.H{"error": "Room name required"})
				return
			}
			tag, err := dbConn.Exec(c, "UPDATE rooms SET name = $1 WHERE id = $2", req.Name, c.Param("id"))
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to update room"})
				return
			}
			if tag.RowsAffected() == 0 {
				c.JSON(404, gin.H{"error": "Room not found"})
				return
			}
			c.JSON(200, models.Room{ID: c.Param("id"), Name: req.Name})
		})

		rooms.DELETE("/:id", func(c *gin.Context) {
			// Devices keep existing without a room; the FK clears room_id.
			tag, err := dbConn.Exec(c, "DELETE FROM rooms WHERE id = $1", c.Param("id"))
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to delete room"})
				return
			}
			if tag.RowsAffected() == 0 {
				c.JSON(404, gin.H{"error": "Room not found"})
				return
			}
			c.JSON(200, gin.H{"status": "Room deleted successfully"})
		})

		rooms.GET("/:id/devices", func(c *gin.Context) {
			rows, err := dbConn.Query(c, "SELECT "+deviceColumns+" FROM devices WHERE room_id = $1 ORDER BY name", c.Param("id"))
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to fetch devices"})
				return
			}
			defer rows.Close()

			list := []models.Device{}
			for rows.Next() {
				d, err := scanDevice(rows)
				if err != nil {
					c.JSON(500, gin.H{"error": "Failed to scan device"})
					return
				}
				list = append(list, *d)
			}
			c.JSON(200, list)
		})
	}
}

package api

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"techhome/internal/automation"
	"techhome/internal/hub"
	"techhome/internal/logging"
	"techhome/internal/web/middleware"
)

// RegisterHomeAssistantRoutes exposes a thin synchronous surface over the hub:
// a raw state dump and a direct toggle by entity ID. Unlike the device routes,
// the toggle here blocks on the hub call and reports its failure to the caller.
func RegisterHomeAssistantRoutes(r *gin.Engine, middlewareManager *middleware.MiddlewareManager, dbConn *pgxpool.Pool, hubClient *hub.Client, recorder automation.ActionRecorder) {
	logger := logging.Component("api")

	ha := r.Group("/api/home-assistant")
	ha.Use(middlewareManager.RequireAuth())
	{
		ha.GET("/states", func(c *gin.Context) {
			states, err := hubClient.States(c)
			if err != nil {
				logger.Error().Err(err).Msg("hub state fetch failed")
				c.JSON(502, gin.H{"error": "Failed to fetch states from Home Assistant"})
				return
			}
			c.Data(200, "application/json", states)
		})

		ha.POST("/toggle/:entityId", func(c *gin.Context) {
			entityID := c.Param("entityId")

			device, err := scanDevice(dbConn.QueryRow(c,
				"SELECT "+deviceColumns+" FROM devices WHERE entity_id = $1", entityID))
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					c.JSON(404, gin.H{"error": "Device not found"})
					return
				}
				c.JSON(500, gin.H{"error": "Failed to fetch device"})
				return
			}

			newState := !device.IsOn
			if err := hubClient.SendCommand(c, entityID, hub.VerbForState(newState)); err != nil {
				logger.Error().Err(err).Str("entity_id", entityID).Msg("hub toggle failed")
				c.JSON(502, gin.H{"error": "Failed to toggle device on Home Assistant"})
				return
			}

			if _, err := dbConn.Exec(c, "UPDATE devices SET is_on = $1 WHERE id = $2", newState, device.ID); err != nil {
				logger.Error().Err(err).Str("device_id", device.ID).Msg("device state update failed")
				c.JSON(500, gin.H{"error": "Failed to update device"})
				return
			}

			result := "off"
			if newState {
				result = "on"
			}
			recorder.RecordDeviceAction(c, c.GetString("username"), entityID, "toggle", result)
			c.JSON(200, gin.H{"new_state": result})
		})
	}
}

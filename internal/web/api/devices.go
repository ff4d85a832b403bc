package api

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"techhome/internal/automation"
	"techhome/internal/hub"
	"techhome/internal/logging"
	"techhome/internal/models"
	"techhome/internal/web/middleware"
	webModels "techhome/internal/web/models"
)

const deviceColumns = "id, name, type, is_on, temperature, room_id, is_home_assistant, entity_id"

func scanDevice(row pgx.Row) (*models.Device, error) {
	var d models.Device
	err := row.Scan(&d.ID, &d.Name, &d.Type, &d.IsOn, &d.Temperature, &d.RoomID, &d.IsHomeAssistant, &d.EntityID)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// logRef is the identifier written into device logs: the hub entity ID for
// mirrored devices, the local ID otherwise. Analytics resolves both.
func logRef(d *models.Device) string {
	if d.IsHomeAssistant && d.EntityID != nil && *d.EntityID != "" {
		return *d.EntityID
	}
	return d.ID
}

// mirrorToHub pushes a state change to the hub for hub-linked devices. A hub
// failure is logged and the local write proceeds regardless.
func mirrorToHub(c *gin.Context, hubClient *hub.Client, device *models.Device, newState bool) {
	if !device.IsHomeAssistant || device.EntityID == nil || *device.EntityID == "" {
		return
	}
	verb := hub.VerbForState(newState)
	if err := hubClient.SendCommand(c, *device.EntityID, verb); err != nil {
		clog := logging.Component("api")
		clog.Warn().Err(err).Str("entity_id", *device.EntityID).
			Msg("hub command failed, updating local state anyway")
	}
}

func RegisterDeviceRoutes(r *gin.Engine, middlewareManager *middleware.MiddlewareManager, dbConn *pgxpool.Pool, hubClient *hub.Client, recorder automation.ActionRecorder) {
	logger := logging.Component("api")

	devices := r.Group("/api/devices")

	devices.GET("", func(c *gin.Context) {
		rows, err := dbConn.Query(c, "SELECT "+deviceColumns+" FROM devices ORDER BY name")
		if err != nil {
			logger.Error().Err(err).Msg("failed to fetch devices")
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

	protected := r.Group("/api/devices")
	protected.Use(middlewareManager.RequireAuth())
	{
		protected.POST("", func(c *gin.Context) {
			var req webModels.AddDeviceRequest
			if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" || req.Type == "" {
				c.JSON(400, gin.H{"error": "Name and type required"})
				return
			}
			if req.IsHomeAssistant && (req.EntityID == nil || *req.EntityID == "") {
				c.JSON(400, gin.H{"error": "Entity ID required for Home Assistant devices"})
				return
			}

			id := uuid.NewString()
			_, err := dbConn.Exec(c,
				"INSERT INTO devices (id, name, type, room_id, is_home_assistant, entity_id, temperature) VALUES ($1, $2, $3, $4, $5, $6, $7)",
				id, req.Name, req.Type, req.RoomID, req.IsHomeAssistant, req.EntityID, req.Temperature)
			if err != nil {
				logger.Error().Err(err).Msg("failed to create device")
				c.JSON(500, gin.H{"error": "Failed to create device"})
				return
			}

			device, err := scanDevice(dbConn.QueryRow(c, "SELECT "+deviceColumns+" FROM devices WHERE id = $1", id))
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to fetch created device"})
				return
			}
			c.JSON(201, device)
		})

		protected.PATCH("/:id", func(c *gin.Context) {
			var req webModels.UpdateDeviceRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(400, gin.H{"error": "Invalid request"})
				return
			}
			tag, err := dbConn.Exec(c,
				`UPDATE devices SET
					name    = COALESCE($1, name),
					type    = COALESCE($2, type),
					room_id = COALESCE($3, room_id)
				WHERE id = $4`,
				req.Name, req.Type, req.RoomID, c.Param("id"))
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to update device"})
				return
			}
			if tag.RowsAffected() == 0 {
				c.JSON(404, gin.H{"error": "Device not found"})
				return
			}
			device, err := scanDevice(dbConn.QueryRow(c, "SELECT "+deviceColumns+" FROM devices WHERE id = $1", c.Param("id")))
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to fetch device"})
				return
			}
			c.JSON(200, device)
		})

		protected.DELETE("/:id", func(c *gin.Context) {
			tag, err := dbConn.Exec(c, "DELETE FROM devices WHERE id = $1", c.Param("id"))
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to delete device"})
				return
			}
			if tag.RowsAffected() == 0 {
				c.JSON(404, gin.H{"error": "Device not found"})
				return
			}
			c.JSON(200, gin.H{"status": "Device deleted successfully"})
		})

		protected.POST("/:id/toggle", func(c *gin.Context) {
			device, err := scanDevice(dbConn.QueryRow(c, "SELECT "+deviceColumns+" FROM devices WHERE id = $1", c.Param("id")))
			if errors.Is(err, pgx.ErrNoRows) {
				c.JSON(404, gin.H{"error": "Device not found"})
				return
			}
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to fetch device"})
				return
			}

			newState := !device.IsOn
			mirrorToHub(c, hubClient, device, newState)

			if _, err := dbConn.Exec(c, "UPDATE devices SET is_on = $1 WHERE id = $2", newState, device.ID); err != nil {
				c.JSON(500, gin.H{"error": "Failed to update device"})
				return
			}
			device.IsOn = newState

			result := "off"
			if newState {
				result = "on"
			}
			recorder.RecordDeviceAction(c, c.GetString("username"), logRef(device), "toggle", result)

			c.JSON(200, device)
		})

		protected.POST("/:id/temperature", func(c *gin.Context) {
			var req webModels.TemperatureRequest
			if err := c.ShouldBindJSON(&req); err != nil || req.Temperature == nil {
				c.JSON(400, gin.H{"error": "Temperature required"})
				return
			}

			device, err := scanDevice(dbConn.QueryRow(c, "SELECT "+deviceColumns+" FROM devices WHERE id = $1", c.Param("id")))
			if errors.Is(err, pgx.ErrNoRows) || (err == nil && device.Type != "thermostat") {
				c.JSON(404, gin.H{"error": "Device not found or not a thermostat"})
				return
			}
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to fetch device"})
				return
			}

			if _, err := dbConn.Exec(c, "UPDATE devices SET temperature = $1 WHERE id = $2", *req.Temperature, device.ID); err != nil {
				c.JSON(500, gin.H{"error": "Failed to update device"})
				return
			}
			device.Temperature = req.Temperature

			recorder.RecordDeviceAction(c, c.GetString("username"), logRef(device), "set_temperature", "ok")
			c.JSON(200, device)
		})

		protected.POST("/toggle-all-lights", func(c *gin.Context) {
			var req webModels.ToggleAllRequest
			if err := c.ShouldBindJSON(&req); err != nil || req.DesiredState == nil {
				c.JSON(400, gin.H{"error": "Desired state required"})
				return
			}
			desired := *req.DesiredState

			rows, err := dbConn.Query(c, "SELECT "+deviceColumns+" FROM devices WHERE type = 'light'")
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to fetch devices"})
				return
			}
			lights := []models.Device{}
			for rows.Next() {
				d, err := scanDevice(rows)
				if err != nil {
					rows.Close()
					c.JSON(500, gin.H{"error": "Failed to scan device"})
					return
				}
				lights = append(lights, *d)
			}
			rows.Close()

			result := "off"
			if desired {
				result = "on"
			}
			username := c.GetString("username")

			updated := []models.Device{}
			for i := range lights {
				device := &lights[i]
				mirrorToHub(c, hubClient, device, desired)
				if _, err := dbConn.Exec(c, "UPDATE devices SET is_on = $1 WHERE id = $2", desired, device.ID); err != nil {
					logger.Error().Err(err).Str("device", device.Name).Msg("failed to update light")
					continue
				}
				device.IsOn = desired
				recorder.RecordDeviceAction(c, username, logRef(device), "toggle_all", result)
				updated = append(updated, *device)
			}
			c.JSON(200, updated)
		})
	}
}

package api

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"techhome/internal/logging"
	"techhome/internal/models"
	"techhome/internal/web/middleware"
	webModels "techhome/internal/web/models"
)

// SchedulerInterface is what the automation routes need from the scheduler:
// a resync after every rule mutation, and job introspection for debugging.
type SchedulerInterface interface {
	Resync(ctx context.Context) error
	Jobs() map[string]string
}

const automationColumns = "id, name, type, condition, action, enabled"

func scanAutomation(row pgx.Row) (*models.Automation, error) {
	var a models.Automation
	if err := row.Scan(&a.ID, &a.Name, &a.Type, &a.Condition, &a.Action, &a.Enabled); err != nil {
		return nil, err
	}
	return &a, nil
}

// resyncScheduler refreshes the job table after a rule mutation. A refresh
// failure never fails the surrounding request; the next mutation retries.
func resyncScheduler(c *gin.Context, sched SchedulerInterface) {
	if err := sched.Resync(c); err != nil {
		clog := logging.Component("api")
		clog.Error().Err(err).Msg("scheduler resync failed")
	}
}

func RegisterAutomationRoutes(r *gin.Engine, middlewareManager *middleware.MiddlewareManager, dbConn *pgxpool.Pool, sched SchedulerInterface) {
	logger := logging.Component("api")

	automations := r.Group("/api/automations")
	automations.Use(middlewareManager.RequireAuth())
	{
		automations.GET("", func(c *gin.Context) {
			rows, err := dbConn.Query(c, "SELECT "+automationColumns+" FROM automations ORDER BY name")
			if err != nil {
				logger.Error().Err(err).Msg("failed to fetch automations")
				c.JSON(500, gin.H{"error": "Failed to fetch automations"})
				return
			}
			defer rows.Close()

			list := []models.Automation{}
			for rows.Next() {
				a, err := scanAutomation(rows)
				if err != nil {
					c.JSON(500, gin.H{"error": "Failed to scan automation"})
					return
				}
				list = append(list, *a)
			}
			c.JSON(200, list)
		})

		automations.POST("", func(c *gin.Context) {
			var req webModels.AddAutomationRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(400, gin.H{"error": "Invalid request"})
				return
			}
			if req.Name == "" || req.Type == "" || len(req.Condition) == 0 || len(req.Action) == 0 {
				c.JSON(400, gin.H{"error": "Missing required fields: name, type, condition, action"})
				return
			}

			enabled := true
			if req.Enabled != nil {
				enabled = *req.Enabled
			}

			automationRow := models.Automation{
				ID:        uuid.NewString(),
				Name:      req.Name,
				Type:      req.Type,
				Condition: req.Condition,
				Action:    req.Action,
				Enabled:   enabled,
			}
			_, err := dbConn.Exec(c,
				"INSERT INTO automations (id, name, type, condition, action, enabled) VALUES ($1, $2, $3, $4, $5, $6)",
				automationRow.ID, automationRow.Name, automationRow.Type, automationRow.Condition, automationRow.Action, automationRow.Enabled)
			if err != nil {
				logger.Error().Err(err).Msg("failed to create automation")
				c.JSON(500, gin.H{"error": "Failed to create automation"})
				return
			}

			resyncScheduler(c, sched)
			c.JSON(201, automationRow)
		})

		automations.PUT("/:id", func(c *gin.Context) {
			var req webModels.AddAutomationRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(400, gin.H{"error": "Invalid request"})
				return
			}
			if req.Name == "" || req.Type == "" || len(req.Condition) == 0 || len(req.Action) == 0 {
				c.JSON(400, gin.H{"error": "Missing required fields: name, type, condition, action"})
				return
			}

			enabled := true
			if req.Enabled != nil {
				enabled = *req.Enabled
			}

			tag, err := dbConn.Exec(c,
				"UPDATE automations SET name = $1, type = $2, condition = $3, action = $4, enabled = $5 WHERE id = $6",
				req.Name, req.Type, req.Condition, req.Action, enabled, c.Param("id"))
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to update automation"})
				return
			}
			if tag.RowsAffected() == 0 {
				c.JSON(404, gin.H{"error": "Automation not found"})
				return
			}

			resyncScheduler(c, sched)

			updated, err := scanAutomation(dbConn.QueryRow(c, "SELECT "+automationColumns+" FROM automations WHERE id = $1", c.Param("id")))
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to fetch automation"})
				return
			}
			c.JSON(200, updated)
		})

		automations.PATCH("/:id", func(c *gin.Context) {
			var req webModels.UpdateAutomationRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(400, gin.H{"error": "Invalid request"})
				return
			}

			existing, err := scanAutomation(dbConn.QueryRow(c, "SELECT "+automationColumns+" FROM automations WHERE id = $1", c.Param("id")))
			if errors.Is(err, pgx.ErrNoRows) {
				c.JSON(404, gin.H{"error": "Automation not found"})
				return
			}
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to fetch automation"})
				return
			}

			if req.Name != nil {
				existing.Name = *req.Name
			}
			if req.Type != nil {
				existing.Type = *req.Type
			}
			if len(req.Condition) > 0 {
				existing.Condition = req.Condition
			}
			if len(req.Action) > 0 {
				existing.Action = req.Action
			}
			if req.Enabled != nil {
				existing.Enabled = *req.Enabled
			}

			_, err = dbConn.Exec(c,
				"UPDATE automations SET name = $1, type = $2, condition = $3, action = $4, enabled = $5 WHERE id = $6",
				existing.Name, existing.Type, existing.Condition, existing.Action, existing.Enabled, existing.ID)
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to update automation"})
				return
			}

			resyncScheduler(c, sched)
			c.JSON(200, existing)
		})

		automations.DELETE("/:id", func(c *gin.Context) {
			tag, err := dbConn.Exec(c, "DELETE FROM automations WHERE id = $1", c.Param("id"))
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to delete automation"})
				return
			}
			if tag.RowsAffected() == 0 {
				c.JSON(404, gin.H{"error": "Automation not found"})
				return
			}

			resyncScheduler(c, sched)
			c.JSON(200, gin.H{"status": "Automation deleted successfully"})
		})

		// Debug view of the in-memory job table: rule ID -> cron expression.
		automations.GET("/jobs", func(c *gin.Context) {
			c.JSON(200, sched.Jobs())
		})
	}
}

package api

import (
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"techhome/internal/logging"
	"techhome/internal/web/middleware"
)

// deviceNameJoin resolves a device-log reference to a display name. The log's
// device column holds either a local device ID or a hub entity ID.
const deviceNameJoin = "LEFT JOIN devices d ON d.id = l.device OR d.entity_id = l.device"

func parseLogDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

// buildLogFilter translates from/to/device/room query params into a WHERE
// clause over device_logs l.
func buildLogFilter(c *gin.Context) (string, []any, error) {
	var conds []string
	var args []any

	if from := c.Query("from"); from != "" {
		t, err := parseLogDate(from)
		if err != nil {
			return "", nil, fmt.Errorf("invalid 'from' date: %s", from)
		}
		args = append(args, t)
		conds = append(conds, fmt.Sprintf("l.timestamp >= $%d", len(args)))
	}
	if to := c.Query("to"); to != "" {
		t, err := parseLogDate(to)
		if err != nil {
			return "", nil, fmt.Errorf("invalid 'to' date: %s", to)
		}
		// A bare date means "through the end of that day".
		if len(to) == len("2006-01-02") {
			t = t.Add(24 * time.Hour)
		}
		args = append(args, t)
		conds = append(conds, fmt.Sprintf("l.timestamp < $%d", len(args)))
	}
	if device := c.Query("device"); device != "" {
		args = append(args, device)
		conds = append(conds, fmt.Sprintf("l.device = $%d", len(args)))
	}
	if room := c.Query("room"); room != "" {
		args = append(args, room)
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"l.device IN (SELECT id FROM devices WHERE room_id = $%d UNION SELECT entity_id FROM devices WHERE room_id = $%d AND entity_id IS NOT NULL)", n, n))
	}

	if len(conds) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func topActions(c *gin.Context, dbConn *pgxpool.Pool, column, value string, limit int) ([]gin.H, error) {
	rows, err := dbConn.Query(c,
		fmt.Sprintf("SELECT action, COUNT(*) AS count FROM device_logs WHERE %s = $1 GROUP BY action ORDER BY count DESC LIMIT %d", column, limit),
		value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []gin.H{}
	for rows.Next() {
		var action string
		var count int64
		if err := rows.Scan(&action, &count); err != nil {
			return nil, err
		}
		result = append(result, gin.H{"action": action, "count": count})
	}
	return result, rows.Err()
}

func RegisterAnalyticsRoutes(r *gin.Engine, middlewareManager *middleware.MiddlewareManager, dbConn *pgxpool.Pool) {
	logger := logging.Component("api")

	analytics := r.Group("/api/analytics")
	analytics.Use(middlewareManager.RequireAuth())
	{
		analytics.GET("/usage-per-user", func(c *gin.Context) {
			where, args, err := buildLogFilter(c)
			if err != nil {
				c.JSON(400, gin.H{"error": err.Error()})
				return
			}
			rows, err := dbConn.Query(c,
				"SELECT l.username, COUNT(*) AS actions FROM device_logs l"+where+" GROUP BY l.username ORDER BY actions DESC", args...)
			if err != nil {
				logger.Error().Err(err).Msg("usage-per-user query failed")
				c.JSON(500, gin.H{"error": "Failed to aggregate usage"})
				return
			}
			defer rows.Close()

			data := []gin.H{}
			for rows.Next() {
				var user string
				var actions int64
				if err := rows.Scan(&user, &actions); err != nil {
					c.JSON(500, gin.H{"error": "Failed to scan row"})
					return
				}
				data = append(data, gin.H{"user": user, "actions": actions})
			}
			c.JSON(200, data)
		})

		analytics.GET("/usage-per-device", func(c *gin.Context) {
			where, args, err := buildLogFilter(c)
			if err != nil {
				c.JSON(400, gin.H{"error": err.Error()})
				return
			}
			rows, err := dbConn.Query(c,
				"SELECT l.device, COUNT(*) AS actions, COALESCE(MIN(d.name), l.device) AS name FROM device_logs l "+
					deviceNameJoin+where+" GROUP BY l.device ORDER BY actions DESC", args...)
			if err != nil {
				logger.Error().Err(err).Msg("usage-per-device query failed")
				c.JSON(500, gin.H{"error": "Failed to aggregate usage"})
				return
			}
			defer rows.Close()

			data := []gin.H{}
			for rows.Next() {
				var device, name string
				var actions int64
				if err := rows.Scan(&device, &actions, &name); err != nil {
					c.JSON(500, gin.H{"error": "Failed to scan row"})
					return
				}
				data = append(data, gin.H{"device": device, "actions": actions, "name": name})
			}
			c.JSON(200, data)
		})

		analytics.GET("/device-actions/:id", func(c *gin.Context) {
			top, err := topActions(c, dbConn, "device", c.Param("id"), 1)
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to aggregate actions"})
				return
			}
			if len(top) == 0 {
				c.JSON(200, gin.H{"action": nil, "count": 0})
				return
			}
			c.JSON(200, top[0])
		})

		analytics.GET("/device-actions/:id/top", func(c *gin.Context) {
			top, err := topActions(c, dbConn, "device", c.Param("id"), 3)
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to aggregate actions"})
				return
			}
			c.JSON(200, top)
		})

		analytics.GET("/user-actions/:username", func(c *gin.Context) {
			top, err := topActions(c, dbConn, "username", c.Param("username"), 1)
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to aggregate actions"})
				return
			}
			if len(top) == 0 {
				c.JSON(200, gin.H{"action": nil, "count": 0})
				return
			}
			c.JSON(200, top[0])
		})

		analytics.GET("/user-actions/:username/top", func(c *gin.Context) {
			top, err := topActions(c, dbConn, "username", c.Param("username"), 3)
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to aggregate actions"})
				return
			}
			c.JSON(200, top)
		})

		analytics.GET("/recent-actions", func(c *gin.Context) {
			rows, err := dbConn.Query(c,
				"SELECT l.username, l.device, l.action, l.result, l.timestamp, COALESCE(d.name, l.device) AS name FROM device_logs l "+
					deviceNameJoin+" ORDER BY l.timestamp DESC LIMIT 5")
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to fetch recent actions"})
				return
			}
			defer rows.Close()

			type recentLog struct {
				user, device, action, result, name string
				timestamp                          time.Time
			}
			var logs []recentLog
			for rows.Next() {
				var l recentLog
				if err := rows.Scan(&l.user, &l.device, &l.action, &l.result, &l.timestamp, &l.name); err != nil {
					c.JSON(500, gin.H{"error": "Failed to scan row"})
					return
				}
				logs = append(logs, l)
			}

			// toggle_all writes one row per light; collapse bursts sharing
			// the same user and second into one grouped entry.
			type groupKey struct {
				user, action, second string
			}
			grouped := []gin.H{}
			bursts := map[groupKey]*gin.H{}
			for _, l := range logs {
				if l.action == "toggle_all" {
					key := groupKey{l.user, l.action, l.timestamp.Truncate(time.Second).Format(time.RFC3339)}
					if entry, ok := bursts[key]; ok {
						(*entry)["devices"] = append((*entry)["devices"].([]string), l.name)
						continue
					}
					entry := gin.H{
						"user":      l.user,
						"action":    l.action,
						"devices":   []string{l.name},
						"result":    l.result,
						"timestamp": l.timestamp.Format(time.RFC3339),
						"grouped":   true,
					}
					bursts[key] = &entry
					grouped = append(grouped, entry)
					continue
				}
				grouped = append(grouped, gin.H{
					"user":        l.user,
					"action":      l.action,
					"device_name": l.name,
					"result":      l.result,
					"timestamp":   l.timestamp.Format(time.RFC3339),
					"grouped":     false,
				})
			}
			c.JSON(200, grouped)
		})

		analytics.GET("/usage-per-period", func(c *gin.Context) {
			trunc := map[string]string{
				"daily":   "day",
				"weekly":  "week",
				"monthly": "month",
			}[c.DefaultQuery("period", "daily")]
			if trunc == "" {
				c.JSON(400, gin.H{"error": "Invalid period, use daily, weekly or monthly"})
				return
			}

			where, args, err := buildLogFilter(c)
			if err != nil {
				c.JSON(400, gin.H{"error": err.Error()})
				return
			}
			rows, err := dbConn.Query(c,
				fmt.Sprintf("SELECT date_trunc('%s', l.timestamp) AS period, COUNT(*) AS actions FROM device_logs l%s GROUP BY period ORDER BY period", trunc, where),
				args...)
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to aggregate usage"})
				return
			}
			defer rows.Close()

			data := []gin.H{}
			for rows.Next() {
				var period time.Time
				var actions int64
				if err := rows.Scan(&period, &actions); err != nil {
					c.JSON(500, gin.H{"error": "Failed to scan row"})
					return
				}
				data = append(data, gin.H{"period": period.Format("2006-01-02"), "actions": actions})
			}
			c.JSON(200, data)
		})

		analytics.GET("/export-usage-csv", func(c *gin.Context) {
			where, args, err := buildLogFilter(c)
			if err != nil {
				c.JSON(400, gin.H{"error": err.Error()})
				return
			}
			rows, err := dbConn.Query(c,
				"SELECT l.username, l.device, l.action, l.result, l.timestamp FROM device_logs l"+where+" ORDER BY l.timestamp", args...)
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to export usage"})
				return
			}
			defer rows.Close()

			c.Header("Content-Type", "text/csv; charset=utf-8")
			c.Header("Content-Disposition", `attachment; filename="usage.csv"`)

			w := csv.NewWriter(c.Writer)
			_ = w.Write([]string{"user", "device", "action", "result", "timestamp"})
			for rows.Next() {
				var user, device, action, result string
				var ts time.Time
				if err := rows.Scan(&user, &device, &action, &result, &ts); err != nil {
					logger.Error().Err(err).Msg("csv export scan failed")
					return
				}
				_ = w.Write([]string{user, device, action, result, ts.Format(time.RFC3339)})
			}
			w.Flush()
		})
	}
}

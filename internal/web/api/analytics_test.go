package api

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func filterContext(t *testing.T, query string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/api/analytics/usage-per-user?"+query, nil)
	return c
}

func TestBuildLogFilterEmpty(t *testing.T) {
	where, args, err := buildLogFilter(filterContext(t, ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if where != "" || len(args) != 0 {
		t.Errorf("expected no filter, got %q with %v", where, args)
	}
}

func TestBuildLogFilterDateRange(t *testing.T) {
	where, args, err := buildLogFilter(filterContext(t, "from=2026-01-01&to=2026-01-31"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(where, "l.timestamp >= $1") || !strings.Contains(where, "l.timestamp < $2") {
		t.Errorf("unexpected clause: %q", where)
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %v", args)
	}
	// A bare 'to' date covers the whole day.
	to := args[1].(time.Time)
	if to.Day() != 1 || to.Month() != time.February {
		t.Errorf("to bound should be start of next day, got %v", to)
	}
}

func TestBuildLogFilterDeviceAndRoom(t *testing.T) {
	where, args, err := buildLogFilter(filterContext(t, "device=light.kitchen&room=room-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(where, "l.device = $1") {
		t.Errorf("missing device clause: %q", where)
	}
	if !strings.Contains(where, "room_id = $2") {
		t.Errorf("missing room clause: %q", where)
	}
	if len(args) != 2 || args[0] != "light.kitchen" || args[1] != "room-1" {
		t.Errorf("unexpected args: %v", args)
	}
}

func TestBuildLogFilterInvalidDate(t *testing.T) {
	if _, _, err := buildLogFilter(filterContext(t, "from=yesterday")); err == nil {
		t.Fatal("expected error for unparsable date")
	}
}

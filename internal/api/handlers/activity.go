package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"adminpanel/internal/api/middleware"
	"adminpanel/internal/audit"
	"adminpanel/internal/models"

	"github.com/gin-gonic/gin"
)

const exportLimit = 10000

type ActivityHandler struct {
	store    *audit.Store
	activity audit.ActivitySink
}

func NewActivityHandler(store *audit.Store, activity audit.ActivitySink) *ActivityHandler {
	return &ActivityHandler{store: store, activity: activity}
}

// ActivityPayload is one activity record with its actor flattened.
type ActivityPayload struct {
	models.ActivityLog
	Username string `json:"username"`
	UserName string `json:"user_name"`
}

func activityFilter(c *gin.Context) audit.ActivityFilter {
	return audit.ActivityFilter{
		ActorID:    queryUint(c, "user"),
		Action:     models.Action(c.Query("action")),
		TargetType: c.Query("target_type"),
		Search:     c.Query("search"),
		Ordering:   c.Query("ordering"),
		Page:       queryInt(c, "page"),
		PageSize:   queryInt(c, "page_size"),
	}
}

// GetActivityLogs lists activity records, newest first.
func (h *ActivityHandler) GetActivityLogs(c *gin.Context) {
	page, err := h.store.QueryActivity(c.Request.Context(), activityFilter(c))
	if err != nil {
		respondError(c, err)
		return
	}
	results := make([]ActivityPayload, 0, len(page.Results))
	for _, l := range page.Results {
		name := l.User.FullName()
		if name == "" {
			name = l.User.Username
		}
		results = append(results, ActivityPayload{ActivityLog: l, Username: l.User.Username, UserName: name})
	}
	c.JSON(http.StatusOK, gin.H{
		"count":     page.Count,
		"page":      page.Page,
		"page_size": page.PageSize,
		"results":   results,
	})
}

// GetLoginAttempts lists login attempts, newest first.
func (h *ActivityHandler) GetLoginAttempts(c *gin.Context) {
	page, err := h.store.QueryLoginAttempts(c.Request.Context(), audit.LoginAttemptFilter{
		Success:  queryBool(c, "success"),
		Username: c.Query("username"),
		Search:   c.Query("search"),
		Ordering: c.Query("ordering"),
		Page:     queryInt(c, "page"),
		PageSize: queryInt(c, "page_size"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// ExportActivityLogs streams the filtered activity log as CSV or XLSX and
// records the export itself.
func (h *ActivityHandler) ExportActivityLogs(c *gin.Context) {
	format := audit.ExportFormat(c.DefaultQuery("format", string(audit.ExportCSV)))
	var contentType string
	switch format {
	case audit.ExportCSV:
		contentType = "text/csv; charset=utf-8"
	case audit.ExportXLSX:
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported export format"})
		return
	}

	logs, err := h.store.ExportActivity(c.Request.Context(), activityFilter(c), exportLimit)
	if err != nil {
		respondError(c, err)
		return
	}

	filename := fmt.Sprintf("activity-logs-%s.%s", time.Now().UTC().Format("20060102-150405"), format)
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)

	if format == audit.ExportXLSX {
		err = audit.WriteXLSX(c.Writer, logs)
	} else {
		err = audit.WriteCSV(c.Writer, logs)
	}
	if err != nil {
		_ = c.Error(err)
		return
	}

	user := middleware.CurrentUser(c)
	kind := "activity_log"
	rec := &models.ActivityLog{
		UserID:        user.ID,
		Action:        models.ActionExport,
		TargetType:    &kind,
		TargetSummary: "Exported " + strconv.Itoa(len(logs)) + " activity records as " + string(format),
		UserAgent:     c.Request.UserAgent(),
	}
	if ip := audit.ClientIP(c.Request); ip != "" {
		rec.IPAddress = &ip
	}
	h.activity.Activity(rec)
}

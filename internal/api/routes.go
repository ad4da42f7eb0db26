package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ndlab/vmc/internal/auth"
	"github.com/ndlab/vmc/internal/models"
	"github.com/ndlab/vmc/internal/pool"
	"github.com/ndlab/vmc/internal/report"
)

// registerRoutes sets up the coding API on the gin router.
func registerRoutes(router *gin.Engine, db *gorm.DB) {
	coders := router.Group("/api", requireCoder(db))
	coders.POST("/next", handleNext(db))
	coders.POST("/heartbeat", handleHeartbeat(db))
	coders.POST("/submit", handleSubmit(db))
	coders.POST("/abandon", handleAbandon(db))
	coders.GET("/clip/:id", handleClip(db))
	coders.GET("/progress", handleProgress(db))
}

const coderKey = "coder"

// requireCoder authenticates the request with basic auth against the coder
// table and records the activity in the coder's session.
func requireCoder(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, password, ok := c.Request.BasicAuth()
		if !ok {
			c.Header("WWW-Authenticate", `Basic realm="coding"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "credentials required"})
			return
		}

		var coder models.Coder
		if err := db.Where("username = ? AND active = ?", username, true).
			Find(&coder).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
			return
		}
		if coder.ID == 0 || !auth.CheckPassword(coder.PasswordHash, password) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		touchSession(db, coder.ID)
		c.Set(coderKey, coder)
		c.Next()
	}
}

// touchSession extends the coder's current session, or opens a new one when
// the last activity is older than the session pause. Session bookkeeping is
// auditing only, so failures are swallowed.
func touchSession(db *gorm.DB, coderID uint) {
	now := time.Now()
	res := db.Model(&models.CodingSession{}).
		Where("coder_id = ? AND last_accessed_on > ?", coderID, now.Add(-report.SessionPause)).
		Update("last_accessed_on", now)
	if res.Error == nil && res.RowsAffected == 0 {
		db.Create(&models.CodingSession{CoderID: coderID, StartedOn: now, LastAccessedOn: now})
	}
}

func currentCoder(c *gin.Context) models.Coder {
	return c.MustGet(coderKey).(models.Coder)
}

// workItemResponse is what the GUI needs to present one coding task.
type workItemResponse struct {
	WorkItemID      string   `json:"work_item_id"`
	UtteranceID     uint     `json:"utterance_id"`
	ClipFileName    string   `json:"clip_file_name"`
	DurationSeconds float64  `json:"duration_seconds"`
	PitchMin        *float64 `json:"pitch_min,omitempty"`
	PitchMax        *float64 `json:"pitch_max,omitempty"`
	PitchMean       *float64 `json:"pitch_mean,omitempty"`
}

func handleNext(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		coder := currentCoder(c)
		item, err := pool.Lease(db, coder.ID)
		if errors.Is(err, pool.ErrQueueExhausted) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no work available"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		var utt models.Utterance
		if err := db.Select("id, interval_id, start_seconds, end_seconds, duration_seconds, "+
			"clip_file_name, pitch_min, pitch_max, pitch_mean, pitch_range").
			Where("id = ?", item.UtteranceID).First(&utt).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, workItemResponse{
			WorkItemID:      item.ID,
			UtteranceID:     utt.ID,
			ClipFileName:    utt.ClipFileName,
			DurationSeconds: utt.DurationSeconds,
			PitchMin:        utt.PitchMin,
			PitchMax:        utt.PitchMax,
			PitchMean:       utt.PitchMean,
		})
	}
}

type heartbeatRequest struct {
	WorkItemID string `json:"work_item_id" binding:"required"`
}

func handleHeartbeat(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req heartbeatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		coder := currentCoder(c)
		err := pool.Heartbeat(db, req.WorkItemID, coder.ID)
		if errors.Is(err, pool.ErrStaleLease) {
			c.JSON(http.StatusConflict, gin.H{"error": "lease no longer held"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

type submitRequest struct {
	WorkItemID             string `json:"work_item_id" binding:"required"`
	Category               string `json:"category" binding:"required"`
	TotalSyllableCount     int    `json:"total_syllable_count"`
	CanonicalSyllableCount int    `json:"canonical_syllable_count"`
	WordSyllableCount      int    `json:"word_syllable_count"`
	WordCount              int    `json:"word_count"`
	Unusable               bool   `json:"unusable"`
	Comments               string `json:"comments"`
}

func handleSubmit(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req submitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		coder := currentCoder(c)
		record, err := pool.Submit(db, req.WorkItemID, coder.ID, pool.Annotation{
			Category:               req.Category,
			TotalSyllableCount:     req.TotalSyllableCount,
			CanonicalSyllableCount: req.CanonicalSyllableCount,
			WordSyllableCount:      req.WordSyllableCount,
			WordCount:              req.WordCount,
			Unusable:               req.Unusable,
			Comments:               req.Comments,
		})
		if errors.Is(err, pool.ErrStaleLease) {
			c.JSON(http.StatusConflict, gin.H{"error": "lease no longer held"})
			return
		}
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"record_id": record.ID})
	}
}

func handleAbandon(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req heartbeatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		coder := currentCoder(c)
		err := pool.Abandon(db, req.WorkItemID, coder.ID)
		if errors.Is(err, pool.ErrStaleLease) {
			c.JSON(http.StatusConflict, gin.H{"error": "lease no longer held"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// handleClip streams the WAV clip for a work item the coder currently holds.
func handleClip(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		coder := currentCoder(c)

		var item models.WorkItem
		if err := db.Where("id = ? AND coder_id = ?", c.Param("id"), coder.ID).
			Find(&item).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if item.ID == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": "work item not held"})
			return
		}

		var utt models.Utterance
		if err := db.Where("id = ?", item.UtteranceID).First(&utt).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if len(utt.ClipData) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "clip not built"})
			return
		}
		c.Data(http.StatusOK, "audio/wav", utt.ClipData)
	}
}

// handleProgress reports queue depth and the requesting coder's daily counts.
func handleProgress(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		coder := currentCoder(c)

		status, err := report.Status(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		rows, err := report.Progress(db, nil, nil)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		var mine []report.ProgressRow
		name := strings.TrimSpace(coder.FirstName + " " + coder.LastName)
		if name == "" {
			name = coder.Username
		}
		for _, r := range rows {
			if r.Coder == name {
				mine = append(mine, r)
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"available": status.Available,
			"leased":    status.Leased,
			"completed": status.Completed,
			"daily":     mine,
		})
	}
}

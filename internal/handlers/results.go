package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"iatlab/internal/models"
	"iatlab/internal/store"
	"iatlab/internal/validation"
)

const (
	defaultPage  = 1
	defaultLimit = 20
)

type ResultsHandler struct {
	log      *zap.Logger
	store    store.Store
	policy   validation.Policy
	maxLimit int64
	debug    bool
}

func NewResultsHandler(log *zap.Logger, s store.Store, policy validation.Policy, maxLimit int64, debug bool) *ResultsHandler {
	if maxLimit <= 0 {
		maxLimit = 100
	}
	return &ResultsHandler{log: log, store: s, policy: policy, maxLimit: maxLimit, debug: debug}
}

// Create accepts a completed test submission and persists it.
func (h *ResultsHandler) Create(c *gin.Context) {
	var sub models.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		h.log.Warn("Failed to bind submission", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "INVALID_JSON",
			"message": "request body must be a JSON test submission",
		})
		return
	}

	record, err := h.policy.Normalize(&sub)
	if err != nil {
		if ve, ok := validation.AsError(err); ok {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   ve.Code,
				"message": ve.Message,
			})
			return
		}
		h.internalError(c, "Failed to normalize submission", err)
		return
	}

	if err := h.store.Insert(c.Request.Context(), record); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicate):
			c.JSON(http.StatusConflict, gin.H{
				"success": false,
				"error":   "DUPLICATE_RECORD",
				"message": "a record with this identifier already exists",
			})
		case errors.Is(err, store.ErrUnavailable):
			h.log.Error("Storage unavailable during insert", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"success": false,
				"error":   "STORAGE_UNAVAILABLE",
				"message": "database connection is not available, check connectivity and configuration",
			})
		default:
			h.internalError(c, "Failed to insert test result", err)
		}
		return
	}

	h.log.Info("Test result stored",
		zap.String("id", record.ID.Hex()),
		zap.String("userId", record.UserID),
		zap.Float64("dScore", record.Analysis.DScore))

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data": models.CreateReceipt{
			ID:        record.ID.Hex(),
			UserID:    record.UserID,
			TestDate:  record.TestDate,
			CreatedAt: record.CreatedAt,
		},
	})
}

// List returns a page of records, newest first, without the free-form
// survey/device payloads.
func (h *ResultsHandler) List(c *gin.Context) {
	page := positiveQueryInt(c, "page", defaultPage)
	limit := positiveQueryInt(c, "limit", defaultLimit)
	if limit > h.maxLimit {
		limit = h.maxLimit
	}
	// Keep (page-1)*limit within int64 so the store's skip math cannot
	// overflow on an absurd page number.
	if page > math.MaxInt64/limit {
		page = math.MaxInt64 / limit
	}

	records, total, err := h.store.List(c.Request.Context(), store.ListQuery{
		Page:   page,
		Limit:  limit,
		UserID: c.Query("userId"),
	})
	if err != nil {
		h.internalError(c, "Failed to list test results", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    records,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
			"pages": int64(math.Ceil(float64(total) / float64(limit))),
		},
	})
}

// GetByID returns one full record.
func (h *ResultsHandler) GetByID(c *gin.Context) {
	id := c.Param("id")

	record, err := h.store.GetByID(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "NOT_FOUND",
			"message": "no test result with that id",
		})
		return
	}
	if err != nil {
		h.internalError(c, "Failed to fetch test result", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": record})
}

// Count returns the total number of stored records and how many were
// created since local midnight.
func (h *ResultsHandler) Count(c *gin.Context) {
	counts, err := h.store.Counts(c.Request.Context())
	if err != nil {
		h.internalError(c, "Failed to count test results", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": counts})
}

func (h *ResultsHandler) internalError(c *gin.Context, msg string, err error) {
	h.log.Error(msg, zap.Error(err))
	body := gin.H{
		"success": false,
		"error":   "INTERNAL_ERROR",
		"message": "an unexpected error occurred",
	}
	if h.debug {
		body["detail"] = err.Error()
	}
	c.JSON(http.StatusInternalServerError, body)
}

func positiveQueryInt(c *gin.Context, key string, fallback int64) int64 {
	n, err := strconv.ParseInt(c.Query(key), 10, 64)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"agrimarket/database"
	"agrimarket/utils"
)

// StatisticRequest is a pie chart for one product category
type StatisticRequest struct {
	Category string                    `json:"category"`
	Title    string                    `json:"title"`
	Slices   []database.StatisticSlice `json:"slices"`
}

func (r *StatisticRequest) validate() error {
	r.Category = strings.ToLower(strings.TrimSpace(r.Category))
	r.Title = strings.TrimSpace(r.Title)
	if r.Category == "" {
		return utils.Validation("category is required", "category")
	}
	for i := range r.Slices {
		r.Slices[i].Label = strings.TrimSpace(r.Slices[i].Label)
		if r.Slices[i].Label == "" {
			return utils.Validation("every slice needs a label", "slices")
		}
		if r.Slices[i].Value < 0 {
			return utils.Validation("slice values cannot be negative", "slices")
		}
	}
	return nil
}

// GetStatistics returns the chart data, optionally for one ?category=
func GetStatistics(c *gin.Context) {
	db, cancel := dbFor(c)
	defer cancel()

	query := db.Model(&database.Statistic{})
	if category := strings.ToLower(strings.TrimSpace(c.Query("category"))); category != "" {
		query = query.Where("category = ?", category)
	}

	var stats []database.Statistic
	if err := query.Order("category ASC").Find(&stats).Error; err != nil {
		respondError(c, utils.FromDB(err, "Statistic"))
		return
	}
	c.JSON(http.StatusOK, stats)
}

// UpsertStatistic creates the chart of a category or replaces the existing one
func UpsertStatistic(c *gin.Context) {
	var req StatisticRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data"})
		return
	}
	if err := req.validate(); err != nil {
		respondError(c, err)
		return
	}

	db, cancel := dbFor(c)
	defer cancel()

	var stat database.Statistic
	err := db.Where("category = ?", req.Category).First(&stat).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		stat = database.Statistic{Category: req.Category, Title: req.Title, Slices: req.Slices}
		if err := db.Create(&stat).Error; err != nil {
			respondError(c, utils.FromDB(err, "Statistic"))
			return
		}
		logAudit(c, db, database.EntityStatistic, stat.ID, "create", "", stat.Category)
		c.JSON(http.StatusCreated, stat)
	case err != nil:
		respondError(c, utils.FromDB(err, "Statistic"))
	default:
		stat.Title = req.Title
		stat.Slices = req.Slices
		if err := db.Model(&stat).Select("title", "slices").Updates(&stat).Error; err != nil {
			respondError(c, utils.FromDB(err, "Statistic"))
			return
		}
		logAudit(c, db, database.EntityStatistic, stat.ID, "update", "", stat.Category)
		c.JSON(http.StatusOK, stat)
	}
}

// UpdateStatistic rewrites a chart by id
func UpdateStatistic(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var req StatisticRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data"})
		return
	}

	db, cancel := dbFor(c)
	defer cancel()

	var stat database.Statistic
	if err := db.First(&stat, id).Error; err != nil {
		respondError(c, utils.FromDB(err, "Statistic"))
		return
	}
	if req.Category == "" {
		req.Category = stat.Category
	}
	if err := req.validate(); err != nil {
		respondError(c, err)
		return
	}

	stat.Category = req.Category
	stat.Title = req.Title
	stat.Slices = req.Slices
	if err := db.Model(&stat).Select("category", "title", "slices").Updates(&stat).Error; err != nil {
		if utils.IsDuplicateKey(err) {
			respondError(c, utils.Validation("a chart already exists for category "+req.Category, "category"))
			return
		}
		respondError(c, utils.FromDB(err, "Statistic"))
		return
	}
	logAudit(c, db, database.EntityStatistic, stat.ID, "update", "", stat.Category)
	c.JSON(http.StatusOK, stat)
}

// DeleteStatistic removes a chart
func DeleteStatistic(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	db, cancel := dbFor(c)
	defer cancel()

	result := db.Delete(&database.Statistic{}, id)
	if result.Error != nil {
		respondError(c, utils.FromDB(result.Error, "Statistic"))
		return
	}
	if result.RowsAffected == 0 {
		respondError(c, utils.NotFound("Statistic not found"))
		return
	}
	logAudit(c, db, database.EntityStatistic, id, "delete", "", "")
	c.JSON(http.StatusOK, gin.H{"message": "Statistic deleted successfully"})
}

package handler

import (
	"net/http"
	"strconv"

	"route-planner/model"

	"github.com/gin-gonic/gin"
)

// PointDetail 点以及经过它的路线
type PointDetail struct {
	model.Point
	Routes []model.Route `json:"routes"`
}

// GetPoints 获取所有点
func (h *Handler) GetPoints(c *gin.Context) {
	points := h.planner.Points()
	c.JSON(http.StatusOK, gin.H{
		"count":  len(points),
		"points": points,
	})
}

// GetPointByID 获取指定点
func (h *Handler) GetPointByID(c *gin.Context) {
	id := model.PointID(c.Param("id"))
	p, ok := h.planner.Point(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "点不存在: " + string(id)})
		return
	}
	c.JSON(http.StatusOK, PointDetail{Point: p, Routes: h.planner.IncidentRoutes(id)})
}

// SearchPoints 按 ID 或名称搜索点
func (h *Handler) SearchPoints(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请提供搜索关键词"})
		return
	}

	limit := 20
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit 必须是正整数"})
			return
		}
		limit = n
	}

	results := h.planner.SearchPoints(query)
	if len(results) > limit {
		results = results[:limit]
	}
	c.JSON(http.StatusOK, gin.H{
		"count":  len(results),
		"points": results,
	})
}

// NearestPoint 获取离给定坐标最近的点
func (h *Handler) NearestPoint(c *gin.Context) {
	lat, err1 := strconv.ParseFloat(c.Query("lat"), 64)
	lng, err2 := strconv.ParseFloat(c.Query("lng"), 64)
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat 和 lng 必须是数字"})
		return
	}

	p, ok := h.planner.FindNearestPoint(lat, lng)
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "地图数据未加载"})
		return
	}
	c.JSON(http.StatusOK, p)
}

// GetRoutes 获取所有路线
func (h *Handler) GetRoutes(c *gin.Context) {
	routes := h.planner.Routes()
	c.JSON(http.StatusOK, gin.H{
		"count":  len(routes),
		"routes": routes,
	})
}

// GetRouteByID 获取指定路线
func (h *Handler) GetRouteByID(c *gin.Context) {
	id := model.RouteID(c.Param("id"))
	r, ok := h.planner.Route(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "路线不存在: " + string(id)})
		return
	}
	c.JSON(http.StatusOK, r)
}

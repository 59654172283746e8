package handler

import (
	"errors"
	"log"
	"net/http"
	"path/filepath"

	"route-planner/algo"
	"route-planner/loader"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// LoadRequest 重新加载地图的请求
// 文件路径只能通过配置指定, 请求中不能覆盖
type LoadRequest struct {
	Source string `json:"source"` // files (默认) 或 db
}

// MapStats 地图概况
type MapStats struct {
	Points  int    `json:"points"`
	Routes  int    `json:"routes"`
	Version uint64 `json:"version"`
}

// GetMap 返回地图概况
func (h *Handler) GetMap(c *gin.Context) {
	c.JSON(http.StatusOK, h.stats())
}

// LoadMap 从文件或数据库重新加载地图, 失败时原地图保持不变
func (h *Handler) LoadMap(c *gin.Context) {
	var req LoadRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
			return
		}
	}
	if req.Source == "" {
		req.Source = "files"
	}

	ctx, span := tracer().Start(c.Request.Context(), "planner.LoadMap")
	defer span.End()
	span.SetAttributes(attribute.String("map.source", req.Source))

	var err error
	switch req.Source {
	case "files":
		err = h.planner.Load(h.pointsFile, h.routesFile)
	case "db":
		if h.maps == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "数据库未启用"})
			return
		}
		points, routes, loadErr := h.maps.LoadMap(ctx)
		if loadErr == nil {
			loadErr = h.planner.Replace(points, routes)
		}
		err = loadErr
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "未知的地图来源: " + req.Source})
		return
	}

	if err != nil {
		mapLoadsTotal.WithLabelValues(req.Source, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Printf("加载地图失败: %v", err)
		c.JSON(loadErrorStatus(err), loadErrorBody(err))
		return
	}

	mapLoadsTotal.WithLabelValues(req.Source, "ok").Inc()
	span.SetStatus(codes.Ok, "")
	h.invalidate()
	stats := h.stats()
	log.Printf("地图加载成功! 点: %d, 路线: %d", stats.Points, stats.Routes)
	c.JSON(http.StatusOK, stats)
}

// ImportMap 把当前地图写入数据库
func (h *Handler) ImportMap(c *gin.Context) {
	if h.maps == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "数据库未启用"})
		return
	}
	if h.planner.IsEmpty() {
		c.JSON(http.StatusConflict, gin.H{"error": "地图为空, 没有可导入的数据"})
		return
	}

	if err := h.maps.SaveMap(c.Request.Context(), h.planner.Points(), h.planner.Routes()); err != nil {
		log.Printf("导入数据库失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "导入数据库失败"})
		return
	}
	c.JSON(http.StatusOK, h.stats())
}

// ClearMap 清空地图
func (h *Handler) ClearMap(c *gin.Context) {
	h.planner.Clear()
	h.invalidate()
	log.Println("地图已清空")
	c.JSON(http.StatusOK, h.stats())
}

func (h *Handler) stats() MapStats {
	return MapStats{
		Points:  h.planner.PointCount(),
		Routes:  h.planner.RouteCount(),
		Version: h.planner.Version(),
	}
}

func loadErrorStatus(err error) int {
	var le *loader.LoadError
	switch {
	case errors.As(err, &le) && le.Code == loader.CodeOpen:
		return http.StatusNotFound
	case errors.As(err, &le),
		errors.Is(err, algo.ErrDuplicatePoint),
		errors.Is(err, algo.ErrDuplicateRoute),
		errors.Is(err, algo.ErrDanglingRoute),
		errors.Is(err, algo.ErrInvalidPoint),
		errors.Is(err, algo.ErrInvalidRoute):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// loadErrorBody 只返回原因、文件名和行号, 文件内容和完整路径只写日志
func loadErrorBody(err error) gin.H {
	var le *loader.LoadError
	if !errors.As(err, &le) {
		return gin.H{"error": err.Error()}
	}
	return gin.H{
		"error": "加载地图文件失败",
		"code":  le.Code.String(),
		"file":  filepath.Base(le.File),
		"line":  le.Line,
	}
}

package handler

import (
	"errors"
	"net/http"

	"route-planner/algo"
	"route-planner/model"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// PathRequest 路径规划请求
// 没有给出 ID 时, 使用离坐标最近的点
type PathRequest struct {
	Origin         string   `json:"origin"`                    // 起点 ID
	Destination    string   `json:"destination"`               // 终点 ID
	OriginLat      *float64 `json:"origin_lat,omitempty"`      // 起点纬度 (可选)
	OriginLng      *float64 `json:"origin_lng,omitempty"`      // 起点经度 (可选)
	DestinationLat *float64 `json:"destination_lat,omitempty"` // 终点纬度 (可选)
	DestinationLng *float64 `json:"destination_lng,omitempty"` // 终点经度 (可选)
}

// PathResponse 路径规划响应
type PathResponse struct {
	Found       bool       `json:"found"`
	Length      float64    `json:"length"` // 总长度 (公里), 未找到时为 -1
	Steps       []PathStep `json:"steps,omitempty"`
	OpenCount   int        `json:"open_count"`
	ClosedCount int        `json:"closed_count"`
	Cached      bool       `json:"cached"`
	Message     string     `json:"message,omitempty"`
}

// PathStep 路径中的一步, 第一步没有路线
type PathStep struct {
	RouteID     string  `json:"route_id,omitempty"`
	RouteName   string  `json:"route_name,omitempty"`
	RouteLength float64 `json:"route_length,omitempty"` // 公里
	PointID     string  `json:"point_id"`
	PointName   string  `json:"point_name"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
}

// FindPath 路径规划接口
func (h *Handler) FindPath(c *gin.Context) {
	var req PathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
		return
	}

	// 同一个请求只使用一个版本的地图
	snap := h.planner.Snapshot()

	origin, err := resolvePoint(snap, req.Origin, req.OriginLat, req.OriginLng)
	if err != nil {
		c.JSON(resolveErrorStatus(err), gin.H{"error": "起点无效: " + err.Error()})
		return
	}
	destination, err := resolvePoint(snap, req.Destination, req.DestinationLat, req.DestinationLng)
	if err != nil {
		c.JSON(resolveErrorStatus(err), gin.H{"error": "终点无效: " + err.Error()})
		return
	}

	res, cached, err := h.search(c.Request.Context(), snap, origin, destination)
	if err != nil {
		c.JSON(searchErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	resp := PathResponse{
		Found:       res.Found(),
		Length:      res.Length,
		Steps:       describe(snap, res.Path),
		OpenCount:   res.OpenCount,
		ClosedCount: res.ClosedCount,
		Cached:      cached,
	}
	if !res.Found() {
		resp.Message = "未找到连接两点的路径"
	}
	c.JSON(http.StatusOK, resp)
}

// PathGeoJSON 以 GeoJSON 返回路径: 一条 LineString 加上每个经过的点
func (h *Handler) PathGeoJSON(c *gin.Context) {
	origin, err := model.ParsePointID(c.Query("origin"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "起点无效: " + err.Error()})
		return
	}
	destination, err := model.ParsePointID(c.Query("destination"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "终点无效: " + err.Error()})
		return
	}

	snap := h.planner.Snapshot()
	res, _, err := h.search(c.Request.Context(), snap, origin, destination)
	if err != nil {
		c.JSON(searchErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	if !res.Found() {
		c.JSON(http.StatusNotFound, gin.H{"error": "未找到连接两点的路径"})
		return
	}

	data, err := pathFeatures(describe(snap, res.Path), res).MarshalJSON()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "生成 GeoJSON 失败"})
		return
	}
	c.Data(http.StatusOK, "application/geo+json", data)
}

func pathFeatures(steps []PathStep, res algo.Result) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	line := make(orb.LineString, 0, len(steps))
	for _, s := range steps {
		line = append(line, orb.Point{s.Lng, s.Lat})
	}
	path := geojson.NewFeature(line)
	path.Properties["length_km"] = res.Length
	path.Properties["open_count"] = res.OpenCount
	path.Properties["closed_count"] = res.ClosedCount
	fc.Append(path)

	for i, s := range steps {
		f := geojson.NewFeature(orb.Point{s.Lng, s.Lat})
		f.Properties["seq"] = i
		f.Properties["id"] = s.PointID
		f.Properties["name"] = s.PointName
		if s.RouteID != "" {
			f.Properties["route_id"] = s.RouteID
			f.Properties["route_name"] = s.RouteName
		}
		fc.Append(f)
	}
	return fc
}

// resolvePoint 优先使用 ID, 否则按坐标查找最近的点
func resolvePoint(snap algo.Snapshot, id string, lat, lng *float64) (model.PointID, error) {
	if id == "" && lat != nil && lng != nil {
		if p, ok := snap.FindNearestPoint(*lat, *lng); ok {
			return p.ID, nil
		}
		return "", algo.ErrEmptyMap
	}
	return model.ParsePointID(id)
}

// describe 用搜索时的快照给路径的每一步补上名称和坐标
func describe(snap algo.Snapshot, path model.Path) []PathStep {
	if len(path) == 0 {
		return nil
	}
	steps := make([]PathStep, 0, len(path))
	for _, s := range path {
		pt, _ := snap.Point(s.Point)
		step := PathStep{
			PointID:   string(s.Point),
			PointName: pt.Name,
			Lat:       pt.Lat,
			Lng:       pt.Lng,
		}
		if s.Route.Valid() {
			r, _ := snap.Route(s.Route)
			step.RouteID = string(s.Route)
			step.RouteName = r.Name
			step.RouteLength = r.Length
		}
		steps = append(steps, step)
	}
	return steps
}

func resolveErrorStatus(err error) int {
	if errors.Is(err, algo.ErrEmptyMap) {
		return http.StatusServiceUnavailable
	}
	return http.StatusBadRequest
}

func searchErrorStatus(err error) int {
	switch {
	case errors.Is(err, algo.ErrEmptyMap):
		return http.StatusServiceUnavailable
	case errors.Is(err, algo.ErrUnknownOrigin), errors.Is(err, algo.ErrUnknownDestination):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

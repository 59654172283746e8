package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"route-planner/algo"
	"route-planner/loader"
	"route-planner/model"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	fixturePoints = []model.Point{
		{ID: "A", Name: "Alfa", Lat: 0, Lng: 0},
		{ID: "B", Name: "Bravo", Lat: 0, Lng: 0.001},
		{ID: "C", Name: "Charlie", Lat: 0, Lng: 0.002},
		{ID: "D", Name: "Delta", Lat: 1, Lng: 1}, // 孤立点
	}
	fixtureRoutes = []model.Route{
		{ID: "R1", Name: "Rota 1", End1: "A", End2: "B", Length: 1},
		{ID: "R2", Name: "Rota 2", End1: "B", End2: "C", Length: 1},
		{ID: "R3", Name: "Rota 3", End1: "A", End2: "C", Length: 5},
	}
)

type fakeMaps struct {
	points []model.Point
	routes []model.Route
	saves  int
}

func (f *fakeMaps) SaveMap(_ context.Context, points []model.Point, routes []model.Route) error {
	f.points, f.routes = points, routes
	f.saves++
	return nil
}

func (f *fakeMaps) LoadMap(context.Context) ([]model.Point, []model.Route, error) {
	return f.points, f.routes, nil
}

type testServer struct {
	router  *gin.Engine
	handler *Handler
	planner *algo.Planner
	maps    *fakeMaps
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	p := algo.NewPlanner()
	require.NoError(t, p.Replace(fixturePoints, fixtureRoutes))

	maps := &fakeMaps{}
	h := New(p, Options{
		Maps:      maps,
		JWTSecret: "segredo-de-teste",
		CacheSize: 16,
	})

	r := gin.New()
	api := r.Group("/api")
	api.POST("/login", h.Login)
	api.POST("/register", h.Register)
	api.POST("/path/find", h.FindPath)
	api.GET("/path/geojson", h.PathGeoJSON)
	api.GET("/points", h.GetPoints)
	api.GET("/points/search", h.SearchPoints)
	api.GET("/points/nearest", h.NearestPoint)
	api.GET("/points/:id", h.GetPointByID)
	api.GET("/routes", h.GetRoutes)
	api.GET("/routes/:id", h.GetRouteByID)
	api.GET("/map", h.GetMap)

	require.NoError(t, EnsureAdmin(context.Background(), h.Users(), "admin", "admin123"))

	admin := api.Group("/", h.AuthMiddleware(), h.AdminOnly())
	admin.POST("/map/load", h.LoadMap)
	admin.POST("/map/import", h.ImportMap)
	admin.DELETE("/map", h.ClearMap)

	return &testServer{router: r, handler: h, planner: p, maps: maps}
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// token 以管理员身份登录
func (s *testServer) token(t *testing.T) string {
	t.Helper()
	return s.login(t, "admin", "admin123")
}

// userToken 注册一个普通用户并登录
func (s *testServer) userToken(t *testing.T, username string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/register", gin.H{"username": username, "password": "senha123"}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return s.login(t, username, "senha123")
}

func (s *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/login", gin.H{"username": username, "password": password}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

// useFiles 让 /api/map/load 读取给定的文件
func (s *testServer) useFiles(pointsFile, routesFile string) {
	s.handler.pointsFile, s.handler.routesFile = pointsFile, routesFile
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestFindPath(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/path/find", PathRequest{Origin: "A", Destination: "C"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[PathResponse](t, w)
	assert.True(t, resp.Found)
	assert.Equal(t, 2.0, resp.Length)
	assert.False(t, resp.Cached)
	assert.Equal(t, 3, resp.ClosedCount)
	require.Len(t, resp.Steps, 3)
	assert.Equal(t, PathStep{PointID: "A", PointName: "Alfa"}, resp.Steps[0])
	assert.Equal(t, PathStep{
		RouteID: "R2", RouteName: "Rota 2", RouteLength: 1,
		PointID: "C", PointName: "Charlie", Lat: 0, Lng: 0.002,
	}, resp.Steps[2])

	// 第二次命中缓存
	w = s.do(t, http.MethodPost, "/api/path/find", PathRequest{Origin: "A", Destination: "C"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[PathResponse](t, w).Cached)
}

func TestFindPathByCoordinates(t *testing.T) {
	s := newTestServer(t)
	lat0, lng0 := 0.00001, 0.00001
	lat1, lng1 := 0.0, 0.0021

	w := s.do(t, http.MethodPost, "/api/path/find", PathRequest{
		OriginLat: &lat0, OriginLng: &lng0,
		DestinationLat: &lat1, DestinationLng: &lng1,
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[PathResponse](t, w)
	require.Len(t, resp.Steps, 3)
	assert.Equal(t, "A", resp.Steps[0].PointID)
	assert.Equal(t, "C", resp.Steps[2].PointID)
}

func TestFindPathNoPath(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/path/find", PathRequest{Origin: "A", Destination: "D"}, "")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[PathResponse](t, w)
	assert.False(t, resp.Found)
	assert.Equal(t, -1.0, resp.Length)
	assert.Empty(t, resp.Steps)
	assert.Equal(t, 0, resp.OpenCount)
	assert.Equal(t, 3, resp.ClosedCount)
	assert.NotEmpty(t, resp.Message)
}

func TestFindPathErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   any
		clear  bool
		status int
	}{
		{"bad json", "not an object", false, http.StatusBadRequest},
		{"missing origin", PathRequest{Destination: "C"}, false, http.StatusBadRequest},
		{"separator in id", PathRequest{Origin: "A;B", Destination: "C"}, false, http.StatusBadRequest},
		{"unknown origin", PathRequest{Origin: "X", Destination: "C"}, false, http.StatusNotFound},
		{"unknown destination", PathRequest{Origin: "A", Destination: "X"}, false, http.StatusNotFound},
		{"empty map", PathRequest{Origin: "A", Destination: "C"}, true, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t)
			if tc.clear {
				s.planner.Clear()
			}
			w := s.do(t, http.MethodPost, "/api/path/find", tc.body, "")
			assert.Equal(t, tc.status, w.Code, w.Body.String())
			assert.Contains(t, decode[gin.H](t, w), "error")
		})
	}
}

func TestPathGeoJSON(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/path/geojson?origin=A&destination=C", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/geo+json", w.Header().Get("Content-Type"))

	fc, err := geojson.UnmarshalFeatureCollection(w.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, fc.Features, 4)

	line, ok := fc.Features[0].Geometry.(orb.LineString)
	require.True(t, ok)
	assert.Equal(t, orb.LineString{{0, 0}, {0.001, 0}, {0.002, 0}}, line)
	assert.Equal(t, 2.0, fc.Features[0].Properties.MustFloat64("length_km"))
	assert.Equal(t, "R1", fc.Features[2].Properties.MustString("route_id"))

	w = s.do(t, http.MethodGet, "/api/path/geojson?origin=A&destination=D", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/path/geojson?origin=A", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPointAndRouteQueries(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/points", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 4, decode[gin.H](t, w)["count"])

	w = s.do(t, http.MethodGet, "/api/points/B", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode[PointDetail](t, w)
	assert.Equal(t, "Bravo", detail.Name)
	require.Len(t, detail.Routes, 2)
	assert.Equal(t, model.RouteID("R1"), detail.Routes[0].ID)

	w = s.do(t, http.MethodGet, "/api/points/Z", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/points/search?q=ALF", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[gin.H](t, w)["count"])

	w = s.do(t, http.MethodGet, "/api/points/search", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/points/search?q=a&limit=0", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/points/nearest?lat=0.9&lng=1.1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.PointID("D"), decode[model.Point](t, w).ID)

	w = s.do(t, http.MethodGet, "/api/points/nearest?lat=x", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/routes", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 3, decode[gin.H](t, w)["count"])

	w = s.do(t, http.MethodGet, "/api/routes/R3", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5.0, decode[model.Route](t, w).Length)

	w = s.do(t, http.MethodGet, "/api/routes/R9", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodDelete, "/api/map", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodDelete, "/api/map", nil, "nao-e-um-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := s.token(t)

	w = s.do(t, http.MethodPost, "/api/register", gin.H{"username": "admin", "password": "outra123"}, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/api/register", gin.H{"username": "curto", "password": "123"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/login", gin.H{"username": "admin", "password": "errada"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/login", gin.H{"username": "ninguem", "password": "admin123"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodDelete, "/api/map", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, s.planner.IsEmpty())
}

func writeFiles(t *testing.T, points, routes string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	pp, rp := filepath.Join(dir, "pontos.csv"), filepath.Join(dir, "rotas.csv")
	require.NoError(t, os.WriteFile(pp, []byte(points), 0o644))
	require.NoError(t, os.WriteFile(rp, []byte(routes), 0o644))
	return pp, rp
}

func TestLoadMap(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t)

	// 先缓存一次结果
	w := s.do(t, http.MethodPost, "/api/path/find", PathRequest{Origin: "A", Destination: "C"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	before := s.planner.Version()

	pp, rp := writeFiles(t,
		loader.PointsHeader+"\nA;Alfa;0;0\nC;Charlie;0;0.002\n",
		loader.RoutesHeader+"\nAC;Direta;A;C;7\n")

	s.useFiles(pp, rp)
	w = s.do(t, http.MethodPost, "/api/map/load", nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	stats := decode[MapStats](t, w)
	assert.Equal(t, MapStats{Points: 2, Routes: 1, Version: before + 1}, stats)

	// 地图变化后不会命中旧缓存
	w = s.do(t, http.MethodPost, "/api/path/find", PathRequest{Origin: "A", Destination: "C"}, "")
	resp := decode[PathResponse](t, w)
	assert.False(t, resp.Cached)
	assert.Equal(t, 7.0, resp.Length)
}

func TestLoadMapFailureKeepsMap(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t)

	pp, rp := writeFiles(t,
		loader.PointsHeader+"\nA;Alfa;0;0\nA;Alfa 2;0;0\n",
		loader.RoutesHeader+"\nAC;Direta;A;A;7\n")

	s.useFiles(pp, rp)
	w := s.do(t, http.MethodPost, "/api/map/load", nil, token)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	body := decode[gin.H](t, w)
	assert.Equal(t, "duplicate_point", body["code"])
	assert.Equal(t, "pontos.csv", body["file"])
	assert.EqualValues(t, 3, body["line"])
	assert.Equal(t, 4, s.planner.PointCount())

	s.useFiles(pp+".x", rp)
	w = s.do(t, http.MethodPost, "/api/map/load", nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/map/load", LoadRequest{Source: "ftp"}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImportAndLoadFromDatabase(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t)

	w := s.do(t, http.MethodPost, "/api/map/import", nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, s.maps.saves)
	assert.Equal(t, fixturePoints, s.maps.points)
	assert.Equal(t, fixtureRoutes, s.maps.routes)

	w = s.do(t, http.MethodDelete, "/api/map", nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/map/import", nil, token)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/api/map/load", LoadRequest{Source: "db"}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 4, s.planner.PointCount())

	w = s.do(t, http.MethodGet, "/api/map", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, decode[MapStats](t, w).Routes)
}

func TestDatabaseDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := New(algo.NewPlanner(), Options{JWTSecret: "x"})
	r := gin.New()
	r.POST("/import", h.ImportMap)
	r.POST("/load", h.LoadMap)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/import", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/load", bytes.NewBufferString(`{"source":"db"}`)))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestEnsureAdmin(t *testing.T) {
	users := NewMemoryUsers()
	ctx := context.Background()

	require.NoError(t, EnsureAdmin(ctx, users, "admin", "admin123"))
	first, err := users.FindUser(ctx, "admin")
	require.NoError(t, err)
	assert.True(t, first.IsAdmin())

	// 已存在时不修改密码
	require.NoError(t, EnsureAdmin(ctx, users, "admin", "outra-senha"))
	again, err := users.FindUser(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, first.Password, again.Password)
	assert.Equal(t, uint(1), again.ID)

	// 同名的普通用户不会被提升
	require.NoError(t, users.CreateUser(ctx, &model.User{Username: "maria", Role: model.RoleUser}))
	err = EnsureAdmin(ctx, users, "maria", "admin123")
	require.ErrorIs(t, err, ErrNotAdmin)
	maria, err := users.FindUser(ctx, "maria")
	require.NoError(t, err)
	assert.False(t, maria.IsAdmin())
}

func TestMapChangesRequireAdmin(t *testing.T) {
	s := newTestServer(t)
	token := s.userToken(t, "visitante")

	pp, rp := writeFiles(t,
		loader.PointsHeader+"\nA;Alfa;0;0\n",
		loader.RoutesHeader+"\nAA;Volta;A;A;1\n")
	s.useFiles(pp, rp)

	w := s.do(t, http.MethodPost, "/api/map/load", nil, token)
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	w = s.do(t, http.MethodPost, "/api/map/import", nil, token)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = s.do(t, http.MethodDelete, "/api/map", nil, token)
	assert.Equal(t, http.StatusForbidden, w.Code)

	assert.Equal(t, 4, s.planner.PointCount())
	assert.Equal(t, 0, s.maps.saves)

	// 普通用户仍然可以查询
	w = s.do(t, http.MethodPost, "/api/path/find", PathRequest{Origin: "A", Destination: "C"}, token)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLoadMapIgnoresPathsInRequest(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t)

	dir := t.TempDir()
	secret := filepath.Join(dir, "segredo.txt")
	require.NoError(t, os.WriteFile(secret, []byte("DB_PASSWORD=hunter2\n"), 0o600))

	// 请求中的路径不会被使用, 仍然读取配置的文件
	pp, rp := writeFiles(t,
		loader.PointsHeader+"\nA;Alfa;0;0\n",
		loader.RoutesHeader+"\nAA;Volta;A;A;1\n")
	s.useFiles(pp, rp)
	w := s.do(t, http.MethodPost, "/api/map/load", gin.H{"points_file": secret, "routes_file": secret}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, s.planner.PointCount())

	// 配置的文件格式错误时, 响应中不包含文件内容和完整路径
	s.useFiles(secret, rp)
	w = s.do(t, http.MethodPost, "/api/map/load", nil, token)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.NotContains(t, w.Body.String(), "hunter2")
	assert.NotContains(t, w.Body.String(), dir)
	body := decode[gin.H](t, w)
	assert.Equal(t, "header", body["code"])
	assert.Equal(t, "segredo.txt", body["file"])
}

func TestDescribeUsesSearchSnapshot(t *testing.T) {
	s := newTestServer(t)

	snap := s.planner.Snapshot()
	res, _, err := s.handler.search(context.Background(), snap, "A", "C")
	require.NoError(t, err)

	// 搜索之后地图被清空
	s.planner.Clear()

	steps := describe(snap, res.Path)
	require.Len(t, steps, 3)
	assert.Equal(t, "Alfa", steps[0].PointName)
	assert.Equal(t, "Rota 2", steps[2].RouteName)
	assert.Equal(t, 0.002, steps[2].Lng)
}

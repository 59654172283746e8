package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"route-planner/algo"
	"route-planner/config"
	"route-planner/db"
	"route-planner/handler"
	"route-planner/model"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// consoleOptions 命令行模式的参数, 都为空时启动 HTTP 服务
type consoleOptions struct {
	from     string
	to       string
	printMap bool
}

func (o consoleOptions) enabled() bool {
	return o.printMap || o.from != "" || o.to != ""
}

func main() {
	pointsFile := flag.String("points", "", "点文件路径 (默认使用 POINTS_FILE)")
	routesFile := flag.String("routes", "", "路线文件路径 (默认使用 ROUTES_FILE)")
	var opts consoleOptions
	flag.StringVar(&opts.from, "from", "", "起点 ID, 与 -to 一起使用时计算一条路径后退出")
	flag.StringVar(&opts.to, "to", "", "终点 ID")
	flag.BoolVar(&opts.printMap, "print", false, "打印地图中的点和路线后退出")
	flag.Parse()

	fmt.Println("=== Route Planner - 最短路径规划 ===")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}
	if *pointsFile != "" {
		cfg.PointsFile = *pointsFile
	}
	if *routesFile != "" {
		cfg.RoutesFile = *routesFile
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, opts)
	stop()
	if err != nil {
		log.Fatalf("%v", err)
	}
}

func run(ctx context.Context, cfg *config.Config, opts consoleOptions) error {
	// 1. 初始化数据库 (可选)
	var store *db.Store
	if cfg.DB.Enabled {
		var err error
		if store, err = db.Open(ctx, cfg.DB); err != nil {
			return err
		}
	}

	// 2. 加载地图
	planner := algo.NewPlanner()
	if err := loadMap(ctx, cfg, planner, store); err != nil {
		if opts.enabled() {
			return fmt.Errorf("加载地图失败: %w", err)
		}
		log.Printf("警告: 加载地图失败, 以空地图启动 (可通过 /api/map/load 重新加载): %v", err)
	} else {
		log.Printf("地图加载成功! 点: %d, 路线: %d", planner.PointCount(), planner.RouteCount())
	}

	if opts.enabled() {
		return runConsole(os.Stdout, planner, opts)
	}
	return serve(ctx, cfg, planner, store)
}

func loadMap(ctx context.Context, cfg *config.Config, planner *algo.Planner, store *db.Store) error {
	if cfg.MapSource == config.SourceDB {
		points, routes, err := store.LoadMap(ctx)
		if err != nil {
			return err
		}
		return planner.Replace(points, routes)
	}
	return planner.Load(cfg.PointsFile, cfg.RoutesFile)
}

// runConsole 命令行模式: 打印地图和/或计算一条路径
func runConsole(w io.Writer, planner *algo.Planner, opts consoleOptions) error {
	if opts.printMap {
		fmt.Fprintf(w, "点 (%d):\n%s", planner.PointCount(), planner.FormatPoints())
		fmt.Fprintf(w, "路线 (%d):\n%s", planner.RouteCount(), planner.FormatRoutes())
	}
	if opts.from == "" && opts.to == "" {
		return nil
	}

	origin, err := model.ParsePointID(opts.from)
	if err != nil {
		return fmt.Errorf("起点无效: %w", err)
	}
	destination, err := model.ParsePointID(opts.to)
	if err != nil {
		return fmt.Errorf("终点无效: %w", err)
	}

	res, err := planner.FindPath(origin, destination)
	if err != nil {
		return err
	}
	fmt.Fprint(w, planner.FormatPath(res))
	return nil
}

func serve(ctx context.Context, cfg *config.Config, planner *algo.Planner, store *db.Store) error {
	opts := handler.Options{
		PointsFile: cfg.PointsFile,
		RoutesFile: cfg.RoutesFile,
		JWTSecret:  cfg.JWTSecret,
		JWTTTL:     cfg.JWTTTL,
		CacheSize:  cfg.PathCacheSize,
		CacheTTL:   cfg.PathCacheTTL,
	}
	// store 为 nil 时不能赋给接口, 否则接口不为 nil
	if store != nil {
		opts.Users = store
		opts.Maps = store
	}
	h := handler.New(planner, opts)

	if cfg.AdminUser != "" {
		if err := handler.EnsureAdmin(ctx, h.Users(), cfg.AdminUser, cfg.AdminPassword); err != nil {
			return fmt.Errorf("创建管理员失败: %w", err)
		}
	}

	gin.SetMode(cfg.GinMode)
	r := gin.Default()
	setupRoutes(r, h)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("服务器启动中... 访问地址: http://localhost%s", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("服务器启动失败: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("正在关闭服务器...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// setupRoutes 配置路由
func setupRoutes(r *gin.Engine, h *handler.Handler) {
	// CORS 跨域中间件
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AddAllowHeaders("Authorization")
	r.Use(cors.New(corsConfig))

	// 健康检查
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"status":  "ok",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API 路由组
	api := r.Group("/api")
	{
		// 公开接口 (无需认证)
		api.POST("/login", h.Login)
		api.POST("/register", h.Register)

		// 路径规划
		api.POST("/path/find", h.FindPath)
		api.GET("/path/geojson", h.PathGeoJSON)

		// 地图查询
		api.GET("/map", h.GetMap)
		api.GET("/points", h.GetPoints)
		api.GET("/points/search", h.SearchPoints)
		api.GET("/points/nearest", h.NearestPoint)
		api.GET("/points/:id", h.GetPointByID)
		api.GET("/routes", h.GetRoutes)
		api.GET("/routes/:id", h.GetRouteByID)

		// 修改地图需要管理员
		authorized := api.Group("/")
		authorized.Use(h.AuthMiddleware(), h.AdminOnly())
		{
			authorized.POST("/map/load", h.LoadMap)
			authorized.POST("/map/import", h.ImportMap)
			authorized.DELETE("/map", h.ClearMap)
		}
	}
}

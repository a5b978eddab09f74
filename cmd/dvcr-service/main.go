package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/FleetDVCR/FleetDVCR/internal/blob"
	"github.com/FleetDVCR/FleetDVCR/internal/common/config"
	"github.com/FleetDVCR/FleetDVCR/internal/common/db"
	"github.com/FleetDVCR/FleetDVCR/internal/common/logger"
	"github.com/FleetDVCR/FleetDVCR/internal/common/server"
	"github.com/FleetDVCR/FleetDVCR/internal/common/tracing"
	"github.com/FleetDVCR/FleetDVCR/internal/inspection"
	"github.com/FleetDVCR/FleetDVCR/internal/pm"
	"github.com/FleetDVCR/FleetDVCR/internal/user"
	"github.com/FleetDVCR/FleetDVCR/internal/vehicle"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

var (
	configPath = flag.String("config", "configs/dvcr-service.json", "配置文件路径")
)

func main() {
	flag.Parse()

	// 加载配置
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output, cfg.Log.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}

	// 初始化链路追踪
	tracer, closer, err := tracing.InitTracer(
		cfg.Server.Name,
		cfg.Jaeger.Endpoint,
		cfg.Jaeger.Sampler,
	)
	if err != nil {
		log.Warnf("failed to init tracer: %v", err)
	} else {
		defer closer.Close()
	}
	_ = tracer

	// 初始化数据库
	gormDB, err := db.NewMySQL(
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Database,
		cfg.Database.MaxIdle,
		cfg.Database.MaxOpen,
	)
	if err != nil {
		log.Fatalf("failed to init mysql: %v", err)
	}
	if err := gormDB.AutoMigrate(
		&user.User{},
		&user.Role{},
		&vehicle.Vehicle{},
		&inspection.Report{},
		&inspection.Defect{},
		&inspection.Photo{},
		&inspection.Note{},
		&pm.ServiceRecord{},
		&pm.PMAppointment{},
	); err != nil {
		log.Fatalf("failed to migrate mysql schema: %v", err)
	}

	// 照片 blob 存储
	store, err := blob.NewLocalStore(cfg.Upload.Dir)
	if err != nil {
		log.Fatalf("failed to init blob store: %v", err)
	}

	// 组装各领域服务
	userRepo := user.NewRepo(gormDB)
	userSvc := user.NewService(userRepo, cfg.Auth)

	vehicleRepo := vehicle.NewRepo(gormDB)
	vehicleSvc := vehicle.NewService(vehicleRepo, store, log)

	inspectionSvc := inspection.NewService(inspection.NewRepo(gormDB), vehicleRepo, store, log)
	pmSvc := pm.NewService(pm.NewRepo(gormDB), vehicleRepo, cfg.PM, log)

	if err := seedDemoData(userRepo, vehicleRepo, log); err != nil {
		log.Fatalf("failed to seed demo data: %v", err)
	}

	// 定时扫描保养告警
	sweeper := cron.New()
	if _, err := sweeper.AddFunc(cfg.PM.AlertSweepSpec, func() {
		pmSvc.SweepAlerts(context.Background())
	}); err != nil {
		log.Warnf("failed to schedule pm alert sweep: %v", err)
	} else {
		sweeper.Start()
		defer sweeper.Stop()
	}

	// 启动统一的 HTTP 服务模板
	if err := server.RunHTTPServer(cfg, log, func(r *gin.Engine) error {
		user.RegisterRoutes(r, userSvc)
		vehicle.RegisterRoutes(r, vehicleSvc, userSvc)
		inspection.RegisterRoutes(r, inspectionSvc, userSvc)
		pm.RegisterRoutes(r, pmSvc, userSvc)
		return nil
	}); err != nil {
		log.Fatalf("dvcr-service exited with error: %v", err)
	}
}

// seedDemoData 首次启动时写入演示账号和两台演示车辆，
// 库里已有用户时跳过。
func seedDemoData(users *user.Repo, vehicles *vehicle.Repo, log logger.Logger) error {
	ctx := context.Background()
	n, err := users.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	demoUsers := []struct {
		name  string
		email string
		role  string
	}{
		{"Alice Driver", "driver@example.com", "driver"},
		{"Manny Manager", "manager@example.com", "manager"},
		{"Mec McWrench", "mechanic@example.com", "mechanic"},
	}
	for _, d := range demoUsers {
		hash, err := user.HashPassword("password123")
		if err != nil {
			return err
		}
		if err := users.Create(ctx, &user.User{
			ID:           uuid.NewString(),
			Name:         d.name,
			Email:        d.email,
			Role:         d.role,
			PasswordHash: hash,
		}); err != nil {
			return err
		}
	}

	demoVehicles := []*vehicle.Vehicle{
		{ID: uuid.NewString(), Number: "78014", VIN: "VIN78014", Active: true, Odometer: 18000},
		{ID: uuid.NewString(), Number: "78988", VIN: "VIN78988", Active: true, Odometer: 9500},
	}
	for _, v := range demoVehicles {
		if err := vehicles.Create(ctx, v); err != nil {
			return err
		}
	}

	log.Infof("seeded %d demo users and %d demo vehicles", len(demoUsers), len(demoVehicles))
	return nil
}

// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"vectorflow-go/internal/config"
	"vectorflow-go/internal/handler"
	"vectorflow-go/internal/middleware"
	"vectorflow-go/internal/pipeline"
	"vectorflow-go/internal/pipeline/extract"
	"vectorflow-go/internal/repository"
	"vectorflow-go/internal/service"
	"vectorflow-go/internal/status"
	"vectorflow-go/pkg/database"
	"vectorflow-go/pkg/embedding"
	"vectorflow-go/pkg/es"
	"vectorflow-go/pkg/kafka"
	"vectorflow-go/pkg/log"
	"vectorflow-go/pkg/storage"
	"vectorflow-go/pkg/token"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库与外部依赖
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch, cfg.Embedding.Dimensions); err != nil {
		log.Errorf("es 初始化失败 %s", err)
		return
	}
	kafka.InitProducer(cfg.Kafka)
	defer kafka.CloseProducer()

	// 4. 初始化 Repository 与基础客户端
	userRepo := repository.NewUserRepository(database.DB)
	docRepo := repository.NewDocumentRepository(database.DB)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	blobStore := storage.NewMinioStore()
	vectorIndex := es.NewVectorIndex(cfg.Elasticsearch.IndexName)

	// 5. 组装文档处理管道
	retryPolicy := pipeline.RetryPolicy{
		MaxAttempts: cfg.Pipeline.Retry.MaxAttempts,
		BaseDelay:   cfg.Pipeline.Retry.BaseDelay(),
		MaxDelay:    cfg.Pipeline.Retry.MaxDelay(),
		Retryable:   pipeline.DefaultRetryable,
	}
	statusHub := status.NewHub()
	tracker := pipeline.NewStatusTracker(docRepo, statusHub)
	batcher := pipeline.NewEmbeddingBatcher(embeddingClient, retryPolicy)
	upserter := pipeline.NewVectorUpserter(vectorIndex, retryPolicy)
	cleanup := pipeline.NewCleanupManager(blobStore, vectorIndex)
	processor := pipeline.NewProcessor(
		docRepo,
		blobStore,
		extract.NewRegistry(),
		batcher,
		upserter,
		vectorIndex,
		tracker,
		retryPolicy,
		cfg.Pipeline,
	)
	scheduler := pipeline.NewScheduler(processor, tracker, cleanup, docRepo, cfg.Pipeline.ProcessingTimeout())

	// 6. 初始化 Service (依赖注入)
	userService := service.NewUserService(userRepo, jwtManager)
	uploadService := service.NewUploadService(docRepo, blobStore, kafka.ProduceDocumentTask, cfg.Upload, cfg.MinIO)
	documentService := service.NewDocumentService(docRepo, blobStore, vectorIndex, scheduler, kafka.ProduceDocumentTask, blobStore.PresignURL)

	// 7. 启动后台 Kafka 消费者
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	go kafka.StartConsumer(consumerCtx, cfg.Kafka, scheduler)

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 9. 注册路由
	userHandler := handler.NewUserHandler(userService)
	uploadHandler := handler.NewUploadHandler(uploadService)
	documentHandler := handler.NewDocumentHandler(documentService)
	statusHandler := handler.NewStatusHandler(documentService, statusHub)

	apiV1 := r.Group("/api/v1")
	{
		users := apiV1.Group("/users")
		{
			// 无需认证的路由 (公开访问)
			users.POST("/register", userHandler.Register)
			users.POST("/login", userHandler.Login)

			// 需要认证的路由 (仅限登录用户访问)
			authed := users.Group("/")
			authed.Use(middleware.AuthMiddleware(jwtManager, userService))
			{
				authed.GET("/me", userHandler.GetProfile)
				authed.POST("/logout", userHandler.Logout)
			}
		}

		// Document 路由组，需要认证
		documents := apiV1.Group("/documents")
		documents.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			documents.POST("/upload", uploadHandler.Upload)
			documents.GET("", documentHandler.List)
			documents.GET("/:id", documentHandler.Get)
			documents.GET("/:id/download", documentHandler.Download)
			documents.DELETE("/:id", documentHandler.Delete)
			documents.POST("/:id/reprocess", documentHandler.Reprocess)
			documents.GET("/:id/status/ws", statusHandler.Stream)
		}

		// 项目统计，需要认证
		projects := apiV1.Group("/projects")
		projects.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			projects.GET("/:projectId/stats", documentHandler.Stats)
		}
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 先停掉消费者，避免停机期间接收新任务
	stopConsumer()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已优雅关闭")
}

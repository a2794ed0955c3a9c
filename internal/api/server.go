package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"taskhub/internal/api/auth"
	"taskhub/internal/api/middleware"
	"taskhub/internal/config"
	"taskhub/internal/pkg/audit"
	"taskhub/internal/pkg/challenge"
	"taskhub/internal/pkg/dedup"
	"taskhub/internal/pkg/objstore"
	"taskhub/internal/pkg/ratelimit"
	"taskhub/internal/pkg/token"
	"taskhub/internal/pkg/walletsig"
	"taskhub/internal/service"
	"taskhub/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server 封装了 API 服务所需的依赖和路由处理。
//
// 它持有数据库连接、Redis 客户端、各业务服务以及 Gin 路由引擎。
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	db      *gorm.DB
	rdb     *redis.Client
	router  *gin.Engine
	auth    *auth.Handler
	tokens  *token.Manager
	limiter *ratelimit.Limiter
	audit   *audit.Writer

	users    *service.UserService
	groups   *service.GroupService
	tasks    *service.TaskService
	evidence *service.EvidenceService
	comments *service.CommentService
}

// Stores 汇总 Server 使用的存储实现。
type Stores struct {
	Users      service.UserStore
	Groups     service.GroupStore
	Members    service.MemberStore
	Tasks      service.TaskStore
	Evidence   service.EvidenceStore
	Comments   service.CommentStore
	Challenges service.ChallengeStore
	Audit      audit.Sink
}

// NewServer 初始化 API 服务器。
//
// 它负责：
// 1. 连接数据库（MySQL / Postgres）并执行自动迁移
// 2. 连接 Redis（挑战存储、限流、签名去重）
// 3. 按需初始化对象存储预签名
// 4. 组装业务服务并注册路由
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := store.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	var presigner service.UploadPresigner
	if cfg.Storage.Enabled() {
		p, err := objstore.New(ctx, objstore.Options{
			Endpoint:        cfg.Storage.Endpoint,
			Region:          cfg.Storage.Region,
			Bucket:          cfg.Storage.Bucket,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			PublicBaseURL:   cfg.Storage.PublicBaseURL,
			PresignTTL:      time.Duration(cfg.Storage.PresignTTL) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("init object storage: %w", err)
		}
		presigner = p
	}

	stores := Stores{
		Users:      store.NewUserStore(db),
		Groups:     store.NewGroupStore(db),
		Members:    store.NewMemberStore(db),
		Tasks:      store.NewTaskStore(db),
		Evidence:   store.NewEvidenceStore(db),
		Comments:   store.NewCommentStore(db),
		Challenges: challenge.NewStore(rdb, cfg.Auth.ChallengeTTL),
		Audit:      store.NewAuditStore(db),
	}
	s := newServer(cfg, logger, stores, rdb, presigner)
	s.db = db
	return s, nil
}

// newServer 用给定存储组装服务与路由，测试中可直接注入内存实现。
func newServer(cfg *config.Config, logger *slog.Logger, stores Stores, rdb *redis.Client, presigner service.UploadPresigner) *Server {
	tokens := token.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	verifier := walletsig.NewVerifier()
	writer := audit.NewWriter(logger, stores.Audit, cfg.Audit.Workers, cfg.Audit.Capacity)

	var deduper service.Deduper
	var limiter *ratelimit.Limiter
	if rdb != nil {
		deduper = dedup.NewDeduplicator(rdb, time.Duration(cfg.App.DedupWindow)*time.Second)
		limiter = ratelimit.NewRedisRateLimiter(rdb, logger, "taskhub:ratelimit:", cfg.Auth.ChallengeRate, cfg.Auth.ChallengeBurst)
	}

	authSvc := service.NewAuthService(stores.Challenges, stores.Users, verifier, tokens, logger)
	taskSvc := service.NewTaskService(stores.Tasks, stores.Members, stores.Evidence, writer, logger)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		rdb:      rdb,
		router:   r,
		auth:     auth.NewHandler(authSvc, logger),
		tokens:   tokens,
		limiter:  limiter,
		audit:    writer,
		users:    service.NewUserService(stores.Users, stores.Groups, stores.Members, stores.Tasks, stores.Evidence, logger),
		groups:   service.NewGroupService(stores.Groups, stores.Members, logger),
		tasks:    taskSvc,
		evidence: service.NewEvidenceService(taskSvc, stores.Evidence, stores.Users, verifier, deduper, presigner, logger),
		comments: service.NewCommentService(stores.Comments, stores.Tasks, stores.Members, writer, logger),
	}
	s.registerRoutes()
	return s
}

// Router 返回 HTTP 路由处理器。
func (s *Server) Router() http.Handler {
	return s.router
}

// StartAuditWriter 启动审计日志写入 worker。
func (s *Server) StartAuditWriter(ctx context.Context) {
	s.audit.Start(ctx)
}

// Close 刷新审计队列并关闭数据库与缓存连接。
func (s *Server) Close() error {
	var errs []error
	if s.audit != nil {
		if err := s.audit.Shutdown(5 * time.Second); err != nil {
			errs = append(errs, fmt.Errorf("audit shutdown: %w", err))
		}
	}
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			errs = append(errs, err)
		} else if err := sqlDB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// registerRoutes 注册所有的 API 路由。
func (s *Server) registerRoutes() {
	// Prometheus metrics 端点
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/healthz", s.handleHealthz)

	authGroup := s.router.Group("/auth")
	authGroup.POST("/challenge", middleware.RateLimit(s.limiter, "auth_challenge", s.logger), s.auth.Challenge)
	authGroup.POST("/verify", s.auth.Verify)

	authed := s.router.Group("/")
	authed.Use(middleware.AuthMiddleware(s.tokens))

	authed.GET("/users", s.handleListUsers)
	authed.GET("/users/:wallet", s.handleGetUser)
	authed.PUT("/users/:wallet", s.handleUpdateUser)
	authed.PATCH("/users/:wallet/preferences", s.handleUpdatePreferences)

	authed.POST("/groups", s.handleCreateGroup)
	authed.GET("/groups", s.handleListGroups)
	authed.GET("/groups/:id", s.handleGetGroup)
	authed.PUT("/groups/:id", s.handleUpdateGroup)
	authed.DELETE("/groups/:id", s.handleDeleteGroup)

	authed.POST("/group-members", s.handleAddMember)
	authed.POST("/group-members/join", s.handleJoinGroup)
	authed.GET("/group-members/:group_id", s.handleListMembers)
	authed.PATCH("/group-members/by-wallet/:group_id", s.handleUpdateMember)
	authed.DELETE("/group-members/:member_id", s.handleRemoveMember)

	authed.POST("/tasks", s.handleCreateTask)
	authed.GET("/tasks", s.handleListTasks)
	authed.GET("/tasks/:id", s.handleGetTask)
	authed.PUT("/tasks/:id", s.handleUpdateTask)
	authed.DELETE("/tasks/:id", s.handleDeleteTask)
	authed.POST("/tasks/:id/attachments", s.handleAddAttachment)
	authed.GET("/tasks/:id/attachments", s.handleListAttachments)
	authed.POST("/tasks/:id/attachments/upload-url", s.handlePresignUpload)
	authed.POST("/tasks/:id/verifications", s.handleAddVerification)
	authed.GET("/tasks/:id/verifications", s.handleListVerifications)

	authed.POST("/comments", s.handleCreateComment)
	authed.GET("/comments/task/:task_id", s.handleListComments)
	authed.GET("/comments/:id", s.handleGetComment)
	authed.PUT("/comments/:id", s.handleUpdateComment)
	authed.DELETE("/comments/:id", s.handleDeleteComment)
}

func (s *Server) handleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.db == nil || s.rdb == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	var one int
	if err := s.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// actor 从上下文取出调用方身份与客户端信息。
func actor(c *gin.Context) service.Actor {
	return service.Actor{
		UserID:        c.GetString(middleware.CtxUserID),
		WalletAddress: c.GetString(middleware.CtxWalletAddress),
		IP:            c.ClientIP(),
		UserAgent:     c.Request.UserAgent(),
	}
}

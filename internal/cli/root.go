package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"rota-planner/backend/config"
	"rota-planner/backend/internal/repository"
	"rota-planner/backend/internal/service"
	"rota-planner/backend/pkg/database"
	"rota-planner/backend/pkg/jwt"
	applogger "rota-planner/backend/pkg/logger"
	"rota-planner/backend/pkg/redis"
)

// RootOptions 全局参数
type RootOptions struct {
	ConfigPath string
	Format     string // "text" | "json"
}

// ValidFormats 允许的输出格式
var ValidFormats = []string{"text", "json"}

// cliUserID 命令行操作在审计日志中的操作者
const cliUserID = "rotactl"

// NewRootCommand 创建 rotactl 根命令
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "rotactl",
		Short: "rotactl - 轮转排班运维工具",
		Long:  "轮转排班后台的运维命令行：数据库迁移、签发测试令牌、自动排班与财年状态流转。",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range ValidFormats {
				if f == opts.Format {
					return nil
				}
			}
			return fmt.Errorf("无效的输出格式 %q，可选 %v", opts.Format, ValidFormats)
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "配置文件路径（默认 ./config/config.yaml）")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "输出格式 (json|text)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewAutoAssignCommand(opts))
	cmd.AddCommand(NewTransitionCommand(opts))

	return cmd
}

// ── 运行环境 ──

// runtime 命令执行所需依赖
type runtime struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
	rdb    *redis.Client
}

func (r *runtime) close() {
	if r.db != nil {
		if sqlDB, err := r.db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	if r.rdb != nil {
		r.rdb.Close()
	}
	r.logger.Sync()
}

// loadRuntime 加载配置与日志，withDB 为 true 时连接数据库与 Redis
func loadRuntime(opts *RootOptions, withDB bool) (*runtime, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	rt := &runtime{cfg: cfg, logger: logger}
	if !withDB {
		return rt, nil
	}

	rt.db, err = database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}
	if cfg.Redis.Addr != "" {
		rt.rdb, err = redis.NewClient(&cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis 连接失败，使用进程内锁", zap.Error(err))
			rt.rdb = nil
		}
	}
	return rt, nil
}

// services 与 HTTP 服务共用同一套 Service 装配
// 未配置 Redis 时使用进程内锁，此时不应与运行中的多实例服务并发操作
func (r *runtime) services() *service.Service {
	var (
		locker service.Locker
		cache  service.SummaryCache
	)
	if r.rdb != nil {
		locker = service.NewRedisLocker(r.rdb, r.cfg.Scheduling.LockTTL, r.cfg.Scheduling.LockWait)
		cache = service.NewRedisSummaryCache(r.rdb, r.cfg.Scheduling.SummaryCacheTTL, r.logger)
	} else {
		locker = service.NewLocalLocker(r.cfg.Scheduling.LockWait)
		cache = service.NewMemorySummaryCache()
	}
	return service.NewService(r.cfg, repository.NewRepository(r.db), locker, cache, r.logger)
}

func adminActor() service.Actor {
	return service.Actor{UserID: cliUserID, Role: jwt.RoleAdmin}
}

// ── 输出 ──

// printResult 按格式输出；text 模式使用 textFn
func printResult(w io.Writer, format string, v interface{}, textFn func(io.Writer)) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	textFn(w)
	return nil
}

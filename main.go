package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/thumb-hub/thumb-hub/internal/cache"
	"github.com/thumb-hub/thumb-hub/internal/config"
	"github.com/thumb-hub/thumb-hub/internal/logging"
	"github.com/thumb-hub/thumb-hub/internal/media"
	"github.com/thumb-hub/thumb-hub/internal/server"
	"github.com/thumb-hub/thumb-hub/internal/server/routes"
	"github.com/thumb-hub/thumb-hub/internal/sizepolicy"
	"github.com/thumb-hub/thumb-hub/internal/storage"
	"github.com/thumb-hub/thumb-hub/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["size_mode"] = cfg.Global.SizeMode
		fields["sizes"] = len(cfg.Sizes)
		fields["source_mode"] = cfg.Global.SourceMode()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// CLI 启动遵循“配置 → 磁盘缓存 → 源存储 → Service → Fiber server”顺序，
	// 保证所有请求共享统一的缓存与计数器实例，方便观察 cache/log 指标。
	stats := cache.NewStats()
	store, err := cache.NewStore(cfg.Global.CachePath, stats)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存目录失败: %v\n", err)
		return 1
	}

	resolver, err := buildResolver(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化源存储失败: %v\n", err)
		return 1
	}

	policy, err := sizepolicy.FromConfig(cfg.Global, cfg.Sizes)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化尺寸策略失败: %v\n", err)
		return 1
	}

	sweeper := cache.NewSweeper(store, logger, cfg.Global.SweepInterval.DurationValue())

	service, err := media.NewService(media.Options{
		Store:            store,
		Resolver:         resolver,
		Policy:           policy,
		Sweeper:          sweeper,
		Logger:           logger,
		TTL:              cfg.Global.CacheTTL.DurationValue(),
		TransformTimeout: cfg.Global.TransformTimeout.DurationValue(),
		Quality:          cfg.Global.OutputQuality,
	})
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缩略图服务失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["cache_path"] = cfg.Global.CachePath
	fields["size_mode"] = cfg.Global.SizeMode
	fields["source_mode"] = cfg.Global.SourceMode()
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	sweeper.Start()
	defer sweeper.Stop()

	if err := startHTTPServer(cfg, service, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// buildResolver 根据配置选择本地目录或 HTTP 源图后端。
func buildResolver(g config.GlobalConfig) (storage.Resolver, error) {
	if g.UsesRemoteSource() {
		return storage.NewHTTPResolver(g.SourceURL, g.SourceTimeout.DurationValue())
	}
	return storage.NewLocalResolver(g.SourcePath)
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("thumb-hub", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 THUMB_HUB_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("THUMB_HUB_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

func startHTTPServer(cfg *config.Config, service media.API, logger *logrus.Logger) error {
	app, err := server.NewApp(server.AppOptions{
		Logger: logger,
		Media:  service,
	})
	if err != nil {
		return err
	}
	routes.RegisterMediaRoutes(app, routes.MediaOptions{
		Logger:   logger,
		Service:  service,
		CacheTTL: cfg.Global.CacheTTL.DurationValue(),
	})

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-stop
		logger.WithFields(logrus.Fields{
			"action": "shutdown",
			"signal": sig.String(),
		}).Info("收到退出信号")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(ctx); err != nil {
			logger.WithError(err).Warn("shutdown_failed")
		}
	}()

	port := cfg.Global.ListenPort
	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}

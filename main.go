package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/any-hub/tarfetch/internal/cache"
	"github.com/any-hub/tarfetch/internal/config"
	"github.com/any-hub/tarfetch/internal/logging"
	"github.com/any-hub/tarfetch/internal/server"
	"github.com/any-hub/tarfetch/internal/server/routes"
	"github.com/any-hub/tarfetch/internal/template"
	"github.com/any-hub/tarfetch/internal/version"
)

const (
	exitOK           = 0
	exitFailure      = 1
	exitUsage        = 2
	exitVerifyFailed = 3

	envConfigPath     = "TARFETCH_CONFIG"
	defaultConfigPath = "config.toml"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath    string
	template      string
	dir           string
	cwd           string
	force         bool
	forceClean    bool
	offline       bool
	preferOffline bool
	provider      string
	auth          string
	verify        bool
	serve         bool
	checkOnly     bool
	verbose       bool
	showVersion   bool
	showHelp      bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(exitUsage)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showHelp {
		printUsage(stdOut)
		return exitOK
	}
	if opts.showVersion {
		printVersion()
		return exitOK
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return exitFailure
	}
	if opts.verbose {
		cfg.Global.LogLevel = "debug"
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return exitFailure
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["providers"] = config.ProviderNames(cfg.Providers)
		fields["cache_dir"] = cfg.Global.CacheDir
		fields["auth"] = cfg.Global.AuthMode()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return exitOK
	}

	svc, err := template.NewFromConfig(cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化模板服务失败: %v\n", err)
		return exitFailure
	}

	if opts.serve {
		fields := logging.BaseFields("startup", opts.configPath)
		fields["listen_port"] = cfg.Global.ListenPort
		fields["providers"] = svc.Registry().Names()
		fields["cache_dir"] = cfg.Global.CacheDir
		fields["version"] = version.Full()
		logger.WithFields(fields).Info("配置加载完成")

		if err := startHTTPServer(cfg, svc, logger); err != nil {
			fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
			return exitFailure
		}
		return exitOK
	}

	if opts.template == "" {
		fmt.Fprintln(stdErr, "缺少模板参数")
		printUsage(stdErr)
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.verify {
		return runVerify(ctx, svc, opts)
	}
	return runDownload(ctx, svc, opts, logger)
}

func runVerify(ctx context.Context, svc *template.Service, opts cliOptions) int {
	ok, err := svc.Verify(ctx, opts.template, templateOptions(opts))
	if err != nil {
		fmt.Fprintf(stdErr, "校验失败: %v\n", err)
		return exitFailure
	}
	if !ok {
		fmt.Fprintf(stdOut, "模板不可访问: %s\n", opts.template)
		return exitVerifyFailed
	}
	fmt.Fprintf(stdOut, "模板可用: %s\n", opts.template)
	return exitOK
}

func runDownload(ctx context.Context, svc *template.Service, opts cliOptions, logger *logrus.Logger) int {
	res, err := svc.Download(ctx, opts.template, templateOptions(opts))
	if err != nil {
		fmt.Fprintf(stdErr, "下载模板失败: %v\n", err)
		if errors.Is(err, template.ErrDirectoryExists) {
			fmt.Fprintln(stdErr, "可使用 --force 覆盖或 --force-clean 清空目标目录")
		}
		return exitFailure
	}

	fields := logging.TemplateFields(res.Provider, res.Template.Name, res.Template.Version)
	fields["dir"] = res.Dir
	fields["cache_hit"] = res.CacheHit
	logger.WithFields(fields).Debug("cli_download_complete")

	fmt.Fprintf(stdOut, "已将 %s 解压到 %s\n", opts.template, res.Dir)
	return exitOK
}

func templateOptions(opts cliOptions) template.Options {
	out := template.Options{
		Provider: opts.provider,
		Dir:      opts.dir,
		Cwd:      opts.cwd,
		Auth:     opts.auth,
	}
	switch {
	case opts.forceClean:
		out.Force = template.ForceClean
	case opts.force:
		out.Force = template.ForceOverwrite
	}
	switch {
	case opts.offline:
		out.Offline = cache.ModeOffline
	case opts.preferOffline:
		out.Offline = cache.ModePrefer
	}
	return out
}

func newFlagSet(opts *cliOptions, configFlag *string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("tarfetch", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SortFlags = false

	fs.StringVarP(configFlag, "config", "c", "", "配置文件路径（默认 ./config.toml，可被 "+envConfigPath+" 覆盖）")
	fs.StringVarP(&opts.dir, "dir", "d", "", "目标目录（默认使用模板名）")
	fs.StringVar(&opts.cwd, "cwd", "", "解析相对目标目录时使用的工作目录")
	fs.BoolVarP(&opts.force, "force", "f", false, "目标目录非空时直接覆盖")
	fs.BoolVar(&opts.forceClean, "force-clean", false, "解包前清空目标目录")
	fs.BoolVar(&opts.offline, "offline", false, "只使用缓存，不访问网络")
	fs.BoolVar(&opts.preferOffline, "prefer-offline", false, "缓存存在时直接使用")
	fs.StringVarP(&opts.provider, "provider", "p", "", "未带前缀时使用的 provider（默认 github）")
	fs.StringVar(&opts.auth, "auth", "", "访问令牌，以 Bearer 方式发送（可用 "+config.EnvAuth+" 设置）")
	fs.BoolVar(&opts.verify, "verify", false, "只校验模板是否可访问")
	fs.BoolVar(&opts.serve, "serve", false, "启动镜像服务")
	fs.BoolVar(&opts.checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "输出调试日志")
	fs.BoolVar(&opts.showVersion, "version", false, "显示版本信息")
	fs.BoolVarP(&opts.showHelp, "help", "h", false, "显示帮助")
	return fs
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	var (
		opts       cliOptions
		configFlag string
	)
	fs := newFlagSet(&opts, &configFlag)

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	positional := fs.Args()
	if len(positional) > 2 {
		return cliOptions{}, fmt.Errorf("参数过多: %s", strings.Join(positional[2:], " "))
	}
	if len(positional) > 0 {
		opts.template = positional[0]
	}
	if len(positional) > 1 && opts.dir == "" {
		opts.dir = positional[1]
	}
	if opts.force && opts.forceClean {
		return cliOptions{}, errors.New("--force 与 --force-clean 不能同时使用")
	}
	if opts.offline && opts.preferOffline {
		return cliOptions{}, errors.New("--offline 与 --prefer-offline 不能同时使用")
	}

	opts.configPath = resolveConfigPath(configFlag)
	return opts, nil
}

// resolveConfigPath 依次使用 flag、环境变量、当前目录下存在的 config.toml；都没有时返回空串。
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(envConfigPath); env != "" {
		return env
	}
	if info, err := os.Stat(defaultConfigPath); err == nil && !info.IsDir() {
		return defaultConfigPath
	}
	return ""
}

func printUsage(w io.Writer) {
	var opts cliOptions
	var configFlag string
	fs := newFlagSet(&opts, &configFlag)
	fmt.Fprintln(w, "用法: tarfetch [flags] <template> [dir]")
	fmt.Fprintln(w)
	fmt.Fprint(w, fs.FlagUsages())
}

func startHTTPServer(cfg *config.Config, svc *template.Service, logger *logrus.Logger) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Service:    svc,
		ListenPort: port,
		PublicURL:  cfg.Global.PublicURL,
	})
	if err != nil {
		return err
	}
	routes.RegisterProviderRoutes(app, svc.Registry(), cfg.Providers)

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}

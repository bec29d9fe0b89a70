package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"autotrader/internal/app"
	"autotrader/internal/backtest"
	brcfg "autotrader/internal/config"
	"autotrader/internal/logger"
	"autotrader/internal/pkg/symbol"

	_ "time/tzdata"
)

const defaultConfigPath = "configs/autotrader.yaml"

const usage = `usage: autotrader [-config path] [-symbol S] [-cash N] <command> [flags]

commands:
  run-once    run a single tick and print the tick report
  analyze     collect and decide without executing, print the analysis
  live        run the scheduler loop and the HTTP status server
  backtest    replay historical bars (-bars file.csv | -start 2024-01-01 -end 2024-06-01)
`

type globalFlags struct {
	config string
	symbol string
	cash   float64
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("autotrader: %v", err)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	var g globalFlags
	fs := flag.NewFlagSet("autotrader", flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(fs.Output(), usage) }
	fs.StringVar(&g.config, "config", "", "config file (default $AUTOTRADER_CONFIG or "+defaultConfigPath+")")
	fs.StringVar(&g.symbol, "symbol", "", "override trading.symbol")
	fs.Float64Var(&g.cash, "cash", 0, "override trading.initial_cash")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return flag.ErrHelp
	}
	cmd, rest := fs.Arg(0), fs.Args()[1:]

	path := configPath(g.config)
	cfg, err := brcfg.Load(path)
	if err != nil {
		return fmt.Errorf("读取配置失败: %w", err)
	}
	if g.symbol != "" {
		cfg.Trading.Symbol = symbol.Normalize(g.symbol)
	}
	if g.cash > 0 {
		cfg.Trading.InitialCash = g.cash
	}
	logFile := setupLogOutput(cfg.App)
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("✓ 配置加载成功（%s，symbol=%s，strategy=%s）", path, cfg.Trading.Symbol, cfg.Trading.Strategy)

	switch cmd {
	case "run-once":
		return runOnce(ctx, cfg, out)
	case "analyze":
		return analyze(ctx, cfg, out)
	case "live":
		return live(ctx, cfg, path)
	case "backtest":
		return runBacktest(ctx, cfg, rest, out)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func configPath(flagValue string) string {
	if p := strings.TrimSpace(flagValue); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv("AUTOTRADER_CONFIG")); p != "" {
		return p
	}
	return defaultConfigPath
}

// setupLogOutput 在配置了 log_path 时同时输出到终端与滚动文件。
func setupLogOutput(cfg brcfg.AppConfig) io.Closer {
	w := logger.RotatingFile(cfg.FileOptions())
	if w == nil {
		return nil
	}
	mw := io.MultiWriter(os.Stdout, w)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return w
}

func runOnce(ctx context.Context, cfg *brcfg.Config, out io.Writer) error {
	a, err := app.NewApp(ctx, cfg, "")
	if err != nil {
		return fmt.Errorf("初始化应用失败: %w", err)
	}
	defer a.Close()
	rep := a.Engine().Tick(ctx)
	if err := printJSON(out, rep); err != nil {
		return err
	}
	if rep.Failed() {
		return fmt.Errorf("tick failed at %s: %w", rep.FailedAt, rep.Err)
	}
	return nil
}

func analyze(ctx context.Context, cfg *brcfg.Config, out io.Writer) error {
	a, err := app.NewApp(ctx, cfg, "")
	if err != nil {
		return fmt.Errorf("初始化应用失败: %w", err)
	}
	defer a.Close()
	res, err := a.Engine().Analyze(ctx)
	if err != nil {
		return err
	}
	return printJSON(out, res)
}

func live(ctx context.Context, cfg *brcfg.Config, path string) error {
	a, err := app.NewApp(ctx, cfg, path)
	if err != nil {
		return fmt.Errorf("初始化应用失败: %w", err)
	}
	defer a.Close()
	if err := a.Run(ctx); err != nil {
		return fmt.Errorf("运行失败: %w", err)
	}
	logger.Infof("autotrader stopped")
	return nil
}

func runBacktest(ctx context.Context, cfg *brcfg.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("backtest", flag.ContinueOnError)
	bars := fs.String("bars", "", "CSV file with time,open,high,low,close,volume")
	startRaw := fs.String("start", "", "range start (2006-01-02 or RFC3339)")
	endRaw := fs.String("end", "", "range end, exclusive")
	reportDir := fs.String("report", "", "directory for the report files")
	format := fs.String("format", backtest.FormatYAML, "report format: yaml|json")
	chart := fs.Bool("chart", false, "also write an HTML equity/drawdown chart")
	notify := fs.Bool("notify", false, "send the summary through telegram when enabled")
	if err := fs.Parse(args); err != nil {
		return err
	}
	start, err := parseDate(*startRaw)
	if err != nil {
		return fmt.Errorf("-start: %w", err)
	}
	end, err := parseDate(*endRaw)
	if err != nil {
		return fmt.Errorf("-end: %w", err)
	}
	req := app.BacktestRequest{
		Bars:      app.BarsRequest{CSVPath: *bars, Start: start, End: end},
		ReportDir: *reportDir,
		Format:    *format,
		Chart:     *chart,
	}
	if *notify && cfg.Notify.Telegram.Enabled {
		n, err := app.BuildNotifier(cfg)
		if err != nil {
			return err
		}
		req.Notifier = n
	}
	res, err := app.RunBacktest(ctx, cfg, req)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, backtest.Summary(res.Result))
	for _, f := range res.Files {
		fmt.Fprintf(out, "report: %s\n", f)
	}
	return nil
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

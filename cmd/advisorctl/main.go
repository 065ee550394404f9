package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stock-advisor-backend/internal/client"
	"stock-advisor-backend/internal/config"
	"stock-advisor-backend/internal/logger"
	"stock-advisor-backend/internal/render"
	"stock-advisor-backend/internal/tui"
	"stock-advisor-backend/internal/widget"
)

var (
	// 全局参数
	widgetsFile string
	verbose     bool
	timeout     time.Duration
)

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "advisorctl",
	Short: "Stock recommendation widgets from the command line",
	Long: `advisorctl submits a budget and risk tolerance to a configured
recommendation service and prints the suggested allocation.

Widgets come from WIDGETS_FILE (or --widgets); without one the built-in
"advisor" and "optistock" widgets are used.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config.LoadEnvFile(".env")
		// tui 自己占用终端，不输出日志
		if cmd.Name() == "tui" {
			return nil
		}
		level := "warn"
		if verbose {
			level = "debug"
		}
		if _, err := logger.Init(level, true); err != nil {
			return fmt.Errorf("初始化日志失败: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

// widgetsCmd 列出组件
var widgetsCmd = &cobra.Command{
	Use:   "widgets",
	Short: "List configured widgets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		widgets, err := loadWidgets()
		if err != nil {
			return err
		}
		return printWidgets(cmd.OutOrStdout(), widgets)
	},
}

// recommendCmd 提交一次
var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Submit a budget and risk tolerance once and print the recommendations",
	Long: `Sends exactly one request to the widget's recommendation service.

Example:
  advisorctl recommend --widget optistock --budget 1500 --risk 70`,
	Args: cobra.NoArgs,
	RunE: runRecommend,
}

// tuiCmd 交互式表单
var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive recommendation form",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&widgetsFile, "widgets", "", "widgets YAML file (default $WIDGETS_FILE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "request timeout (0 waits for the service)")

	recommendCmd.Flags().String("widget", "advisor", "widget name")
	recommendCmd.Flags().Float64("budget", 0, "investment budget in dollars")
	recommendCmd.Flags().Float64("risk", 50, "risk tolerance 0-100")
	recommendCmd.Flags().Bool("plain", false, "render without colors")
	_ = recommendCmd.MarkFlagRequired("budget")

	tuiCmd.Flags().String("widget", "advisor", "widget name")

	rootCmd.AddCommand(widgetsCmd, recommendCmd, tuiCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadWidgets() ([]config.WidgetConfig, error) {
	path := widgetsFile
	if path == "" {
		path = os.Getenv("WIDGETS_FILE")
	}
	return config.LoadWidgets(path)
}

func findWidget(name string) (config.WidgetConfig, error) {
	widgets, err := loadWidgets()
	if err != nil {
		return config.WidgetConfig{}, err
	}
	for _, w := range widgets {
		if w.Name == name {
			return w, nil
		}
	}
	return config.WidgetConfig{}, fmt.Errorf("组件不存在: %s", name)
}

func printWidgets(out io.Writer, widgets []config.WidgetConfig) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTITLE\tENDPOINT")
	for _, w := range widgets {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", w.Name, w.Title, w.Endpoint)
	}
	return tw.Flush()
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

func runRecommend(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("widget")
	budget, _ := cmd.Flags().GetFloat64("budget")
	risk, _ := cmd.Flags().GetFloat64("risk")
	plain, _ := cmd.Flags().GetBool("plain")

	cfg, err := findWidget(name)
	if err != nil {
		return err
	}
	fetcher, err := client.NewHTTPFetcher(cfg, nil, nil)
	if err != nil {
		return err
	}

	w := widget.New(cfg, fetcher, widget.WithLogger(logger.Named("widget")))
	if err := w.SetBudget(budget); err != nil {
		return err
	}
	w.SetRisk(risk)

	ctx, cancel := commandContext(cmd)
	defer cancel()

	st, err := w.Submit(ctx)
	if err != nil {
		var fe *client.FetchError
		if errors.As(err, &fe) {
			return fmt.Errorf("获取推荐失败 (%s): %w", fe.Kind, err)
		}
		return err
	}
	logger.L().Debug("推荐完成", zap.String("widget", cfg.Name), zap.Int("count", len(st.Results)))

	styles := render.DefaultStyles()
	if plain {
		styles = render.PlainStyles()
	}
	if out := render.Terminal(st.Results, styles); out != "" {
		fmt.Fprintln(cmd.OutOrStdout(), out)
	}
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("widget")
	cfg, err := findWidget(name)
	if err != nil {
		return err
	}
	fetcher, err := client.NewHTTPFetcher(cfg, nil, nil)
	if err != nil {
		return err
	}

	// 整个会话不受 --timeout 限制
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	m := tui.New(ctx, cfg, fetcher, tui.DefaultStyles())
	_, err = tea.NewProgram(m, tea.WithContext(ctx)).Run()
	return err
}

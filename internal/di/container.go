package di

import (
	"context"
	"io"
	"os"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/makerlab-autoreply/internal/adapters/podio"
	"github.com/mikey/makerlab-autoreply/internal/config"
	"github.com/mikey/makerlab-autoreply/internal/core"
	"github.com/mikey/makerlab-autoreply/internal/factory"
	"github.com/mikey/makerlab-autoreply/internal/knowledge"
	"github.com/mikey/makerlab-autoreply/internal/logging"
	"github.com/mikey/makerlab-autoreply/internal/screening"
	"github.com/mikey/makerlab-autoreply/internal/throttle"
	"github.com/mikey/makerlab-autoreply/internal/utils"
)

// Options carries the command line settings that shape the container
type Options struct {
	ConfigFile string
	Verbose    bool
	JSONLog    bool
	Mode       core.RunMode
	Out        io.Writer
}

// Knowledge is the website context handed to the classifier
type Knowledge string

// BuildContainer creates and configures a dependency injection container.
// Providers run lazily, so the unreplied report never builds a model client.
func BuildContainer(ctx context.Context, opts Options) (*dig.Container, error) {
	container := dig.New()

	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if err := container.Provide(func() Options { return opts }); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(o Options) (*config.Config, error) {
		return config.New(o.ConfigFile)
	}); err != nil {
		return nil, err
	}

	// Register logger; command line flags win over the config file
	if err := container.Provide(func(o Options, cfg *config.Config) (*zap.Logger, error) {
		if o.Verbose || o.JSONLog {
			return logging.InitConsoleLogger(o.Verbose, o.JSONLog)
		}
		return logging.InitLogger(cfg)
	}); err != nil {
		return nil, err
	}

	// Register typed configuration sections
	if err := container.Provide(func(cfg *config.Config) (config.PodioConfig, error) {
		return cfg.GetPodio()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(cfg *config.Config) (config.PipelineConfig, error) {
		return cfg.GetPipeline()
	}); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewLedgerFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewMailerFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return nil, err
	}

	// Register workspace client, authenticated on construction
	if err := container.Provide(func(cfg config.PodioConfig, logger *zap.Logger) (*podio.Client, error) {
		return podio.NewClient(ctx, cfg, logger.Named("podio"))
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(c *podio.Client) core.Workspace { return c }); err != nil {
		return nil, err
	}

	// Register message source
	if err := container.Provide(func(
		c *podio.Client,
		podioCfg config.PodioConfig,
		pipelineCfg config.PipelineConfig,
		text *utils.TextProcessor,
		logger *zap.Logger,
	) core.MessageSource {
		return podio.NewSource(c, podioCfg, pipelineCfg.MaxBodyChars, text, throttle.New(pipelineCfg.PageDelay), logger.Named("podio"))
	}); err != nil {
		return nil, err
	}

	// Register sender screening
	if err := container.Provide(func(cfg config.PipelineConfig, logger *zap.Logger) core.SenderScreen {
		return screening.NewChecker(cfg.NoreplyPatterns, cfg.BlockedDomains, logger)
	}); err != nil {
		return nil, err
	}

	// Register ledger
	if err := container.Provide(func(f *factory.LedgerFactory) (core.Ledger, error) {
		return f.CreateLedger(ctx)
	}); err != nil {
		return nil, err
	}

	// Register LLM client and the knowledge it answers from
	if err := container.Provide(func(f *factory.LLMFactory) (core.LLMClient, error) {
		return f.CreateLLMClient()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(cfg *config.Config, text *utils.TextProcessor, logger *zap.Logger) (Knowledge, error) {
		builder, err := knowledge.NewBuilderFromConfig(cfg.GetKnowledge(), text, logger)
		if err != nil {
			return "", err
		}
		content, err := builder.Build()
		return Knowledge(content), err
	}); err != nil {
		return nil, err
	}

	// Register core services
	if err := container.Provide(func(
		ws core.Workspace,
		ledger core.Ledger,
		podioCfg config.PodioConfig,
		pipelineCfg config.PipelineConfig,
		logger *zap.Logger,
	) *core.ReplyDetector {
		return core.NewReplyDetector(ws, ledger, podioCfg.SystemMarkers, throttle.New(pipelineCfg.CommentDelay), logger)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(client core.LLMClient, k Knowledge, cfg *config.Config, logger *zap.Logger) *core.Classifier {
		llmCfg := cfg.GetLLM()
		return core.NewClassifier(client, string(k), llmCfg.MaxReplyWords, llmCfg.MaxRetries, llmCfg.RetryBackoff, logger)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(
		ws core.Workspace,
		mf *factory.MailerFactory,
		ledger core.Ledger,
		lf *factory.LedgerFactory,
		o Options,
		logger *zap.Logger,
	) (*core.Dispatcher, error) {
		mailer, err := mf.CreateMailer(o.Mode)
		if err != nil {
			return nil, err
		}
		return core.NewDispatcher(ws, mailer, ledger, lf.TTL(), o.Out, logger), nil
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(
		source core.MessageSource,
		screen core.SenderScreen,
		detector *core.ReplyDetector,
		classifier *core.Classifier,
		dispatcher *core.Dispatcher,
		cfg config.PipelineConfig,
		o Options,
		logger *zap.Logger,
	) *core.Pipeline {
		return core.NewPipeline(source, screen, detector, classifier, dispatcher, throttle.New(cfg.ItemDelay), cfg.MaxMessages, o.Out, logger)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(
		source core.MessageSource,
		ws core.Workspace,
		podioCfg config.PodioConfig,
		pipelineCfg config.PipelineConfig,
		cfg *config.Config,
		o Options,
		logger *zap.Logger,
	) *core.Reporter {
		return core.NewReporter(source, ws, podioCfg.SystemMarkers, cfg.GetReport().Keywords, throttle.New(pipelineCfg.CommentDelay), o.Out, logger)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

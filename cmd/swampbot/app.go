package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"swampbot/internal/classifier"
	"swampbot/internal/commands"
	"swampbot/internal/config"
	"swampbot/internal/drafter"
	"swampbot/internal/handler"
	"swampbot/internal/llm"
	"swampbot/internal/middleware"
	"swampbot/internal/openai"
	"swampbot/internal/people"
	"swampbot/internal/repository"
	"swampbot/internal/ringcentral"
	"swampbot/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// llmClient is what the bot needs from the language model.
type llmClient interface {
	classifier.JSONGenerator
	commands.TextGenerator
}

func newLogger(mode string) (*zap.Logger, error) {
	if mode == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func bootstrap(cmd *cli.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(cmd.String("config"), cmd.String("env"))
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg.Log.Mode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

func platformClient(cfg *config.Config, logger *zap.Logger) (*ringcentral.TokenStore, *ringcentral.Client, error) {
	tokens := ringcentral.NewTokenStore(cfg.RingCentral.TokenFile, logger)
	if err := tokens.Load(); err != nil {
		return nil, nil, err
	}
	return tokens, ringcentral.NewClient(cfg.RingCentral.ServerURL, tokens, logger), nil
}

// newLLM builds the multi-provider client. With no providers configured but
// an OpenAI key present, that key backs a single OpenAI provider.
func newLLM(cfg *config.Config, logger *zap.Logger) (*llm.MultiProviderClient, error) {
	providers := cfg.LLM.Providers
	if len(providers) == 0 && cfg.OpenAI.APIKey != "" {
		providers = []llm.ProviderConfig{{Type: llm.ProviderOpenAI, APIKey: cfg.OpenAI.APIKey}}
	}
	if len(providers) == 0 {
		return nil, nil
	}
	return llm.NewMultiProviderClient(llm.MultiProviderConfig{
		Providers:   providers,
		MaxFailures: cfg.LLM.MaxFailuresBeforeSwitch,
	}, logger)
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("Starting SWAMPbot...", zap.String("bot_name", cfg.Bot.Name))

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	tokens, rc, err := platformClient(cfg, logger)
	if err != nil {
		return err
	}

	db, err := repository.NewSQLiteDB(cfg.Database.Path, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := repository.MigrateDB(db, logger); err != nil {
		return err
	}

	store := repository.NewHistoryStore(repository.NewMessageRepository(db, logger), repository.StoreConfig{
		FlushInterval: cfg.Store.FlushInterval,
		MaxBatch:      cfg.Store.MaxBatch,
		MaxQueue:      cfg.Store.MaxQueue,
	}, logger)
	storeCtx, stopStore := context.WithCancel(context.Background())
	storeDone := make(chan struct{})
	go func() {
		defer close(storeDone)
		store.Run(storeCtx)
	}()
	defer func() {
		stopStore()
		<-storeDone
	}()

	var model llmClient
	multi, err := newLLM(cfg, logger)
	switch {
	case err != nil:
		logger.Warn("LLM unavailable, running on heuristics only", zap.Error(err))
	case multi != nil:
		defer multi.Close()
		model = multi
		logger.Info("LLM providers ready", zap.Any("providers", multi.GetProvidersInfo()))
	default:
		logger.Warn("No LLM providers configured, running on heuristics only")
	}

	var embedder service.Embedder
	if cfg.OpenAI.APIKey != "" {
		embedder = openai.NewEmbedder(cfg.OpenAI.APIKey,
			openai.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
			openai.WithEmbeddingDimension(cfg.OpenAI.EmbeddingDimension))
	} else {
		logger.Warn("openai.api_key is empty, messages are stored without embeddings")
	}

	var (
		jsonModel classifier.JSONGenerator
		textModel commands.TextGenerator
	)
	if model != nil {
		jsonModel, textModel = model, model
	}

	aa := cfg.AutoAnswer
	cls := classifier.New(jsonModel, classifier.Config{
		Enabled:     model != nil,
		MaxTokens:   aa.ClassifyMaxTokens,
		Temperature: aa.ClassifyTemperature,
	}, logger)
	dr := drafter.New(jsonModel, drafter.Config{
		Enabled:     model != nil,
		MaxTokens:   aa.AnswerMaxTokens,
		Temperature: aa.AnswerTemperature,
		MaxItems:    aa.HistoryItems,
	}, logger)

	names := people.NewResolver(rc, logger)
	engine := service.NewEngine(store, embedder, cls, dr, names, service.EngineConfig{
		LookbackDays:     aa.LookbackDays,
		MinConfidence:    aa.MinConfidence,
		MaxCandidates:    aa.MaxCandidates,
		RecallStrategy:   aa.RecallStrategy,
		SemanticTopK:     aa.SemanticTopK,
		SemanticMinScore: aa.SemanticMinScore,
		Location:         loc,
	}, logger)

	botID := cfg.Bot.ID
	if botID == "" && tokens.Authorized() {
		if me, err := rc.CurrentPerson(ctx); err == nil {
			botID = me.ID
			logger.Info("Learned bot person id", zap.String("bot_id", botID))
		} else {
			logger.Warn("bot.id is empty and lookup failed; own posts cannot be ignored", zap.Error(err))
		}
	}

	router := commands.NewRouter(cfg.Bot.CommandPrefix, logger, commands.Builtin(commands.Deps{
		BotID:   botID,
		Members: names,
		LLM:     textModel,
	})...)
	bot := service.NewBot(engine, router, rc, names, service.BotConfig{
		BotID:   botID,
		BotName: cfg.Bot.Name,
	}, logger)

	tasks := handler.NewTasks(context.Background(), time.Minute)

	if cfg.Log.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(logger))
	routes := handler.Routes{
		Webhook:   handler.NewWebhookHandler(bot, cfg.RingCentral.VerificationToken, tasks, logger),
		OAuth:     handler.NewOAuthHandler(tokens, rc, cfg.RingCentral.WebhookURL, tasks, logger),
		Admin:     handler.NewAdminHandler(rc, store, botID, logger),
		JWTSecret: cfg.Admin.JWTSecret,
	}
	if cfg.Admin.PasswordHash != "" {
		routes.Login = handler.NewLoginHandler(cfg.Admin.PasswordHash, cfg.Admin.JWTSecret, cfg.Admin.TokenTTL, logger)
	}
	handler.RegisterRoutes(r, routes, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	logger.Info("SWAMPbot is running",
		zap.String("port", cfg.Server.Port),
		zap.Bool("authorized", tokens.Authorized()),
		zap.String("recall_strategy", aa.RecallStrategy))

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		logger.Error("Server failed", zap.Error(err))
		return err
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	tasks.Wait()

	logger.Info("Server exited", zap.Int("queued_writes", store.QueueDepth()))
	return nil
}

func subscribeAction(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	tokens, rc, err := platformClient(cfg, logger)
	if err != nil {
		return err
	}
	if !tokens.Authorized() {
		return ringcentral.ErrNotAuthorized
	}

	sub, err := rc.EnsureSubscription(ctx, cfg.RingCentral.WebhookURL)
	if err != nil {
		return err
	}
	fmt.Printf("subscription %s %s (expires in %ds)\n", sub.ID, sub.Status, sub.ExpiresIn)
	return nil
}

func chatsAction(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	_, rc, err := platformClient(cfg, logger)
	if err != nil {
		return err
	}
	chats, err := rc.ListChats(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tNAME")
	for _, c := range chats {
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.ID, c.Type, c.Name)
	}
	return w.Flush()
}

func adminTokenAction(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	token, err := middleware.IssueAdminToken([]byte(cfg.Admin.JWTSecret), cmd.String("subject"), cmd.Duration("ttl"))
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func hashPasswordAction(ctx context.Context, cmd *cli.Command) error {
	hash, err := middleware.HashPassword(cmd.String("password"))
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

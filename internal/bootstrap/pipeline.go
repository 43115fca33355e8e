package bootstrap

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/eleven-am/glance/internal/audio"
	"github.com/eleven-am/glance/internal/capture"
	"github.com/eleven-am/glance/internal/frame"
	"github.com/eleven-am/glance/internal/gateway"
	"github.com/eleven-am/glance/internal/health"
	"github.com/eleven-am/glance/internal/history"
	"github.com/eleven-am/glance/internal/provider"
	"github.com/eleven-am/glance/internal/stream"
)

func ProvideFrameStore(cfg *Config, redisClient *redis.Client) *frame.Store {
	if redisClient == nil {
		return nil
	}
	return frame.NewStore(redisClient, cfg.FrameTTL)
}

func ProvideHistoryStore(db *gorm.DB) (*history.Store, error) {
	if db == nil {
		return nil, nil
	}
	store := history.NewStore(db)
	if err := store.Migrate(); err != nil {
		return nil, err
	}
	return store, nil
}

func ProvideHub(logger *slog.Logger) *gateway.Hub {
	return gateway.NewHub(logger)
}

func ProvideManager(cfg *Config, hub *gateway.Hub, turns *history.Store, logger *slog.Logger) *stream.Manager {
	var recorder stream.TurnRecorder
	if turns != nil {
		recorder = turns
	}
	return stream.NewManager(stream.Config{
		VisionPrompt: cfg.VisionPrompt,
		AudioPrompt:  cfg.AudioPrompt,
		MaxPairs:     cfg.MaxContextPairs,
		Sink:         hub,
		Recorder:     recorder,
	}, logger)
}

func ProvideScreenLoop(opts Options, cfg *Config, manager *stream.Manager, frames *frame.Store, logger *slog.Logger) *capture.ScreenLoop {
	return capture.NewScreenLoop(opts.ScreenSource, manager, frames, capture.ScreenLoopConfig{
		Interval:      cfg.CaptureInterval,
		MaxWidth:      cfg.FrameMaxWidth,
		JPEGQuality:   cfg.JPEGQuality,
		DiffThreshold: cfg.DiffThreshold,
	}, logger)
}

func ProvideAudioLoop(opts Options, cfg *Config, manager *stream.Manager, logger *slog.Logger) *capture.AudioLoop {
	if opts.AudioDevice == nil {
		return nil
	}
	chunker := audio.NewChunker(cfg.AudioTargetRate, cfg.AudioChunkMS)
	return capture.NewAudioLoop(opts.AudioDevice, manager, chunker, logger)
}

func ProvideGatewayHandler(cfg *Config, hub *gateway.Hub, manager *stream.Manager, screenLoop *capture.ScreenLoop, frames *frame.Store, turns *history.Store, logger *slog.Logger) *gateway.Handler {
	visionFactory := func(s gateway.ProviderSettings) provider.Provider {
		return provider.NewVisionClient(provider.VisionConfig{
			Endpoint:  s.Endpoint,
			APIKey:    s.APIKey,
			Model:     s.Model,
			UseBearer: s.UseBearer,
		}, logger)
	}
	audioFactory := func(s gateway.ProviderSettings) provider.Provider {
		return provider.NewRealtimeClient(provider.RealtimeConfig{
			Endpoint:       s.Endpoint,
			APIKey:         s.APIKey,
			Deployment:     s.Deployment,
			UseBearer:      s.UseBearer,
			CommitInterval: cfg.CommitInterval,
		}, logger)
	}

	return gateway.NewHandler(gateway.HandlerConfig{
		Hub:           hub,
		Manager:       manager,
		ScreenLoop:    screenLoop,
		Frames:        frames,
		Turns:         turns,
		VisionFactory: visionFactory,
		AudioFactory:  audioFactory,
	}, logger)
}

func ProvideHealthHandler(db *gorm.DB, redisClient *redis.Client, hub *gateway.Hub, manager *stream.Manager, screenLoop *capture.ScreenLoop) *health.Handler {
	return health.NewHandler(db, redisClient, hub, manager, screenLoop, Version)
}

// Version is stamped at build time.
var Version = "dev"

func RegisterRoutes(e *echo.Echo, handler *gateway.Handler, healthHandler *health.Handler) {
	handler.RegisterRoutes(e)
	healthHandler.RegisterRoutes(e)
}

// ConfigureDefaultProviders points both pipelines at the configured AI
// endpoint when credentials are present. Providers can still be swapped at
// runtime through the control API.
func ConfigureDefaultProviders(cfg *Config, manager *stream.Manager, logger *slog.Logger) {
	if cfg.AIEndpoint == "" || cfg.AIAPIKey == "" {
		logger.Warn("no AI credentials configured, providers must be set via the API")
		return
	}

	manager.ConfigureVision(provider.NewVisionClient(provider.VisionConfig{
		Endpoint:  cfg.AIEndpoint,
		APIKey:    cfg.AIAPIKey,
		Model:     cfg.VisionModel,
		UseBearer: cfg.AIUseBearer,
	}, logger))

	manager.ConfigureAudio(provider.NewRealtimeClient(provider.RealtimeConfig{
		Endpoint:       cfg.AIEndpoint,
		APIKey:         cfg.AIAPIKey,
		Deployment:     cfg.AudioDeployment,
		UseBearer:      cfg.AIUseBearer,
		CommitInterval: cfg.CommitInterval,
	}, logger))
}

// StartCaptureLoops runs the screen and audio loops for the process
// lifetime. A missing device disables its loop.
func StartCaptureLoops(lc fx.Lifecycle, opts Options, screenLoop *capture.ScreenLoop, audioLoop *capture.AudioLoop, logger *slog.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)

				if opts.ScreenSource == nil {
					logger.Warn("no screen source configured, screen capture disabled")
				} else {
					go screenLoop.Run(ctx)
				}

				if audioLoop == nil {
					logger.Warn("no audio device configured, audio capture disabled")
					<-ctx.Done()
					return
				}
				if err := audioLoop.Run(ctx); err != nil {
					logger.Error("audio loop failed", "error", err)
				}
				<-ctx.Done()
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			<-done
			return nil
		},
	})
}

// Options carries the platform capture devices the embedding binary wires
// in. Either may be nil.
type Options struct {
	ScreenSource capture.ScreenSource
	AudioDevice  capture.AudioDevice
}

var PipelineModule = fx.Options(
	fx.Provide(
		ProvideFrameStore,
		ProvideHistoryStore,
		ProvideHub,
		ProvideManager,
		ProvideScreenLoop,
		ProvideAudioLoop,
		ProvideGatewayHandler,
		ProvideHealthHandler,
	),
	fx.Invoke(
		ConfigureDefaultProviders,
		RegisterRoutes,
		StartCaptureLoops,
	),
)

// Run assembles and runs the service.
func Run(opts Options) {
	fx.New(
		fx.Supply(opts),
		fx.Provide(LoadConfig),
		InfrastructureModule,
		PipelineModule,
		ServerModule,
	).Run()
}

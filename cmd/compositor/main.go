package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"video-compositor/internal/glbackend"
	"video-compositor/internal/platform/config"
	"video-compositor/internal/platform/logger"
	"video-compositor/internal/platform/metrics"
	"video-compositor/internal/producer"
	"video-compositor/internal/recording"
	"video-compositor/internal/render"
)

const shutdownTimeout = 10 * time.Second

// GLFW calls must come from the main thread, and the render loop owns it.
func init() {
	runtime.LockOSThread()
}

func main() {
	_ = config.Load()

	if err := newRootCommand(config.FromEnv()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand(cfg config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "compositor",
		Short:        "Composite a video stream to a window and record it on demand",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	f.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (json, text)")
	f.StringVar(&cfg.ControlAddr, "addr", cfg.ControlAddr, "control API listen address")
	f.DurationVar(&cfg.FrameInterval, "frame-interval", cfg.FrameInterval, "minimum time between render ticks")
	f.StringVar(&cfg.Variant, "variant", cfg.Variant, "render variant (plain, overlay)")
	f.IntVar(&cfg.SourceWidth, "source-width", cfg.SourceWidth, "test source width")
	f.IntVar(&cfg.SourceHeight, "source-height", cfg.SourceHeight, "test source height")
	f.IntVar(&cfg.SourceFPS, "source-fps", cfg.SourceFPS, "test source frame rate")
	f.IntVar(&cfg.WindowWidth, "window-width", cfg.WindowWidth, "initial window width")
	f.IntVar(&cfg.WindowHeight, "window-height", cfg.WindowHeight, "initial window height")
	return cmd
}

func run(parent context.Context, cfg config.Config) error {
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	variant, err := render.ParseVariant(cfg.Variant)
	if err != nil {
		return err
	}
	if err := glbackend.Init(); err != nil {
		return errors.Wrap(err, "init glfw")
	}
	defer glbackend.Terminate()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	met := metrics.New()
	repo := recording.NewInMemoryRepository()
	sourceSize := render.Size{Width: cfg.SourceWidth, Height: cfg.SourceHeight}

	var svc *recording.Service
	renderer := render.NewRenderer(glbackend.NewPlatform(log), render.Options{
		Variant:       variant,
		FrameInterval: cfg.FrameInterval,
		Shaders:       glbackend.Shaders,
		Logger:        log,
		Metrics:       met,
		Listener: render.ListenerFuncs{
			GraphicsInitialized: func(r *render.Renderer) {
				startProducer(gctx, g, r.VideoSource(), producer.Bars, sourceSize, cfg.SourceFPS, log)
				if src := r.OverlaySource(); src != nil {
					startProducer(gctx, g, src, producer.Badge, sourceSize, cfg.SourceFPS, log)
				}
			},
			RecordingFinished: func(*render.Renderer) { svc.RecordingFinished() },
		},
	})
	renderer.SetVideoSize(cfg.SourceWidth, cfg.SourceHeight)

	encoders := recording.EncoderFunc(func(size render.Size) (render.Surface, error) {
		return glbackend.EncoderSurface{Width: size.Width, Height: size.Height}, nil
	})
	svc = recording.NewService(repo, renderer, encoders, nil, log)
	h := recording.NewHandler(svc, log, met)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met, "/metrics"))
	r.Method(http.MethodGet, "/metrics", met.Handler(func() { met.SetOpenSessions(repo.OpenCount()) }))
	h.Routes(r)

	srv := &http.Server{Addr: cfg.ControlAddr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "control server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, draining connections")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	log.Info("compositor starting",
		"addr", cfg.ControlAddr,
		"variant", variant.String(),
		"frame_interval", cfg.FrameInterval,
		"source_width", cfg.SourceWidth,
		"source_height", cfg.SourceHeight,
		"log_level", cfg.LogLevel,
	)

	display := glbackend.NewDisplay("compositor", cfg.WindowWidth, cfg.WindowHeight)
	display.OnResize(renderer.SetOutputSize)
	display.OnClose(cancel)

	renderErr := renderer.Run(gctx, display)
	cancel()
	if err := g.Wait(); err != nil && renderErr == nil {
		renderErr = err
	}
	if renderErr != nil {
		log.Error("compositor stopped", "error", renderErr)
		return renderErr
	}
	log.Info("compositor stopped")
	return nil
}

// startProducer feeds src with a test pattern until ctx is done.
func startProducer(ctx context.Context, g *errgroup.Group, src render.ImageSource, pattern producer.Pattern, size render.Size, fps int, log *slog.Logger) {
	sink, ok := src.(*glbackend.PixelImageSource)
	if !ok {
		log.Warn("image source does not accept pixels, no producer attached")
		return
	}
	p := producer.New(sink, producer.Options{Pattern: pattern, Size: size, FPS: fps, Logger: log})
	g.Go(func() error { return p.Run(ctx) })
}

package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"voicenotes/internal/config"
	"voicenotes/internal/export"
	"voicenotes/internal/logger"
	"voicenotes/internal/services"
)

type Server struct {
	engine *gin.Engine
	cfg    config.Config
	log    logger.Logger
}

func NewServer(cfg config.Config, log logger.Logger) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	analyzer, err := newAnalyzer(cfg, log)
	if err != nil {
		return nil, err
	}

	pdfFont := export.DefaultFont()
	if cfg.PDFFontPath != "" {
		if pdfFont, err = export.LoadFont(cfg.PDFFontPath); err != nil {
			return nil, err
		}
	}
	stt := services.NewSonioxService(cfg, log)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLogger(log))
	engine.Use(MaxBodySize(cfg.MaxUploadBytes + multipartSlack))
	engine.Use(CORS(cfg.CORSOrigins))

	api := NewAPI(cfg, log, stt, analyzer, pdfFont)
	registerRoutes(engine, api)

	return &Server{engine: engine, cfg: cfg, log: log}, nil
}

func newAnalyzer(cfg config.Config, log logger.Logger) (services.Analyzer, error) {
	switch cfg.SummarizerProvider {
	case config.ProviderChat, "":
		return services.NewChatService(cfg, log), nil
	case config.ProviderGemini:
		return services.NewGeminiService(cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown summarizer provider %q", cfg.SummarizerProvider)
	}
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is canceled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", s.cfg.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// Transcriptions can hold a request open for about a minute.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"

	"github.com/apresai/voicekit/internal/storage"
	"github.com/apresai/voicekit/internal/tts"
)

// Config holds server configuration.
type Config struct {
	Port            int
	OutputDir       string
	S3Bucket        string
	CDNBaseURL      string
	AWSRegion       string
	DefaultProvider string
	Version         string
}

// DefaultConfig returns a Config populated from environment variables.
func DefaultConfig() Config {
	port, err := strconv.Atoi(envOr("PORT", "8000"))
	if err != nil || port <= 0 {
		port = 8000
	}
	return Config{
		Port:            port,
		OutputDir:       envOr("OUTPUT_DIR", "voicekit-output"),
		S3Bucket:        envOr("S3_BUCKET", ""),
		CDNBaseURL:      envOr("CDN_BASE_URL", ""),
		AWSRegion:       envOr("AWS_REGION", "us-east-1"),
		DefaultProvider: envOr("DEFAULT_PROVIDER", "gtts"),
		Version:         "1.0.0",
	}
}

// httpServer is the transport half of the server, satisfied by
// *server.StreamableHTTPServer.
type httpServer interface {
	Start(addr string) error
	Shutdown(ctx context.Context) error
}

// Server is the MCP server for speech synthesis and pitch shifting.
type Server struct {
	cfg      Config
	mcp      *server.MCPServer
	http     httpServer
	handlers *Handlers
	log      *slog.Logger
}

// New creates and configures the MCP server. Artifacts go to S3 when
// S3_BUCKET is set, otherwise to OutputDir.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Server, error) {
	store, err := newStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	handlers := NewHandlers(store, cfg.DefaultProvider, logger)
	mcpServer := newMCPServer(cfg.Version, handlers)
	return &Server{
		cfg: cfg,
		mcp: mcpServer,
		http: server.NewStreamableHTTPServer(mcpServer,
			server.WithStateLess(true),
		),
		handlers: handlers,
		log:      logger,
	}, nil
}

func newMCPServer(version string, h *Handlers) *server.MCPServer {
	mcpServer := server.NewMCPServer(
		"voicekit",
		version,
		server.WithToolCapabilities(true),
	)

	tools := ToolDefs()
	mcpServer.AddTool(tools[0], h.HandleSynthesizeSpeech)
	mcpServer.AddTool(tools[1], h.HandleShiftPitch)
	mcpServer.AddTool(tools[2], h.HandleListVoices)
	return mcpServer
}

func newStore(ctx context.Context, cfg Config, logger *slog.Logger) (storage.Store, error) {
	if cfg.S3Bucket == "" {
		if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
		logger.Info("Storing artifacts locally", "dir", cfg.OutputDir)
		return &storage.LocalStore{Dir: cfg.OutputDir}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	otelaws.AppendMiddlewares(&awsCfg.APIOptions)
	logger.Info("Storing artifacts in S3", "bucket", cfg.S3Bucket, "cdn", cfg.CDNBaseURL)
	return storage.NewS3Store(s3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.CDNBaseURL), nil
}

// Start runs the HTTP MCP server until it is shut down.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.log.Info("Starting MCP server", "addr", addr, "providers", tts.Names())
	return s.http.Start(addr)
}

// Run serves until ctx is cancelled, then stops accepting requests and
// waits up to drain for in-flight tool calls to finish. It returns only
// once the drain has completed or timed out.
func (s *Server) Run(ctx context.Context, drain time.Duration) error {
	errc := make(chan error, 1)
	go func() { errc <- s.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutdown signal received, draining requests...", "timeout", drain)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), drain)
	defer cancel()
	err := s.http.Shutdown(shutdownCtx)
	if startErr := <-errc; startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
		err = errors.Join(err, startErr)
	}
	return err
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

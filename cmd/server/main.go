package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/NakiriYuuzu/sql-mcp/internal/config"
	"github.com/NakiriYuuzu/sql-mcp/internal/db"
	"github.com/NakiriYuuzu/sql-mcp/internal/db/mssql"
	"github.com/NakiriYuuzu/sql-mcp/internal/db/postgres"
	"github.com/NakiriYuuzu/sql-mcp/internal/tools"
)

const serverVersion = "v1.0.0"

func main() {
	// Load .env file - try multiple locations
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogging(cfg.Logging)

	mode := db.ParseQueryMode(cfg.QueryMode)
	log.Info().
		Str("queryMode", string(mode)).
		Str("version", serverVersion).
		Msg("Starting sql-mcp server")

	manager := db.NewManager()
	manager.RegisterEngine(db.EngineMSSQL, mssql.New)
	manager.RegisterEngine(db.EnginePostgres, postgres.New)

	handler := tools.NewHandler(manager, mode, cfg.Query.DefaultRowLimit, cfg.Query.MaxRowLimit)

	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "sql-mcp",
			Version: serverVersion,
		},
		nil,
	)
	tools.Register(server, handler)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := server.Run(ctx, &mcp.StdioTransport{})

	// The active session is torn down on every termination path.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := manager.Disconnect(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Session teardown failed during shutdown")
	}

	if runErr != nil && ctx.Err() == nil {
		log.Fatal().Err(runErr).Msg("Server failed")
	}
	log.Info().Msg("Server stopped")
}

// setupLogging routes logs to stderr, and additionally to a rotating
// file when configured. Stdout is reserved for the MCP protocol.
func setupLogging(cfg config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	writers := []io.Writer{zerolog.ConsoleWriter{Out: os.Stderr}}
	if cfg.File != "" {
		rotator, err := rotatelogs.New(
			cfg.File+".%Y%m%d",
			rotatelogs.WithLinkName(cfg.File),
			rotatelogs.WithMaxAge(7*24*time.Hour),
			rotatelogs.WithRotationTime(24*time.Hour),
		)
		if err != nil {
			log.Warn().Err(err).Str("file", cfg.File).Msg("Failed to open log file, using stderr only")
		} else {
			writers = append(writers, rotator)
		}
	}
	log.Logger = log.Output(zerolog.MultiLevelWriter(writers...))
}

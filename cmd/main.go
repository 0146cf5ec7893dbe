package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/joho/godotenv"

	"marketchat/auth"
	"marketchat/handlers"
	"marketchat/hub"
	"marketchat/moderation"
	"marketchat/repositories"
	"marketchat/search"
	"marketchat/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components and manages the server lifecycle. Keeping
// the logic out of main ensures the defers (database close, index close) run
// before the process exits.
func run() error {
	// 1. Configuration & logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := newLogger(config.LogLevel)

	// 2. Storage (BadgerDB + Bluge projection)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	index, err := search.Open(config.SearchFilepath, log)
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = index.Close()
	}()

	// 3. Domain wiring
	masker, err := newMasker(config)
	if err != nil {
		return fmt.Errorf("moderation setup failed: %w", err)
	}
	conversations := repositories.NewConversationRepository(db, log)
	messages := repositories.NewMessageRepository(db, log)
	presence := hub.NewHub(log)
	chatService := services.NewChatService(conversations, messages, presence, masker, index, log)

	tokens := auth.NewTokenManager(config.JWTSecret, config.AuthTokenDuration)
	uploads, err := handlers.NewUploader(config.UploadDir, config.BaseURL, log)
	if err != nil {
		return err
	}

	// 4. HTTP & websocket surface
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(fiberlogger.New())
	app.Static("/uploads/chat", config.UploadDir)

	handlers.NewSocketHandler(presence, tokens, chatService, config.ConnectionBufferSize, log).Register(app)

	api := app.Group("/api/chat", handlers.RequireAuth(tokens))
	handlers.NewChatHandler(chatService, uploads, log).Register(api)

	// 5. Serve until signalled
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting server", "address", address)
		if err := app.Listen(address); err != nil {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	if err := app.Shutdown(); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("Program stopped cleanly")
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// newMasker loads the censored word list, one word per line, # for comments.
// No list configured means no masking.
func newMasker(config Config) (*moderation.Masker, error) {
	if config.CensoredWordsPath == "" {
		return nil, nil
	}
	replacement := []rune(config.MaskCharacter)
	if len(replacement) != 1 {
		return nil, fmt.Errorf("MASK_CHARACTER must be a single character, got %q", config.MaskCharacter)
	}

	f, err := os.Open(config.CensoredWordsPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		word := strings.TrimSpace(scanner.Text())
		if word == "" || strings.HasPrefix(word, "#") {
			continue
		}
		words = append(words, word)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return moderation.NewMasker(words, replacement[0])
}

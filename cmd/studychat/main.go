// Command studychat is a line-oriented front door for the study-chat
// core: it wires the budget guard, provider adapters, router, and
// delegation engine together and reads user messages from stdin.
//
// Configuration comes from the environment (optionally a .env file):
//
//	CONFIG_PATH        agent library document (default agent_library.yaml)
//	OLLAMA_BASE_URL    local inference endpoint (default http://localhost:11434)
//	MISTRAL_API_KEY    remote API credential; unset leaves mistral unconfigured
//	RATE_LIMIT_TOKENS  per-minute token ceiling (default 100000)
//	LIFETIME_TOKENS    lifetime token ceiling (default 1000000000)
//	RESPONSE_TOKENS    per-specialist response ceiling (default 500)
//	REDIS_URL          optional Redis session store
//	AUDIT_DB           optional SQLite transcript log
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"

	"github.com/randalmurphal/studykit/agent"
	"github.com/randalmurphal/studykit/audit"
	"github.com/randalmurphal/studykit/budget"
	"github.com/randalmurphal/studykit/config"
	"github.com/randalmurphal/studykit/delegate"
	"github.com/randalmurphal/studykit/mistral"
	"github.com/randalmurphal/studykit/ollama"
	"github.com/randalmurphal/studykit/provider"
	"github.com/randalmurphal/studykit/router"
	"github.com/randalmurphal/studykit/session"
)

type settings struct {
	ConfigPath      string `envconfig:"CONFIG_PATH" default:"agent_library.yaml"`
	OllamaBaseURL   string `envconfig:"OLLAMA_BASE_URL"`
	MistralAPIKey   string `envconfig:"MISTRAL_API_KEY"`
	RateLimitTokens int    `envconfig:"RATE_LIMIT_TOKENS" default:"100000"`
	LifetimeTokens  int    `envconfig:"LIFETIME_TOKENS" default:"1000000000"`
	ResponseTokens  int    `envconfig:"RESPONSE_TOKENS" default:"500"`
	RedisURL        string `envconfig:"REDIS_URL"`
	AuditDB         string `envconfig:"AUDIT_DB"`
}

func main() {
	stream := flag.Bool("stream", false, "stream specialist output as it arrives")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
	var s settings
	if err := envconfig.Process("", &s); err != nil {
		fatal("parse environment", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lib, err := config.Load(s.ConfigPath)
	if err != nil {
		fatal("load agent library", err)
	}
	registry, err := agent.NewRegistry(lib.Agents)
	if err != nil {
		fatal("build agent registry", err)
	}

	guard := budget.New(s.RateLimitTokens, s.LifetimeTokens)

	clients := make(map[string]provider.Client)

	local, err := ollama.New(provider.Config{
		BaseURL: s.OllamaBaseURL,
		Models:  lib.Models[ollama.Name],
	})
	if err != nil {
		fatal("configure ollama", err)
	}
	if err := local.EnsureModels(ctx); err != nil {
		fatal("ensure local models", err)
	}
	clients[ollama.Name] = budget.Guarded(local, guard)

	if s.MistralAPIKey == "" {
		slog.Warn("MISTRAL_API_KEY not set; agents on mistral models will be unavailable")
	} else {
		remote, err := mistral.New(provider.Config{
			APIKey: s.MistralAPIKey,
			Models: lib.Models[mistral.Name],
		})
		if err != nil {
			fatal("configure mistral", err)
		}
		clients[mistral.Name] = budget.Guarded(remote, guard)
	}

	rt, err := router.New(registry, clients, lib.Models)
	if err != nil {
		fatal("build router", err)
	}

	sessionID := session.NewID()

	opts := []delegate.Option{delegate.WithResponseTokenLimit(s.ResponseTokens)}
	if s.AuditDB != "" {
		logger, err := audit.OpenSQLite(s.AuditDB)
		if err != nil {
			fatal("open audit log", err)
		}
		defer logger.Close()
		if err := logger.Begin(ctx, sessionID); err != nil {
			fatal("begin audit session", err)
		}
		opts = append(opts, delegate.WithAudit(logger))
	}
	engine := delegate.New(registry, rt, opts...)

	var state session.State = session.NewMemory()
	if s.RedisURL != "" {
		ropts, err := redis.ParseURL(s.RedisURL)
		if err != nil {
			fatal("parse redis url", err)
		}
		state = session.NewRedisStore(redis.NewClient(ropts), sessionID)
	}

	slog.Info("studychat ready", "session", sessionID, "agents", registry.Len(), "providers", len(clients))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		if *stream {
			runStream(ctx, engine, state, sessionID, line)
		} else {
			reply, err := engine.Handle(ctx, line, state, delegate.WithSessionID(sessionID))
			if err != nil {
				slog.Error("chat turn failed", "error", err)
				fmt.Println("Sorry, something went wrong. Please try again.")
				continue
			}
			fmt.Println(reply)
		}
		if ctx.Err() != nil {
			break
		}
	}
}

func runStream(ctx context.Context, engine *delegate.Engine, state session.State, sessionID, line string) {
	chunks, err := engine.HandleStream(ctx, line, state, delegate.WithSessionID(sessionID))
	if err != nil {
		slog.Error("chat turn failed", "error", err)
		fmt.Println("Sorry, something went wrong. Please try again.")
		return
	}
	for chunk := range chunks {
		if chunk.Error != nil {
			slog.Error("stream failed", "error", chunk.Error)
			fmt.Println()
			fmt.Println("Sorry, something went wrong. Please try again.")
			return
		}
		fmt.Print(chunk.Content)
	}
	fmt.Println()
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}

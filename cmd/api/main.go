package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ovaphlow/pitchfork/service-content-go/internal/feedback"
	feedbackrepo "github.com/ovaphlow/pitchfork/service-content-go/internal/feedback/repo"
	"github.com/ovaphlow/pitchfork/service-content-go/internal/post"
	postrepo "github.com/ovaphlow/pitchfork/service-content-go/internal/post/repo"
	"github.com/ovaphlow/pitchfork/service-content-go/internal/router"
	"github.com/ovaphlow/pitchfork/service-content-go/internal/user"
	userrepo "github.com/ovaphlow/pitchfork/service-content-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-content-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-content-go/pkg/utilities"
)

func main() {
	// best-effort: real env wins when no .env exists
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()

	// the DSN is read on first query, so a missing DATABASE_URL does not stop startup
	dbCfg := database.ConfigFromEnv()
	provider := database.NewProvider(dbCfg, sugar)
	sugar.Infow("starting service-content-go", "db_mode", dbCfg.Mode.String())

	users := userrepo.NewUserRepo(provider, sugar)
	handlers := router.Handlers{
		Users:     user.NewHandler(user.NewService(users, sugar), sugar),
		Posts:     post.NewHandler(post.NewService(postrepo.NewPostRepo(provider, sugar)), sugar),
		Feedbacks: feedback.NewHandler(feedback.NewService(feedbackrepo.NewFeedbackRepo(provider, sugar), users), sugar),
	}

	secret := []byte(os.Getenv("ADMIN_JWT_SECRET"))
	if len(secret) == 0 {
		sugar.Warn("ADMIN_JWT_SECRET not set; admin routes are disabled")
	}

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = "0.0.0.0:8431"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           router.RegisterRoutes(sugar, handlers, secret),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()
	sugar.Infow("listening", "addr", addr)

	<-ctx.Done()
	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}
	if err := provider.Close(); err != nil {
		sugar.Warnf("database close failed: %v", err)
	}

	sugar.Info("goodbye")
}

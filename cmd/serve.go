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

	"github.com/gomodule/redigo/redis"
	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"ecoforum/pkg/community"
	communityapi "ecoforum/pkg/community/api"
	"ecoforum/pkg/middleware"
	"ecoforum/pkg/sessions"
	"ecoforum/pkg/user"
	userapi "ecoforum/pkg/user/api"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the forum HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts)
		},
	}
}

func serve(ctx context.Context, opts *rootOptions) error {
	cfg, log := opts.cfg, opts.log
	if cfg.SecretKey == "" {
		return errors.New("main: SECRET_KEY must be set to sign session tokens")
	}

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.close(context.Background()); err != nil {
			log.Errorf("main: failed closing backends: %v", err)
		}
	}()

	redisConn, err := redis.DialURL(cfg.RedisAddr)
	if err != nil {
		return fmt.Errorf("main: can't connect to Redis: %w", err)
	}
	defer redisConn.Close()

	usersRepo := user.NewUserRepo(b.users)
	sessionManager := sessions.NewSessionManager(cfg.SecretKey, redisConn)
	forum := community.NewService(b.forum, cfg.Community)
	userHandler := userapi.NewUserHandler(usersRepo, sessionManager)
	forumHandler := communityapi.NewForumHandler(forum)

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	// User
	api.HandleFunc("/register", userHandler.Register).Methods("POST")
	api.HandleFunc("/login", userHandler.LogIn).Methods("POST")
	api.HandleFunc("/verify-email", userHandler.VerifyEmail).Methods("POST")

	// Posts, comments, votes, saves, awards, profiles and proof reviews
	forumHandler.Routes(api)

	auth := middleware.NewAuthMiddleware(sessionManager, usersRepo)
	r.Use(auth.Middleware)

	logMiddleware := middleware.NewLoggingMiddleware(log)
	r.Use(logMiddleware.SetupTracing)
	r.Use(logMiddleware.SetupLogging)
	r.Use(logMiddleware.AccessLog)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Infof("serving at %s (store: %s)", cfg.HTTPAddr, cfg.Store)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("main: server stopped: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

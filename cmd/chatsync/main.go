package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"chatsync/internal/announce"
	"chatsync/internal/auth"
	"chatsync/internal/config"
	"chatsync/internal/engine"
	clog "chatsync/internal/log"
	"chatsync/internal/models"
	"chatsync/internal/mw"
	"chatsync/internal/server"
	"chatsync/internal/service"
	"chatsync/internal/ws"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	dialTimeout     = 10 * time.Second
	shutdownTimeout = 10 * time.Second
	// exitReauth 告诉外层需要重新登录后再启动。
	exitReauth = 2
)

func main() {
	// main 负责加载配置、初始化日志、建立 websocket 会话并启动本地检查接口。
	cfg := config.Load()
	clog.Init(cfg.Env, cfg.LogLevel)
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	creds := auth.NewCredentials(cfg.Token)
	if err := creds.Usable(time.Now()); err != nil {
		if !(cfg.Env == "dev" && errors.Is(err, auth.ErrNoToken)) {
			log.Error().Err(err).Msg("credentials unusable, login required")
			os.Exit(exitReauth)
		}
		log.Warn().Msg("connecting without access token")
	} else if claims, err := auth.ParseClaims(cfg.Token); err == nil {
		log.Info().Uint("uid", claims.UserID).Msg("credentials loaded")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// workers 只包含随 ctx 退出的后台协程
	workers, ctx := errgroup.WithContext(ctx)

	loop := ws.NewLoop(engine.NewReducer())
	workers.Go(func() error {
		loop.Run(ctx)
		return nil
	})

	dialCtx, dialCancel := context.WithTimeout(ctx, dialTimeout)
	conn, err := ws.Dial(dialCtx, cfg.WSURL, ws.Options{Token: creds.Token(), PingInterval: cfg.PingInterval})
	dialCancel()
	if err != nil {
		if errors.Is(err, ws.ErrUnauthorized) {
			creds.Clear()
			log.Error().Err(err).Msg("handshake rejected, login required")
			os.Exit(exitReauth)
		}
		log.Fatal().Err(err).Str("url", cfg.WSURL).Msg("ws dial")
	}

	roomSvc := service.NewRoomService(conn, loop, loop, cfg.HistoryPageSize)
	msgSvc := service.NewMessageService(conn, loop)

	snaps, unsubscribe := loop.Subscribe()
	sched := announce.NewScheduler(loop,
		announce.WithDurations(cfg.AnnounceVisible, cfg.AnnounceExit),
		announce.WithPhaseHook(func(a models.Announcement, p announce.Phase) {
			if p == announce.PhaseVisible {
				log.Info().Str("announcement_id", a.ID).Msg(a.Text)
			}
		}))
	workers.Go(func() error {
		sched.Run(ctx, snaps)
		return nil
	})
	workers.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case err := <-loop.Conflicts():
				log.Warn().Err(err).Msg("create room rejected")
			}
		}
	})

	rl := mw.NewRateLimiter(rate.Every(time.Second/20), 40, 2*time.Minute)
	go rl.Run(30 * time.Second)
	srv := &http.Server{
		Addr:              cfg.InspectAddr,
		Handler:           server.SetupRouter(cfg, server.NewHandler(loop, roomSvc, msgSvc), rl),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.InspectAddr).Msg("inspect server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("inspect server")
		}
	}()

	sessionDone := make(chan ws.Closed, 1)
	go func() { sessionDone <- ws.RunSession(conn, loop, creds) }()

	ops := map[string]gfshutdown.Operation{
		"inspect-server": func(ctx context.Context) error {
			rl.Stop()
			return srv.Shutdown(ctx)
		},
		"ws-session": func(ctx context.Context) error {
			conn.Close()
			return nil
		},
		"state-loop": func(ctx context.Context) error {
			unsubscribe()
			cancel()
			stopped := make(chan error, 1)
			go func() { stopped <- workers.Wait() }()
			select {
			case err := <-stopped:
				return err
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
	wait := gfshutdown.GracefulShutdown(context.Background(), shutdownTimeout, ops)

	select {
	case code := <-wait:
		log.Info().Int("code", code).Msg("shutdown complete")
		os.Exit(code)
	case closed := <-sessionDone:
		if closed.Reason == ws.CloseLocal {
			// 信号触发的关闭，等待其余清理完成
			os.Exit(<-wait)
		}
		runOps(ops)
		if !creds.HasAuth() {
			log.Warn().Str("reason", string(closed.Reason)).Msg("session ended, login required")
			os.Exit(exitReauth)
		}
		os.Exit(1)
	}
}

// runOps 在会话被远端关闭时按停服流程清理。
func runOps(ops map[string]gfshutdown.Operation) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for name, op := range ops {
		if err := op(ctx); err != nil {
			log.Error().Err(err).Str("op", name).Msg("shutdown")
		}
	}
}

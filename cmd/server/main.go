// cmd/server/main.go
package main

import (
	"log"
	"net/http"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/emberwalk/lobbyd/internal/auth"
	"github.com/emberwalk/lobbyd/internal/database"
	"github.com/emberwalk/lobbyd/internal/handlers"
	"github.com/emberwalk/lobbyd/internal/lobby"
	"github.com/emberwalk/lobbyd/internal/middleware"
	"github.com/emberwalk/lobbyd/internal/realtime"
	"github.com/emberwalk/lobbyd/internal/session"
)

func main() {
	auth.Init()
	database.ConnectDB()
	if err := session.Connect(); err != nil {
		log.Fatalf("session store: %v", err)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	reg := realtime.NewRegistry()
	coord := lobby.NewCoordinator(reg, lobby.FriendCheckerFunc(database.IsFriend), logger)
	ws := handlers.NewWSServer(logger, coord, reg, database.HasMultiplayerProfile)

	mux := http.NewServeMux()

	mux.Handle("/realtime/token", middleware.LogMiddleware(logger)(handlers.TokenHandler(
		logger,
		func(r *http.Request) (int64, error) {
			return session.UserFromRequest(r.Context(), r)
		},
	)))

	// The websocket route logs through its own connect/disconnect hooks; the
	// request middleware would get in the way of the upgrade.
	mux.Handle("/realtime/ws", ws.Handler())

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

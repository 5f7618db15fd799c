package server

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/scythe504/mathdash-backend/internal/database"
	"github.com/scythe504/mathdash-backend/internal/game"
	"github.com/scythe504/mathdash-backend/internal/highscore"
	"github.com/scythe504/mathdash-backend/internal/websockets"
)

type Server struct {
	port int

	db       *database.Service
	store    highscore.Store
	registry *game.Registry
	gateway  *websockets.Gateway
}

func NewServer(db *database.Service, store highscore.Store, registry *game.Registry, gateway *websockets.Gateway) *http.Server {
	port, _ := strconv.Atoi(os.Getenv("PORT"))
	if port == 0 {
		port = 3001
	}

	s := &Server{
		port:     port,
		db:       db,
		store:    store,
		registry: registry,
		gateway:  gateway,
	}

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

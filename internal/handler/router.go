package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/kids-tutor/backend/internal/handler/chat"
	"github.com/zhouzirui/kids-tutor/backend/internal/handler/persona"
	"github.com/zhouzirui/kids-tutor/backend/internal/handler/ws"
	"github.com/zhouzirui/kids-tutor/backend/internal/logging"
	middlewarePkg "github.com/zhouzirui/kids-tutor/backend/internal/middleware"
	personaModel "github.com/zhouzirui/kids-tutor/backend/internal/model/persona"
	chatService "github.com/zhouzirui/kids-tutor/backend/internal/service/chat"
	"github.com/zhouzirui/kids-tutor/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(personas personaModel.Store, chatSvc *chatService.Service, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{
			"status":   "ok",
			"pipeline": string(chatSvc.DefaultPipeline()),
		})
	})

	r.Route("/api", func(api chi.Router) {
		persona.New(personas).RegisterRoutes(api)
		chat.New(chatSvc).RegisterRoutes(api)
		ws.New(chatSvc).RegisterRoutes(api)
	})

	return r
}

package chat

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	chatmodel "github.com/zhouzirui/kids-tutor/backend/internal/model/chat"
	chatService "github.com/zhouzirui/kids-tutor/backend/internal/service/chat"
	"github.com/zhouzirui/kids-tutor/backend/pkg/utils"
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions", h.handleCreateSession)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", h.handleGetSession)
		r.Delete("/", h.handleEndSession)
		r.Get("/turns", h.handleTranscript)
		r.Post("/turns", h.handleSubmitTurn)
	})
}

type createSessionRequest struct {
	PersonaID string `json:"personaId"`
	Pipeline  string `json:"pipeline"`
}

// handleCreateSession 创建会话
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var pipeline chatmodel.Pipeline
	if payload.Pipeline != "" {
		parsed, err := chatmodel.ParsePipeline(payload.Pipeline)
		if err != nil {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		pipeline = parsed
	}

	session, err := h.chatSvc.CreateSession(r.Context(), payload.PersonaID, pipeline)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	zerolog.Ctx(r.Context()).Info().
		Str("session", session.ID).
		Str("persona", session.PersonaID).
		Str("pipeline", string(session.Pipeline)).
		Msg("session created")
	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.EndSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTranscript 返回会话历史
func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	turns, err := h.chatSvc.LoadTranscript(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"turns": turns})
}

type submitTurnRequest struct {
	Text string `json:"text"`
}

type submitTurnResponse struct {
	chatService.TurnResult
	Turns []chatmodel.Turn `json:"turns"`
}

// handleSubmitTurn 执行一轮对话
func (h *Handler) handleSubmitTurn(w http.ResponseWriter, r *http.Request) {
	var payload submitTurnRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var rendered transcriptCapture
	result, err := h.chatSvc.Submit(r.Context(), chi.URLParam(r, "sessionID"), payload.Text, &rendered)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, submitTurnResponse{TurnResult: result, Turns: rendered.turns})
}

// transcriptCapture keeps the history rendered at the end of a turn, so the
// response does not depend on the session still being registered.
type transcriptCapture struct {
	turns []chatmodel.Turn
}

func (c *transcriptCapture) Working(chatService.State)     {}
func (c *transcriptCapture) Render(turns []chatmodel.Turn) { c.turns = turns }
func (c *transcriptCapture) Fail(error)                    {}

func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	kind := chatService.Classify(err)
	status := statusForKind(kind)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("kind", string(kind)).Msg("chat request failed")
	}
	utils.RespondErrorKind(w, status, string(kind), err.Error())
}

func statusForKind(kind chatService.ErrorKind) int {
	switch kind {
	case chatService.KindInputRejected:
		return http.StatusBadRequest
	case chatService.KindNotFound:
		return http.StatusNotFound
	case chatService.KindBusy:
		return http.StatusConflict
	case chatService.KindAuthentication:
		return http.StatusBadGateway
	case chatService.KindRateLimit:
		return http.StatusTooManyRequests
	case chatService.KindTransport:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

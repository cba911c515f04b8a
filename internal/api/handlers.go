package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/duybaohuynhtan/CareerAgent/internal/ai"
	"github.com/duybaohuynhtan/CareerAgent/internal/document"
	"github.com/duybaohuynhtan/CareerAgent/internal/logger"
	"github.com/duybaohuynhtan/CareerAgent/internal/orchestrator"
	"github.com/duybaohuynhtan/CareerAgent/internal/session"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	msgCleared     = "Chat history and uploaded files cleared successfully"
	msgBusy        = "Another request for this session is still in progress. Please wait for it to finish."
	msgUnsupported = "Only PDF, DOC, DOCX, and TXT files are supported"
	msgUnreadable  = "The document could not be read. It may be corrupt or password protected."
	msgEmpty       = "The document contains no text."
	multipartSlack = 1 << 20
)

type Handler struct {
	orch          *orchestrator.Orchestrator
	store         *session.Store
	maxUploadSize int64
	version       string
	validate      *validator.Validate
	logger        *zap.Logger
}

// NewHandler creates the HTTP handlers. maxUploadSize is the document size
// limit; uploads of that size or more are rejected.
func NewHandler(orch *orchestrator.Orchestrator, maxUploadSize int64, version string, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if maxUploadSize <= 0 {
		maxUploadSize = document.DefaultMaxSize
	}
	return &Handler{
		orch:          orch,
		store:         orch.Store(),
		maxUploadSize: maxUploadSize,
		version:       version,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		logger:        log,
	}
}

type HistoryTurn struct {
	ID        string    `json:"id,omitempty"`
	Role      string    `json:"role" validate:"oneof=user assistant"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

type ChatRequest struct {
	Message     string        `json:"message" validate:"required,max=20000"`
	ChatHistory []HistoryTurn `json:"chatHistory" validate:"omitempty,max=200,dive"`
}

type ChatResponse struct {
	Response string `json:"response"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

type ModelRequest struct {
	Model string `json:"model" validate:"required"`
}

type ModelResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	CurrentModel string `json:"current_model"`
}

type ModelInfoResponse struct {
	CurrentModel    string   `json:"current_model"`
	AvailableModels []string `json:"available_models"`
}

type ModelsResponse struct {
	Models       []ai.Model `json:"models"`
	CurrentModel string     `json:"current_model,omitempty"`
}

type ClearResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type HistoryResponse struct {
	Success  bool               `json:"success"`
	Model    string             `json:"current_model"`
	History  []session.ChatTurn `json:"history"`
	Document *session.Document  `json:"document,omitempty"`
}

type UploadResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	FileID     string `json:"file_id,omitempty"`
	CVAnalysis string `json:"cv_analysis,omitempty"`
}

func (h *Handler) decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := h.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid request body: %s failed on %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return err
	}
	return nil
}

func (h *Handler) Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "CareerAgent API",
		"version": h.version,
		"health":  "/api/health",
	})
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "Message must not be empty", nil)
		return
	}

	seed := make([]session.ChatTurn, 0, len(req.ChatHistory))
	for _, t := range req.ChatHistory {
		seed = append(seed, session.ChatTurn{
			Role:      session.Role(t.Role),
			Content:   t.Content,
			CreatedAt: t.Timestamp,
		})
	}

	reply, err := h.orch.Chat(r.Context(), sessionID(r), req.Message, seed)
	if err != nil {
		if errors.Is(err, session.ErrBusy) {
			writeError(w, http.StatusConflict, msgBusy, err)
			return
		}
		writeError(w, statusFor(err), orchestrator.FailureMessage, err)
		return
	}

	resp := ChatResponse{Response: reply.Text, Success: reply.Success}
	if reply.Err != nil {
		resp.Error = reply.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	snap := h.store.GetOrCreate(sessionID(r)).Snapshot()
	history := snap.History
	if history == nil {
		history = []session.ChatTurn{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{
		Success:  true,
		Model:    snap.Model,
		History:  history,
		Document: snap.Document,
	})
}

func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	h.store.Clear(sessionID(r))
	writeJSON(w, http.StatusOK, ClearResponse{Success: true, Message: msgCleared})
}

func (h *Handler) GetModel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ModelInfoResponse{
		CurrentModel:    h.store.GetOrCreate(sessionID(r)).Model(),
		AvailableModels: h.store.Registry().IDs(),
	})
}

func (h *Handler) SetModel(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)

	var req ModelRequest
	if err := h.decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ModelResponse{
			Message:      err.Error(),
			CurrentModel: h.store.GetOrCreate(id).Model(),
		})
		return
	}

	model := strings.TrimSpace(req.Model)
	if err := h.store.SetModel(id, model); err != nil {
		writeJSON(w, statusFor(err), ModelResponse{
			Message: fmt.Sprintf("Invalid model '%s'. Available models: %s",
				model, strings.Join(h.store.Registry().IDs(), ", ")),
			CurrentModel: h.store.GetOrCreate(id).Model(),
		})
		return
	}

	writeJSON(w, http.StatusOK, ModelResponse{
		Success:      true,
		Message:      fmt.Sprintf("Model updated to %s. Chat history and files have been cleared.", model),
		CurrentModel: model,
	})
}

func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	resp := ModelsResponse{Models: h.store.Registry().Models()}
	if id := requestedSession(r); id != "" && h.validate.Var(id, "max=128,printascii") == nil {
		resp.CurrentModel = h.store.GetOrCreate(id).Model()
	}
	writeJSON(w, http.StatusOK, resp)
}

// UploadCV streams the multipart body: the file name is checked before any
// content is read and at most maxUploadSize bytes are buffered.
func (h *Handler) UploadCV(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+multipartSlack)

	mr, err := r.MultipartReader()
	if err != nil {
		writeUpload(w, http.StatusBadRequest, "Expected a multipart/form-data upload with a file field")
		return
	}

	var (
		fileName string
		data     []byte
	)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			writeUpload(w, http.StatusBadRequest, "No file provided")
			return
		}
		if err != nil {
			h.uploadReadError(w, err)
			return
		}
		if part.FormName() != "file" {
			_ = part.Close()
			continue
		}

		fileName = part.FileName()
		if fileName == "" {
			writeUpload(w, http.StatusBadRequest, "No filename provided")
			return
		}
		if _, err := document.FormatOf(fileName); err != nil {
			writeUpload(w, http.StatusUnsupportedMediaType, msgUnsupported)
			return
		}

		data, err = io.ReadAll(io.LimitReader(part, h.maxUploadSize))
		if err != nil {
			h.uploadReadError(w, err)
			return
		}
		break
	}

	log := h.logger.With(zap.String(logger.FieldSession, sessionID(r)), zap.String("file_name", fileName))

	result, err := h.orch.AttachDocument(r.Context(), sessionID(r), fileName, data)
	if err != nil {
		status := statusFor(err)
		log.Warn("upload rejected", zap.Int("status", status), zap.Error(err))

		resp := UploadResponse{Message: h.uploadMessage(fileName, err)}
		if result != nil {
			resp.FileID = result.FileID
		}
		writeJSON(w, status, resp)
		return
	}

	writeJSON(w, http.StatusOK, UploadResponse{
		Success:    true,
		Message:    fmt.Sprintf("CV '%s' uploaded and analyzed successfully", fileName),
		FileID:     result.FileID,
		CVAnalysis: result.Analysis.Markdown(),
	})
}

func (h *Handler) uploadReadError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeUpload(w, http.StatusRequestEntityTooLarge, h.sizeMessage())
		return
	}
	writeUpload(w, http.StatusBadRequest, "Malformed multipart upload")
}

func (h *Handler) uploadMessage(fileName string, err error) string {
	switch {
	case errors.Is(err, session.ErrBusy):
		return msgBusy
	case errors.Is(err, document.ErrUnsupportedFormat):
		return msgUnsupported
	case errors.Is(err, document.ErrPayloadTooLarge):
		return h.sizeMessage()
	case errors.Is(err, document.ErrUnreadableDocument):
		return msgUnreadable
	case errors.Is(err, document.ErrEmptyDocument):
		return msgEmpty
	default:
		return fmt.Sprintf("CV '%s' was uploaded but could not be analyzed: %v", fileName, err)
	}
}

func (h *Handler) sizeMessage() string {
	return fmt.Sprintf("File size exceeds the %d MiB limit", h.maxUploadSize>>20)
}

func writeUpload(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, UploadResponse{Message: message})
}

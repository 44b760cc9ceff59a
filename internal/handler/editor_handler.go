package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/visionpointmarketing/troy-sandbox/internal/logger"
	"github.com/visionpointmarketing/troy-sandbox/internal/models"
	"github.com/visionpointmarketing/troy-sandbox/internal/registry"
	"github.com/visionpointmarketing/troy-sandbox/internal/render"
	"github.com/visionpointmarketing/troy-sandbox/internal/service"
	"github.com/visionpointmarketing/troy-sandbox/internal/validation"
)

// maxJSONBody bounds request bodies other than uploads and imports.
const maxJSONBody = 1 << 20

type EditorHandler struct {
	Sessions      *service.SessionService
	Catalog       *registry.Registry
	Exporter      *render.Exporter
	Hub           *Hub
	MaxImageBytes int64
	Log           *logger.Logger
}

// Register mounts every editor route on r, normally the /api/v1 subrouter.
func (h *EditorHandler) Register(r *mux.Router) {
	r.HandleFunc("/templates", h.ListTemplates).Methods("GET")
	r.HandleFunc("/templates/{type}", h.GetTemplate).Methods("GET")
	r.HandleFunc("/categories", h.ListCategories).Methods("GET")
	r.HandleFunc("/pages", h.ListPages).Methods("GET")
	r.HandleFunc("/colors", h.ListColors).Methods("GET")

	r.HandleFunc("/sessions", h.CreateSession).Methods("POST")
	r.HandleFunc("/sessions", h.ListSessions).Methods("GET")
	r.HandleFunc("/sessions/{id}", h.GetSession).Methods("GET")
	r.HandleFunc("/sessions/{id}", h.DeleteSession).Methods("DELETE")

	s := r.PathPrefix("/sessions/{id}").Subrouter()
	s.HandleFunc("/sections", h.ListSections).Methods("GET")
	s.HandleFunc("/sections", h.AddSection).Methods("POST")
	s.HandleFunc("/sections", h.ClearSections).Methods("DELETE")
	s.HandleFunc("/sections/{sid}", h.GetSection).Methods("GET")
	s.HandleFunc("/sections/{sid}", h.DeleteSection).Methods("DELETE")
	s.HandleFunc("/sections/{sid}/content", h.UpdateContent).Methods("PATCH")
	s.HandleFunc("/sections/{sid}/visibility", h.UpdateVisibility).Methods("PUT")
	s.HandleFunc("/sections/{sid}/colors", h.UpdateColor).Methods("PUT")
	s.HandleFunc("/sections/{sid}/duplicate", h.DuplicateSection).Methods("POST")
	s.HandleFunc("/sections/{sid}/images/{field}", h.AttachImage).Methods("POST")
	s.HandleFunc("/move", h.MoveSection).Methods("POST")

	s.HandleFunc("/undo", h.Undo).Methods("POST")
	s.HandleFunc("/redo", h.Redo).Methods("POST")
	s.HandleFunc("/history", h.History).Methods("GET")
	s.HandleFunc("/focus", h.Focus).Methods("POST")
	s.HandleFunc("/blur", h.Blur).Methods("POST")

	s.HandleFunc("/canvas", h.Canvas).Methods("GET")
	s.HandleFunc("/markup", h.Markup).Methods("GET")
	s.HandleFunc("/page", h.Page).Methods("GET")
	s.HandleFunc("/preview/{viewport}", h.Preview).Methods("GET")
	s.HandleFunc("/export", h.Export).Methods("GET")
	s.HandleFunc("/import", h.Import).Methods("POST")
	s.HandleFunc("/ws", h.Websocket).Methods("GET")
}

func (h *EditorHandler) logger() *logger.Logger {
	if h.Log == nil {
		return logger.Nop()
	}
	return h.Log
}

// ── Catalog ──────────────────────────────────────────────────────────────────

func (h *EditorHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Catalog.All())
}

func (h *EditorHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	t, ok := h.Catalog.Get(mux.Vars(r)["type"])
	if !ok {
		h.writeError(w, service.ErrUnknownSectionType)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *EditorHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	type category struct {
		registry.Category
		Templates []string `json:"templates"`
	}
	grouped := h.Catalog.ByCategory()
	out := make([]category, 0, len(grouped))
	for _, c := range h.Catalog.Categories() {
		types := make([]string, 0, len(grouped[c.ID]))
		for _, t := range grouped[c.ID] {
			types = append(types, t.Type)
		}
		out = append(out, category{Category: c, Templates: types})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *EditorHandler) ListPages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Catalog.Pages())
}

func (h *EditorHandler) ListColors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]registry.Color{
		"section": registry.BackgroundColors(),
		"card":    registry.CardBackgroundColors(),
	})
}

// ── Sessions ─────────────────────────────────────────────────────────────────

func (h *EditorHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PageTemplate string `json:"page_template"`
	}
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}

	sess, err := h.Sessions.CreateSession(req.PageTemplate)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess.Info())
}

func (h *EditorHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.Sessions.ListSessions()
	out := make([]models.EditorSession, len(sessions))
	for i, s := range sessions {
		out[i] = s.Info()
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *EditorHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Info())
}

func (h *EditorHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, service.ErrSessionNotFound)
		return
	}
	if h.Hub != nil {
		h.Hub.Disconnect(id)
	}
	if err := h.Sessions.DeleteSession(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ── Sections ─────────────────────────────────────────────────────────────────

func (h *EditorHandler) ListSections(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Store.Sections())
}

func (h *EditorHandler) AddSection(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Type string `json:"type"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.ValidateSectionType(req.Type); err != nil {
		h.writeError(w, err)
		return
	}
	sec, err := sess.AddSection(req.Type)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sec)
}

func (h *EditorHandler) ClearSections(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.Store.Clear()
	writeJSON(w, http.StatusOK, sess.Store.Sections())
}

func (h *EditorHandler) GetSection(w http.ResponseWriter, r *http.Request) {
	_, sec, ok := h.section(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sec)
}

func (h *EditorHandler) DeleteSection(w http.ResponseWriter, r *http.Request) {
	sess, sec, ok := h.section(w, r)
	if !ok {
		return
	}
	sess.Store.DeleteSection(sec.ID)
	w.WriteHeader(http.StatusNoContent)
}

// UpdateContent sets one field. Silent updates track typing and skip
// history; the final value is committed with a non-silent update or a blur.
func (h *EditorHandler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	sess, sec, ok := h.section(w, r)
	if !ok {
		return
	}
	var req struct {
		Field  string `json:"field"`
		Value  string `json:"value"`
		Silent bool   `json:"silent"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.ValidateFieldKey(req.Field); err != nil {
		h.writeError(w, err)
		return
	}
	if req.Silent {
		sess.Store.UpdateSectionSilent(sec.ID, req.Field, req.Value)
	} else {
		sess.Store.UpdateSection(sec.ID, req.Field, req.Value)
	}
	h.writeSection(w, sess, sec.ID)
}

// UpdateVisibility toggles one field, or every field when field is empty.
func (h *EditorHandler) UpdateVisibility(w http.ResponseWriter, r *http.Request) {
	sess, sec, ok := h.section(w, r)
	if !ok {
		return
	}
	var req struct {
		Field   string `json:"field"`
		Visible bool   `json:"visible"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Field == "" {
		sess.Store.SetAllVisibility(sec.ID, req.Visible)
	} else {
		if err := validation.ValidateFieldKey(req.Field); err != nil {
			h.writeError(w, err)
			return
		}
		sess.Store.UpdateVisibility(sec.ID, req.Field, req.Visible)
	}
	h.writeSection(w, sess, sec.ID)
}

func (h *EditorHandler) UpdateColor(w http.ResponseWriter, r *http.Request) {
	sess, sec, ok := h.section(w, r)
	if !ok {
		return
	}
	var req struct {
		Slot  string `json:"slot"`
		Color string `json:"color"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Slot == "" {
		req.Slot = models.ColorBackground
	}
	switch {
	case req.Slot != models.ColorBackground && req.Slot != models.ColorCardBackground:
		writeMessage(w, http.StatusBadRequest, fmt.Sprintf("unknown color slot %q", req.Slot))
		return
	case req.Slot == models.ColorCardBackground && !h.Catalog.HasCards(sec.Type):
		writeMessage(w, http.StatusBadRequest, fmt.Sprintf("section type %q has no cards", sec.Type))
		return
	case !registry.IsColorKey(req.Color):
		writeMessage(w, http.StatusBadRequest, fmt.Sprintf("unknown color %q", req.Color))
		return
	}
	sess.Store.UpdateSectionColor(sec.ID, req.Slot, req.Color)
	h.writeSection(w, sess, sec.ID)
}

func (h *EditorHandler) DuplicateSection(w http.ResponseWriter, r *http.Request) {
	sess, sec, ok := h.section(w, r)
	if !ok {
		return
	}
	dup, ok := sess.Store.DuplicateSection(sec.ID)
	if !ok {
		h.writeError(w, service.ErrSectionNotFound)
		return
	}
	writeJSON(w, http.StatusCreated, dup)
}

// MoveSection reorders the document. Out of range indices are ignored.
func (h *EditorHandler) MoveSection(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		From int `json:"from"`
		To   int `json:"to"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	sess.Store.MoveSection(req.From, req.To)
	writeJSON(w, http.StatusOK, sess.Store.Sections())
}

// AttachImage accepts a multipart "file" upload or a JSON body carrying a
// data URL.
func (h *EditorHandler) AttachImage(w http.ResponseWriter, r *http.Request) {
	sess, sec, ok := h.section(w, r)
	if !ok {
		return
	}
	field := mux.Vars(r)["field"]
	limit := h.MaxImageBytes
	if limit <= 0 {
		limit = validation.MaxImageSize
	}

	var key string
	var err error
	if mediaIsMultipart(r) {
		r.Body = http.MaxBytesReader(w, r.Body, limit+64<<10)
		if err := r.ParseMultipartForm(limit); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				h.writeError(w, validation.ErrFileTooLarge)
				return
			}
			writeMessage(w, http.StatusBadRequest, "Invalid multipart form")
			return
		}
		file, header, ferr := r.FormFile("file")
		if ferr != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid file")
			return
		}
		defer file.Close()
		key, err = sess.Images.AttachUpload(r.Context(), sec.ID, field, file, header)
	} else {
		var req struct {
			DataURL string `json:"dataUrl"`
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit*4/3+maxJSONBody)
		if !decodeJSON(w, r, &req) {
			return
		}
		key, err = sess.Images.Attach(r.Context(), sec.ID, field, req.DataURL)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"asset_id": key, "section_id": sec.ID, "field": field})
}

// ── History and editing ──────────────────────────────────────────────────────

func (h *EditorHandler) Undo(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.Store.Undo()
	writeJSON(w, http.StatusOK, historyState(sess))
}

func (h *EditorHandler) Redo(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.Store.Redo()
	writeJSON(w, http.StatusOK, historyState(sess))
}

func (h *EditorHandler) History(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, historyState(sess))
}

func historyState(sess *service.Session) map[string]any {
	return map[string]any{
		"can_undo": sess.Store.CanUndo(),
		"can_redo": sess.Store.CanRedo(),
		"depth":    sess.Store.HistoryDepth(),
	}
}

func (h *EditorHandler) Focus(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req render.Target
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, ok := sess.Store.Section(req.SectionID); !ok {
		h.writeError(w, service.ErrSectionNotFound)
		return
	}
	sess.Guard.Focus(req.SectionID, req.Field)
	w.WriteHeader(http.StatusNoContent)
}

// Blur ends the active edit. A value, when given, is committed to the
// focused field as one history step.
func (h *EditorHandler) Blur(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		SectionID string  `json:"section_id"`
		Field     string  `json:"field"`
		Value     *string `json:"value"`
	}
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}
	if req.Value == nil {
		sess.Guard.Blur()
	} else {
		if target, ok := sess.Guard.Target(); ok && req.SectionID == "" {
			req.SectionID, req.Field = target.SectionID, target.Field
		}
		if err := validation.ValidateFieldKey(req.Field); err != nil {
			h.writeError(w, err)
			return
		}
		sess.Commit(req.SectionID, req.Field, *req.Value)
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Output ───────────────────────────────────────────────────────────────────

func (h *EditorHandler) Canvas(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"markup":        sess.Canvas.Markup(),
		"section_count": sess.Canvas.SectionCount(),
		"pending":       sess.Canvas.Pending(),
	})
}

func (h *EditorHandler) Markup(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeHTML(w, h.Exporter.Markup(sess.Store.Sections()))
}

func (h *EditorHandler) Page(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	page, err := h.Exporter.Document(sess.Store.Sections())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if r.URL.Query().Get("download") != "" {
		w.Header().Set("Content-Disposition", `attachment; filename="troy-landing-page.html"`)
	}
	writeHTML(w, page)
}

func (h *EditorHandler) Preview(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	page, err := h.Exporter.Preview(sess.Store.Sections(), mux.Vars(r)["viewport"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeHTML(w, page)
}

func (h *EditorHandler) Export(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	data, err := sess.Codec.ExportJSON(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="troy-page-`+strconv.FormatInt(sess.CreatedAt.Unix(), 10)+`.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Import replaces the document (and, when the file carries images, the
// session's assets) from an export file sent as the raw body or as a
// multipart "file".
func (h *EditorHandler) Import(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	limit := h.MaxImageBytes
	if limit <= 0 {
		limit = validation.MaxImageSize
	}
	r.Body = http.MaxBytesReader(w, r.Body, 8*limit)

	var body io.Reader = r.Body
	if mediaIsMultipart(r) {
		file, _, err := r.FormFile("file")
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid file")
			return
		}
		defer file.Close()
		body = file
	}
	data, err := io.ReadAll(body)
	if err != nil {
		writeMessage(w, http.StatusRequestEntityTooLarge, "import file too large")
		return
	}
	if err := sess.Codec.Import(r.Context(), data); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Info())
}

func (h *EditorHandler) Websocket(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	h.Hub.Serve(w, r, sess)
}

// ── Helpers ──────────────────────────────────────────────────────────────────

func (h *EditorHandler) session(w http.ResponseWriter, r *http.Request) (*service.Session, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, service.ErrSessionNotFound)
		return nil, false
	}
	sess, err := h.Sessions.GetSession(id)
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	return sess, true
}

func (h *EditorHandler) section(w http.ResponseWriter, r *http.Request) (*service.Session, models.Section, bool) {
	sess, ok := h.session(w, r)
	if !ok {
		return nil, models.Section{}, false
	}
	sec, ok := sess.Store.Section(mux.Vars(r)["sid"])
	if !ok {
		h.writeError(w, service.ErrSectionNotFound)
		return nil, models.Section{}, false
	}
	return sess, sec, true
}

func (h *EditorHandler) writeSection(w http.ResponseWriter, sess *service.Session, id string) {
	sec, ok := sess.Store.Section(id)
	if !ok {
		h.writeError(w, service.ErrSectionNotFound)
		return
	}
	writeJSON(w, http.StatusOK, sec)
}

// writeError maps domain errors to status codes. Unknown errors are logged
// and reported as 500 without detail.
func (h *EditorHandler) writeError(w http.ResponseWriter, err error) {
	var formatErr *service.FormatError
	switch {
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrSectionNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, validation.ErrFileTooLarge):
		writeMessage(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.As(err, &formatErr),
		errors.Is(err, service.ErrImportRejected),
		errors.Is(err, service.ErrUnknownSectionType),
		errors.Is(err, service.ErrUnknownPageTemplate),
		errors.Is(err, render.ErrUnknownViewport),
		errors.Is(err, validation.ErrInvalidDataURL),
		errors.Is(err, validation.ErrInvalidFileType),
		errors.Is(err, validation.ErrEmptyFile),
		errors.Is(err, validation.ErrFilenameTooLong),
		errors.Is(err, validation.ErrInvalidField),
		errors.Is(err, validation.ErrInvalidType):
		writeMessage(w, http.StatusBadRequest, err.Error())
	default:
		h.logger().Error("request failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody*16)).Decode(v); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

func mediaIsMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeHTML(w http.ResponseWriter, html string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, html)
}

package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"storkagent/screen"
	"storkagent/tools"
)

// Handler 工具调用的 JSON 接口
type Handler struct {
	tools *tools.Tools
	log   *zap.Logger
}

// Register mounts every tool endpoint on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.HandleFunc("GET /api/quote/{code}", h.handleQuote)
	mux.HandleFunc("GET /api/history/{code}", h.handleHistory)
	mux.HandleFunc("GET /api/indicator/{code}", h.handleIndicator)
	mux.HandleFunc("POST /api/screen", h.handleScreen)
	mux.HandleFunc("GET /api/search", h.handleSearch)
	mux.HandleFunc("POST /api/session/next", h.handleNextPage)
	mux.HandleFunc("POST /api/session/prev", h.handlePrevPage)
	mux.HandleFunc("POST /api/session/goto", h.handleGotoPage)
	mux.HandleFunc("GET /api/session/page", h.handlePageInfo)
	mux.HandleFunc("POST /api/session/clear", h.handleClearSession)
	mux.HandleFunc("POST /api/export", h.handleExport)
	mux.HandleFunc("POST /api/cache/clear", h.handleClearCache)
	mux.HandleFunc("GET /api/cache/stats", h.handleCacheStats)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError 把错误翻译为响应：预期中的"还没有查询"不是故障，
// 返回 200 + 提示语，由上层代理转述给用户
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tools.ErrNoQuery):
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"no_query": true,
			"message":  "当前没有进行中的查询，请先执行筛选或搜索",
		})
	case errors.Is(err, tools.ErrInvalidCode):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func sessionID(r *http.Request) string {
	return r.URL.Query().Get("session_id")
}

func intQuery(r *http.Request, name string, fallback int) int {
	if raw := r.URL.Query().Get(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleQuote(w http.ResponseWriter, r *http.Request) {
	quote, err := h.tools.QueryStock(r.PathValue("code"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	klines, err := h.tools.StockHistory(r.PathValue("code"), intQuery(r, "days", 30))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"code":  r.PathValue("code"),
		"count": len(klines),
		"data":  klines,
	})
}

func (h *Handler) handleIndicator(w http.ResponseWriter, r *http.Request) {
	res, err := h.tools.Indicator(
		r.PathValue("code"),
		r.URL.Query().Get("name"),
		intQuery(r, "period", 0),
		intQuery(r, "days", 0),
	)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type screenRequest struct {
	screen.Criteria
	Page      int    `json:"page"`
	PageSize  int    `json:"page_size"`
	SessionID string `json:"session_id"`
}

func (h *Handler) handleScreen(w http.ResponseWriter, r *http.Request) {
	var req screenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	res, err := h.tools.ScreenStocks(req.SessionID, &req.Criteria, req.Page, req.PageSize)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	keyword := r.URL.Query().Get("keyword")
	if keyword == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "keyword is required"})
		return
	}
	res, err := h.tools.SearchStocks(sessionID(r), keyword, intQuery(r, "limit", 10))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleNextPage(w http.ResponseWriter, r *http.Request) {
	res, err := h.tools.NextPage(sessionID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handlePrevPage(w http.ResponseWriter, r *http.Request) {
	res, err := h.tools.PrevPage(sessionID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleGotoPage(w http.ResponseWriter, r *http.Request) {
	res, err := h.tools.GotoPage(sessionID(r), intQuery(r, "page", 1))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handlePageInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.tools.PageInfo(sessionID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handler) handleClearSession(w http.ResponseWriter, r *http.Request) {
	h.tools.ClearSession(sessionID(r))
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	path, rows, err := h.tools.ExportCurrent(sessionID(r), format)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"filepath": path,
		"rows":     rows,
	})
}

func (h *Handler) handleClearCache(w http.ResponseWriter, r *http.Request) {
	removed := h.tools.ClearCache(intQuery(r, "days", 7))
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (h *Handler) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tools.CacheStats())
}

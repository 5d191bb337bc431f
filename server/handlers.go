package server

import (
	"encoding/json"
	"errors"
	"github.com/go-chi/chi/v5"
	"github.com/magic-lib/go-plat-guildcache/guild"
	"github.com/magic-lib/go-plat-guildcache/upstream"
	"go.uber.org/zap"
	"net/http"
	"net/url"
)

const guildCacheControl = "public, max-age=300"

type healthResponse struct {
	Status         string `json:"status"`
	GuildCacheSize int    `json:"guild_cache_size"`
}

func (s *Server) getGuild(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	// 路由在 RawPath 上匹配时参数仍是转义形式
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(name)
		if err != nil {
			s.writeError(w, r, guild.ErrInvalidName)
			return
		}
		name = unescaped
	}

	payload, err := s.svc.Guild(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", guildCacheControl)
	_, _ = w.Write([]byte(payload))
}

func (s *Server) getGuildsOnline(w http.ResponseWriter, r *http.Request) {
	names := guild.ParseNames(r.URL.Query().Get("names"))
	result, err := s.svc.Online(r.Context(), names)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) getHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:         "ok",
		GuildCacheSize: s.svc.CacheSize(),
	})
}

// writeError 名称非法和批量过大为 400，上游不存在为 404，
// 上游返回的 4xx/5xx 原样透传，其余上游错误为 502
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusBadGateway
	var se *upstream.StatusError
	switch {
	case errors.Is(err, guild.ErrInvalidName), errors.Is(err, guild.ErrBatchTooLarge):
		code = http.StatusBadRequest
	case errors.Is(err, upstream.ErrNotFound):
		code = http.StatusNotFound
	case r.Context().Err() != nil:
		return
	case errors.As(err, &se) && se.Code >= 400 && se.Code <= 599:
		code = se.Code
		s.opts.Logger.Warn("upstream returned error status", zap.String("path", r.URL.Path), zap.Int("status", se.Code))
	default:
		s.opts.Logger.Warn("upstream fetch failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	http.Error(w, http.StatusText(code), code)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.opts.Logger.Debug("write response", zap.Error(err))
	}
}

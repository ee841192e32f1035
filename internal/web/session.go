package web

import (
	"net/http"

	"github.com/JonMunkholm/sheetclean/internal/logging"
	"github.com/JonMunkholm/sheetclean/internal/session"
	"github.com/JonMunkholm/sheetclean/internal/web/templates"
)

// currentSession returns the caller's session, starting a new one and
// setting the cookie when the cookie is missing or its session has expired.
func (s *Server) currentSession(w http.ResponseWriter, r *http.Request) session.Snapshot {
	if c, err := r.Cookie(s.cfg.Session.CookieName); err == nil {
		if snap, err := s.flow.Snapshot(c.Value); err == nil {
			return snap
		}
	}

	snap := s.flow.Start()
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Session.CookieName,
		Value:    snap.ID,
		Path:     "/",
		MaxAge:   int(s.cfg.Session.TTL.Seconds()),
		HttpOnly: true,
		Secure:   s.cfg.Session.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	logging.FromContext(r.Context()).Debug("session started", "session_id", snap.ID)
	return snap
}

// snapshotOr re-reads a session after a failed step, falling back to snap.
func (s *Server) snapshotOr(snap session.Snapshot) session.Snapshot {
	if fresh, err := s.flow.Snapshot(snap.ID); err == nil {
		return fresh
	}
	return snap
}

// renderPage writes the full workspace page.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, v templates.View) {
	v.MaxFiles = s.cfg.Upload.MaxFiles
	if v.Error != nil {
		// A failed step renders the state the session is actually in.
		v.Snapshot = s.snapshotOr(v.Snapshot)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	page := templates.Page("Merge and clean spreadsheets", templates.Workspace(v))
	if err := page.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render failed", "error", err)
	}
}

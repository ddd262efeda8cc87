package web

import (
	"net/http"

	"github.com/a-h/templ"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRuns(r.Context(), defaultListLimit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	render(w, r, runsIndex(runs))
}

func (s *Server) handleRunPage(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}
	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	records, err := s.store.Errors(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	render(w, r, runDetail(run, records))
}

func render(w http.ResponseWriter, r *http.Request, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	templ.Handler(c).ServeHTTP(w, r)
}

package api

import (
	"mime"
	"net/http"

	"github.com/local/pdfdesk/internal/jobs"
)

// handleJob lists the artifacts currently in a job directory.
func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	arts, err := s.deps.Store.List(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobResponse{JobID: id, Results: arts, ZipURL: s.deps.Store.ZipURL(id)})
}

func (s *Server) handleJobFile(w http.ResponseWriter, r *http.Request) {
	f, info, err := s.deps.Store.Open(r.PathValue("id"), r.PathValue("filename"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": info.Name()}))
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// handleJobZip builds the bundle on every request.
func (s *Server) handleJobZip(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	buf, err := s.deps.Store.BuildZip(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sendFile(w, jobs.ZipName(id), "application/zip", buf.Bytes())
}

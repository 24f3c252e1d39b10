package api

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/studiokit/render-agent/internal/export"
	"github.com/studiokit/render-agent/internal/timeline"
)

// exportHandler renders a submitted timeline. The document is returned in
// the response body, or written to output_dir when one is given.
func exportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req export.ExportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		format, err := export.ParseFormat(req.Format)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		if req.FrameRate == 0 {
			req.FrameRate = cfg.DefaultFrameRate
		}
		project := req.Project()

		data, err := export.Generate(project, format)
		if err != nil {
			var projErr *timeline.InvalidProjectError
			var clipErr *timeline.InvalidClipError
			if errors.As(err, &projErr) || errors.As(err, &clipErr) {
				WriteError(w, http.StatusUnprocessableEntity, err.Error(), "INVALID_TIMELINE")
				return
			}
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		fileName := export.FileName(project.Title, format)

		if req.OutputDir == "" {
			w.Header().Set("Content-Type", format.ContentType())
			w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": fileName}))
			w.WriteHeader(http.StatusOK)
			w.Write(data)
			return
		}

		if err := export.ValidateOutputDir(req.OutputDir); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		outputPath := filepath.Join(req.OutputDir, fileName)
		if err := os.WriteFile(outputPath, data, 0o644); err != nil {
			cfg.Logger.Error("failed to write export", "error", err, "path", outputPath)
			WriteError(w, http.StatusInternalServerError, "failed to write export file", "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusOK, export.ExportResponse{
			Status:     "ok",
			Format:     string(format),
			OutputPath: outputPath,
			ClipCount:  len(project.Clips),
		})
	}
}

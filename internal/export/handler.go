package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"grantflow/internal/app/apiresp"
	"grantflow/internal/collection"
)

type Handler struct {
	svc exportService
}

type exportService interface {
	Export(ctx context.Context, w io.Writer, in ExportInput) error
}

func NewHandler(svc exportService) *Handler {
	return &Handler{svc: svc}
}

var contentTypes = map[Format]string{
	FormatCSV:  "text/csv; charset=utf-8",
	FormatJSON: "application/json",
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// Download streams an export straight to the response. Errors raised before
// the first byte produce a normal error envelope; a failure mid-stream can
// only be logged and the connection cut, which leaves the client with a
// visibly truncated file rather than a silently wrong one.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	collectionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid collection id")
		return
	}
	format, err := ParseFormat(strings.TrimSpace(r.URL.Query().Get("format")))
	if err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "format must be csv, json or xlsx")
		return
	}
	mode := strings.TrimSpace(r.URL.Query().Get("mode"))

	w.Header().Set("Content-Type", contentTypes[format])
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("collection-%s-export.%s", collectionID, format)))

	cw := &countingWriter{w: w}
	if err := h.svc.Export(r.Context(), cw, ExportInput{
		CollectionID: collectionID,
		Mode:         mode,
		Format:       format,
	}); err != nil {
		if cw.n > 0 {
			// Headers and part of the body are already out; abort the stream.
			log.Printf(`{"event":"export_aborted","collection_id":"%s","format":"%s","error":%q}`,
				collectionID, format, err.Error())
			return
		}
		h.writeExportError(w, r, err)
		return
	}
}

func (h *Handler) writeExportError(w http.ResponseWriter, r *http.Request, err error) {
	// Falling back to an error envelope: stop advertising a file download.
	// apiresp overwrites the Content-Type on write.
	w.Header().Del("Content-Disposition")

	var flattening *FlatteningError
	switch {
	case errors.Is(err, collection.ErrCollectionNotFound):
		apiresp.WriteError(w, r, http.StatusNotFound, "collection not found")
	case errors.Is(err, ErrInvalidMode):
		apiresp.WriteError(w, r, http.StatusBadRequest, "mode must be test or live")
	case errors.As(err, &flattening):
		apiresp.WriteErrorDetails(w, r, http.StatusUnprocessableEntity, flattening.Error(), map[string]string{
			"question": flattening.Question,
			"reason":   flattening.Reason,
		})
	default:
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

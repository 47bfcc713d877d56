package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"time"

	"ravelon/internal/domain"
	"ravelon/internal/storage"
	"ravelon/pkg/zip"
)

type recordDTO struct {
	ID        string    `json:"id"`
	InputRef  string    `json:"input_ref,omitempty"`
	OutputRef string    `json:"output_ref,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ListRecords lists the caller's enhancement history, newest first.
func (a *App) ListRecords(w http.ResponseWriter, r *http.Request) {
	acct, err := a.account(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	recs, err := a.Records.ListByAccount(r.Context(), acct.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items := make([]recordDTO, 0, len(recs))
	for _, rec := range recs {
		items = append(items, recordDTO{ID: rec.ID, InputRef: rec.InputRef, OutputRef: rec.OutputRef, CreatedAt: rec.CreatedAt})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

// ExportRecords streams the enhanced photos of the caller as a zip archive.
// Records whose output is gone are skipped.
func (a *App) ExportRecords(w http.ResponseWriter, r *http.Request) {
	acct, err := a.account(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	recs, err := a.Records.ListByAccount(r.Context(), acct.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	assets := make([]zip.Asset, 0, len(recs))
	for _, rec := range recs {
		if rec.OutputRef == "" || a.Files == nil {
			continue
		}
		data, err := a.Files.Read(r.Context(), rec.OutputRef)
		if errors.Is(err, storage.ErrNotFound) {
			a.logger().Warn().Str("record_id", rec.ID).Msg("export: output missing")
			continue
		}
		if err != nil {
			a.fail(w, r, err)
			return
		}
		assets = append(assets, zip.Asset{
			Filename: rec.CreatedAt.UTC().Format("20060102-150405") + "-" + path.Base(rec.OutputRef),
			Data:     data,
			Modified: rec.CreatedAt,
		})
	}
	if len(assets) == 0 && len(recs) > 0 {
		a.fail(w, r, domain.ErrNotFound)
		return
	}
	archive, err := zip.ArchiveAssets(assets)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=ravelon-%s.zip", a.now().UTC().Format("20060102")))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

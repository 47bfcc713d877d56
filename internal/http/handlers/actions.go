package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"ravelon/internal/adgate"
	"ravelon/internal/domain"
	"ravelon/internal/i18n"
	"ravelon/internal/middleware"
	"ravelon/internal/orchestrator"
	"ravelon/internal/providers/genai"
	"ravelon/internal/providers/image"
	"ravelon/internal/storage"
)

const defaultMaxUpload = 5 << 20

var (
	errInvalidImage = errors.New("handlers: not an image")
	errTooLarge     = errors.New("handlers: image too large")
)

type imagePayload struct {
	Image string `json:"image"`
}

type downloadRequest struct {
	OutputRef string `json:"output_ref"`
}

type outcomeDTO struct {
	Kind        domain.ActionKind `json:"kind"`
	RecordID    string            `json:"record_id,omitempty"`
	InputRef    string            `json:"input_ref,omitempty"`
	OutputRef   string            `json:"output_ref,omitempty"`
	ContentType string            `json:"content_type,omitempty"`
	Balance     int               `json:"balance"`
	Image       string            `json:"image,omitempty"`
}

type ticketDTO struct {
	Token       string            `json:"token"`
	Kind        domain.ActionKind `json:"kind"`
	Label       string            `json:"label"`
	ShownAt     time.Time         `json:"shown_at"`
	ReadyAt     time.Time         `json:"ready_at"`
	RemainingMS int64             `json:"remaining_ms"`
}

func toOutcomeDTO(o *orchestrator.Outcome) outcomeDTO {
	dto := outcomeDTO{
		Kind:        o.Kind,
		RecordID:    o.RecordID,
		InputRef:    o.InputRef,
		OutputRef:   o.OutputRef,
		ContentType: o.ContentType,
		Balance:     o.Balance,
	}
	if len(o.Data) > 0 {
		dto.Image = genai.DataURL(o.ContentType, o.Data)
	}
	return dto
}

func (a *App) toTicketDTO(t *adgate.Ticket) ticketDTO {
	return ticketDTO{
		Token:       t.Token,
		Kind:        t.Kind,
		Label:       t.Label,
		ShownAt:     t.ShownAt,
		ReadyAt:     t.ReadyAt,
		RemainingMS: t.Remaining(a.now()).Milliseconds(),
	}
}

// writeResult answers 200 with the outcome or 202 with the gate ticket.
func (a *App) writeResult(w http.ResponseWriter, res *orchestrator.Result) {
	if res.Gate != nil {
		a.json(w, http.StatusAccepted, map[string]any{"state": adgate.StateShowing, "gate": a.toTicketDTO(res.Gate)})
		return
	}
	a.json(w, http.StatusOK, toOutcomeDTO(res.Outcome))
}

// Enhance runs the billable photo enhancement.
func (a *App) Enhance(w http.ResponseWriter, r *http.Request) {
	p, err := a.principal(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	src, err := a.readImage(w, r)
	if err != nil {
		a.imageError(w, r, err)
		return
	}
	src.RequestID = middleware.RequestIDFromContext(r.Context())
	res, err := a.Orchestrator.Perform(r.Context(), p, orchestrator.Action{
		Kind:     domain.ActionEnhance,
		Label:    "Enhance photo",
		Billable: true,
		Run:      a.enhance(p, src),
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.writeResult(w, res)
}

func (a *App) enhance(p domain.Principal, src image.Source) func(ctx context.Context) (orchestrator.Outcome, error) {
	return func(ctx context.Context) (orchestrator.Outcome, error) {
		res, err := a.Enhancer.Enhance(ctx, src)
		if err != nil {
			return orchestrator.Outcome{}, err
		}
		out := orchestrator.Outcome{ContentType: res.MIME, Data: res.Data}
		if a.Files == nil {
			return out, nil
		}
		if out.InputRef, err = a.Files.Write(ctx, storage.NewKey(owner(p), storage.KindOriginal, src.MIME), src.Data); err != nil {
			return orchestrator.Outcome{}, err
		}
		if out.OutputRef, err = a.Files.Write(ctx, storage.NewKey(owner(p), storage.KindEnhanced, res.MIME), res.Data); err != nil {
			if derr := a.Files.Delete(context.WithoutCancel(ctx), out.InputRef); derr != nil {
				a.logger().Warn().Err(derr).Str("input_ref", out.InputRef).Msg("orphaned original photo")
			}
			return orchestrator.Outcome{}, err
		}
		a.logger().Debug().
			Str("request_id", src.RequestID).
			Str("output_ref", out.OutputRef).
			Bool("synthetic", res.Synthetic).
			Msg("photo enhanced")
		return out, nil
	}
}

// Upload stores a photo. It goes through the gate but costs nothing.
func (a *App) Upload(w http.ResponseWriter, r *http.Request) {
	p, err := a.principal(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	src, err := a.readImage(w, r)
	if err != nil {
		a.imageError(w, r, err)
		return
	}
	res, err := a.Orchestrator.Perform(r.Context(), p, orchestrator.Action{
		Kind:  domain.ActionUpload,
		Label: "Upload photo",
		Run: func(ctx context.Context) (orchestrator.Outcome, error) {
			out := orchestrator.Outcome{ContentType: src.MIME}
			if a.Files == nil {
				return out, nil
			}
			key, err := a.Files.Write(ctx, storage.NewKey(owner(p), storage.KindOriginal, src.MIME), src.Data)
			if err != nil {
				return orchestrator.Outcome{}, err
			}
			out.InputRef = key
			return out, nil
		},
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.writeResult(w, res)
}

// Download hands back a stored photo of the caller.
func (a *App) Download(w http.ResponseWriter, r *http.Request) {
	p, err := a.principal(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req downloadRequest
	if err := a.decode(r, &req); err != nil || strings.TrimSpace(req.OutputRef) == "" {
		a.error(w, r, http.StatusBadRequest, i18n.CodeInvalidRequest)
		return
	}
	ref := strings.TrimLeft(strings.TrimSpace(req.OutputRef), "/")
	if a.Files == nil || !storage.Owns(owner(p), ref) {
		a.fail(w, r, domain.ErrNotFound)
		return
	}
	data, err := a.Files.Read(r.Context(), ref)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	contentType := storage.ContentType(ref)
	if contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	res, err := a.Orchestrator.Perform(r.Context(), p, orchestrator.Action{
		Kind:  domain.ActionDownload,
		Label: "Download photo",
		Run: func(ctx context.Context) (orchestrator.Outcome, error) {
			return orchestrator.Outcome{OutputRef: ref, ContentType: contentType, Data: data}, nil
		},
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.writeResult(w, res)
}

func (a *App) maxUpload() int64 {
	if a.MaxUploadBytes > 0 {
		return a.MaxUploadBytes
	}
	return defaultMaxUpload
}

// readImage accepts a multipart "image" field or a JSON body carrying a data
// URL or raw base64.
func (a *App) readImage(w http.ResponseWriter, r *http.Request) (image.Source, error) {
	limit := a.maxUpload()
	// base64 inflates by 4/3; multipart adds headers.
	r.Body = http.MaxBytesReader(w, r.Body, limit*4/3+64<<10)

	var src image.Source
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "multipart/") {
		if err := r.ParseMultipartForm(limit); err != nil {
			return src, fmt.Errorf("%w: %w", errInvalidImage, err)
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()
		file, hdr, err := r.FormFile("image")
		if err != nil {
			return src, fmt.Errorf("%w: %w", errInvalidImage, err)
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, limit+1))
		if err != nil {
			return src, err
		}
		src.Data = data
		src.Filename = hdr.Filename
		src.MIME = hdr.Header.Get("Content-Type")
	} else {
		var body imagePayload
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return src, errTooLarge
			}
			return src, fmt.Errorf("%w: %w", errInvalidImage, err)
		}
		declared, data, err := genai.ParseDataURL(body.Image)
		if err != nil {
			return src, fmt.Errorf("%w: %w", errInvalidImage, err)
		}
		src.Data = data
		src.MIME = declared
	}

	if int64(len(src.Data)) > limit {
		return src, errTooLarge
	}
	if len(src.Data) == 0 {
		return src, errInvalidImage
	}
	detected := http.DetectContentType(src.Data)
	switch {
	case strings.HasPrefix(detected, "image/"):
		src.MIME = detected
	case detected == "application/octet-stream" && strings.HasPrefix(src.MIME, "image/"):
	default:
		return src, errInvalidImage
	}
	return src, nil
}

func (a *App) imageError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, errTooLarge), errors.As(err, &tooLarge):
		a.error(w, r, http.StatusRequestEntityTooLarge, i18n.CodePayloadTooLarge)
	case errors.Is(err, errInvalidImage):
		a.error(w, r, http.StatusBadRequest, i18n.CodeInvalidRequest)
	default:
		a.fail(w, r, err)
	}
}

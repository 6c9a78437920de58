package handlers

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"stash/internal/logging"
	"stash/internal/service"
	"stash/internal/store"
	"stash/internal/upload"
)

func (h *Handler) ListAssets(c echo.Context) error {
	limit := clampInt(queryInt(c, "limit", 25), 1, 200)
	offset, err := decodeCursor(c.QueryParam("cursor"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid cursor")
	}

	ctx := c.Request().Context()
	items, err := h.svc.ListAssets(ctx, limit+1, offset)
	if err != nil {
		return mapServiceError(err)
	}
	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	respItems := make([]map[string]any, 0, len(items))
	for _, a := range items {
		respItems = append(respItems, h.assetPayload(ctx, c.Request(), a))
	}

	var nextCursor any = nil
	if hasMore {
		nextCursor = encodeCursor(offset + limit)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"items":      respItems,
		"nextCursor": nextCursor,
	})
}

func (h *Handler) GetAsset(c echo.Context) error {
	id, err := parseAssetID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.GetAsset(c.Request().Context(), id)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, h.assetPayload(c.Request().Context(), c.Request(), a))
}

// CreateAsset accepts multipart fields label, file and image.
func (h *Handler) CreateAsset(c echo.Context) error {
	params, err := formParams(c)
	if err != nil {
		return err
	}
	file, err := formFile(c, "file")
	if err != nil {
		return err
	}
	defer file.close()
	image, err := formFile(c, "image")
	if err != nil {
		return err
	}
	defer image.close()

	a, err := h.svc.CreateAsset(c.Request().Context(), service.CreateInput{
		Label: params.Get("label"),
		File:  file.source(),
		Image: image.source(),
	})
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, h.assetPayload(c.Request().Context(), c.Request(), a))
}

// UpdateAsset changes only the fields present in the form. A file field
// sent as a plain value, or as an empty part, clears that column.
func (h *Handler) UpdateAsset(c echo.Context) error {
	id, err := parseAssetID(c)
	if err != nil {
		return err
	}
	params, err := formParams(c)
	if err != nil {
		return err
	}
	file, err := formFile(c, "file")
	if err != nil {
		return err
	}
	defer file.close()
	image, err := formFile(c, "image")
	if err != nil {
		return err
	}
	defer image.close()

	in := service.UpdateInput{
		File:  file.change(params),
		Image: image.change(params),
	}
	if v, ok := params["label"]; ok && len(v) > 0 {
		label := v[0]
		in.Label = &label
	}

	a, err := h.svc.UpdateAsset(c.Request().Context(), id, in)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, h.assetPayload(c.Request().Context(), c.Request(), a))
}

func (h *Handler) DeleteAsset(c echo.Context) error {
	id, err := parseAssetID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteAsset(c.Request().Context(), id); err != nil {
		return mapServiceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ServeFile streams a stored object by name.
func (h *Handler) ServeFile(c echo.Context) error {
	name := c.Param("name")
	rc, size, err := h.svc.OpenStored(c.Request().Context(), name)
	if err != nil {
		return mapServiceError(err)
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	c.Response().Header().Set(echo.HeaderContentLength, strconv.FormatInt(size, 10))
	c.Response().Header().Set("X-Content-Type-Options", "nosniff")
	return c.Stream(http.StatusOK, contentType, rc)
}

func (h *Handler) assetPayload(ctx context.Context, r *http.Request, a store.Asset) map[string]any {
	payload := map[string]any{
		"id":        a.ID.String(),
		"label":     a.Label,
		"file":      nil,
		"image":     nil,
		"createdAt": toMillis(a.CreatedAt),
		"updatedAt": toMillis(a.UpdatedAt),
	}

	if f, ok := a.File.Get(); ok {
		payload["file"] = filePayload(ctx, r, f.Name(), f.Path(), f.Size)
	}
	if img, ok := a.Image.Get(); ok {
		p := filePayload(ctx, r, img.Name(), img.Path(), img.Size)
		p["width"], p["height"] = nil, nil
		if width, height, err := img.Dimensions(ctx); err == nil {
			p["width"], p["height"] = width, height
		} else {
			logging.WithContext(ctx).Warn("read image dimensions",
				zap.String("name", img.Name()), zap.Error(err))
		}
		payload["image"] = p
	}
	return payload
}

func filePayload(ctx context.Context, r *http.Request, name, location string, size func(context.Context) (int64, error)) map[string]any {
	p := map[string]any{
		"name": name,
		"path": location,
		"url":  location,
		"size": nil,
	}
	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		p["url"] = baseURL(r) + "/files/" + name
	}
	if n, err := size(ctx); err == nil {
		p["size"] = n
	} else {
		logging.WithContext(ctx).Warn("read stored size", zap.String("name", name), zap.Error(err))
	}
	return p
}

func formParams(c echo.Context) (url.Values, error) {
	params, err := c.FormParams()
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid form body")
	}
	return params, nil
}

// formPart is one optional multipart file field.
type formPart struct {
	name string
	part *upload.Multipart
}

func formFile(c echo.Context, name string) (formPart, error) {
	fh, err := c.FormFile(name)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return formPart{name: name}, nil
		}
		return formPart{}, echo.NewHTTPError(http.StatusBadRequest, "invalid multipart body")
	}
	m, err := upload.FromFileHeader(fh)
	if err != nil {
		return formPart{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return formPart{name: name, part: m}, nil
}

func (p formPart) source() upload.Source {
	if p.part == nil {
		return nil
	}
	return p.part
}

func (p formPart) change(params url.Values) service.Change {
	if p.part != nil {
		return service.Replace(p.part)
	}
	if _, ok := params[p.name]; ok {
		return service.Clear()
	}
	return service.Keep()
}

func (p formPart) close() {
	if p.part != nil {
		_ = p.part.Close()
	}
}

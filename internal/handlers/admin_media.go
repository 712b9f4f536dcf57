package handlers

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"pipshop/internal/storage"
)

// maxUploadSize is the largest accepted product image (10 MB).
const maxUploadSize = 10 << 20

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// readImage parses a multipart "file" field and sniffs its content type.
// It writes the error response itself and returns ok=false on failure.
func readImage(w http.ResponseWriter, r *http.Request) (data []byte, filename, contentType string, ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+1024)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "File too large. Maximum size is 10 MB.")
		return nil, "", "", false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided.")
		return nil, "", "", false
	}
	defer file.Close()

	data, err = io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read file.")
		return nil, "", "", false
	}
	contentType = http.DetectContentType(data)
	if !allowedImageTypes[contentType] {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("File type %q is not allowed.", contentType))
		return nil, "", "", false
	}
	return data, header.Filename, contentType, true
}

// uploadImage stores an image for owner and saves its key with setKey.
// The previous image, if any, is removed from the bucket afterwards.
func (a *Admin) uploadImage(w http.ResponseWriter, r *http.Request, kind string, owner uuid.UUID, previous *string, setKey func(uuid.UUID, string) error) {
	if a.storage == nil {
		writeError(w, http.StatusServiceUnavailable, "Object storage is not configured.")
		return
	}
	data, filename, contentType, ok := readImage(w, r)
	if !ok {
		return
	}

	key := storage.ImageKey(kind, owner, filename)
	ctx := r.Context()
	if err := a.storage.Upload(ctx, key, contentType, bytes.NewReader(data), int64(len(data))); err != nil {
		slog.Error("s3 upload failed", "error", err, "key", key)
		writeError(w, http.StatusInternalServerError, "Failed to upload file.")
		return
	}
	if err := setKey(owner, key); err != nil {
		_ = a.storage.Delete(ctx, key)
		writeStoreError(w, kind, err)
		return
	}
	if previous != nil && *previous != "" {
		if err := a.storage.Delete(ctx, *previous); err != nil {
			slog.Warn("old image delete failed", "error", err, "key", *previous)
		}
	}
	a.catalog.InvalidateAll(ctx)

	writeJSON(w, http.StatusCreated, map[string]string{
		"image_key": key,
		"url":       a.storage.FileURL(key),
	})
}

// ProductImage replaces a product's image.
func (a *Admin) ProductImage(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	p, err := a.products.FindByID(id)
	if err != nil {
		serverError(w, "find product failed", err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	a.uploadImage(w, r, "products", p.ID, p.ImageKey, a.products.SetImage)
}

// VariantImage replaces a variant's image.
func (a *Admin) VariantImage(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "variant not found")
		return
	}
	v, err := a.variants.FindByID(id)
	if err != nil {
		serverError(w, "find variant failed", err)
		return
	}
	if v == nil {
		writeError(w, http.StatusNotFound, "variant not found")
		return
	}
	a.uploadImage(w, r, "variants", v.ID, v.ImageKey, a.variants.SetImage)
}

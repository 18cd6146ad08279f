package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/maxpert/mxbridge/bridge"
	"github.com/maxpert/mxbridge/encoding"
	"github.com/maxpert/mxbridge/engine"
)

// maxBodyBytes bounds request bodies; matrices travel in them.
const maxBodyBytes = 64 << 20

type compressorKey struct{}

// withCompressor makes the API compressor visible to response writers.
func withCompressor(z *encoding.Zstd) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if z != nil {
				r = r.WithContext(context.WithValue(r.Context(), compressorKey{}, z))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func compressorFrom(r *http.Request) *encoding.Zstd {
	z, _ := r.Context().Value(compressorKey{}).(*encoding.Zstd)
	return z
}

// writeResponse writes {"data": data} in the codec the client accepts,
// zstd-compressed when the client allows it.
func writeResponse(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	write(w, r, status, map[string]interface{}{"data": data})
}

// writeErrorResponse writes an error response
func writeErrorResponse(w http.ResponseWriter, r *http.Request, status int, message string) {
	write(w, r, status, map[string]interface{}{"error": message})
}

func write(w http.ResponseWriter, r *http.Request, status int, body interface{}) {
	codec := encoding.Negotiate(r.Header.Get("Accept"))
	payload, err := codec.Marshal(body)
	if err != nil {
		log.Error().Err(err).Str("content_type", codec.ContentType()).Msg("Failed to encode response")
		codec = encoding.JSON
		payload, _ = codec.Marshal(map[string]interface{}{"error": "failed to encode response: " + err.Error()})
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", codec.ContentType())
	w.Header().Add("Vary", "Accept, Accept-Encoding")

	z := compressorFrom(r)
	if z == nil || !encoding.AcceptsZstd(r.Header.Get("Accept-Encoding")) {
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		w.WriteHeader(status)
		w.Write(payload)
		return
	}

	var buf bytes.Buffer
	zw, err := z.Compress(&buf)
	if err == nil {
		_, err = zw.Write(payload)
		if cerr := zw.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		log.Warn().Err(err).Msg("Response compression failed, sending identity")
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		w.WriteHeader(status)
		w.Write(payload)
		return
	}

	w.Header().Set("Content-Encoding", encoding.ZstdName)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// decodeRequest reads a JSON or msgpack body, optionally zstd-encoded. An
// empty body leaves v untouched.
func decodeRequest(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	var body io.Reader = http.MaxBytesReader(nil, r.Body, maxBodyBytes)

	if ce := r.Header.Get("Content-Encoding"); ce != "" {
		if !strings.EqualFold(ce, encoding.ZstdName) {
			return fmt.Errorf("unsupported content encoding %q", ce)
		}
		z := compressorFrom(r)
		if z == nil {
			z = encoding.NewZstd(1)
		}
		dr, err := z.Decompress(body)
		if err != nil {
			return fmt.Errorf("invalid zstd body: %w", err)
		}
		body = dr
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := encoding.ForContentType(r.Header.Get("Content-Type")).Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// errorStatus maps bridge and engine errors to HTTP status codes.
func errorStatus(err error) int {
	var status *engine.StatusError
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrTooManySessions):
		return http.StatusTooManyRequests
	case errors.Is(err, bridge.ErrEngineUnavailable), errors.Is(err, engine.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, bridge.ErrNotOpen), errors.Is(err, bridge.ErrAlreadyOpen):
		return http.StatusConflict
	case errors.Is(err, bridge.ErrInvalidCommand),
		errors.Is(err, bridge.ErrInvalidArgument),
		errors.Is(err, bridge.ErrEmptyMatrix),
		errors.Is(err, bridge.ErrUnsupportedValue):
		return http.StatusBadRequest
	case errors.As(err, &status):
		return http.StatusUnprocessableEntity
	case errors.Is(err, bridge.ErrUnsupportedDimensionality), errors.Is(err, bridge.ErrShortBuffer):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("API request failed")
	}
	writeErrorResponse(w, r, status, err.Error())
}

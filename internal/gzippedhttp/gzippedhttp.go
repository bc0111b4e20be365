// Package gzippedhttp provides middlewares that transparently
// decompress gzip request bodies and compress response bodies when the
// client advertises gzip support.
package gzippedhttp

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/mbelenkov/shrink/internal/logger"
)

var gzipWriterPool = sync.Pool{
	New: func() interface{} {
		w, _ := gzip.NewWriterLevel(nil, gzip.BestSpeed)
		return w
	},
}

type compressedWriter struct {
	w  http.ResponseWriter
	zw *gzip.Writer
}

func newCompressedWriter(w http.ResponseWriter) *compressedWriter {
	zw := gzipWriterPool.Get().(*gzip.Writer)
	zw.Reset(w)
	return &compressedWriter{w: w, zw: zw}
}

func (c *compressedWriter) Header() http.Header {
	return c.w.Header()
}

func (c *compressedWriter) WriteHeader(statusCode int) {
	c.w.WriteHeader(statusCode)
}

func (c *compressedWriter) Write(p []byte) (int, error) {
	return c.zw.Write(p)
}

func (c *compressedWriter) close() error {
	if err := c.zw.Close(); err != nil {
		return err
	}
	gzipWriterPool.Put(c.zw)
	return nil
}

type decompressedReader struct {
	body io.ReadCloser
	zr   *gzip.Reader
}

func newDecompressedReader(body io.ReadCloser) (*decompressedReader, error) {
	zr, err := gzip.NewReader(body)
	if err != nil {
		return nil, err
	}
	return &decompressedReader{body: body, zr: zr}, nil
}

func (d *decompressedReader) Read(p []byte) (int, error) {
	return d.zr.Read(p)
}

func (d *decompressedReader) Close() error {
	if err := d.body.Close(); err != nil {
		return err
	}
	return d.zr.Close()
}

// GzipResponse compresses the response body when the request's
// Accept-Encoding includes gzip.
func GzipResponse(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		if !strings.Contains(request.Header.Get("Accept-Encoding"), "gzip") {
			h.ServeHTTP(response, request)
			return
		}

		// Every write goes through the gzip writer, error bodies
		// included, so the header must be set before the status line
		// is committed.
		response.Header().Set("Content-Encoding", "gzip")

		compressed := newCompressedWriter(response)
		defer func() {
			if err := compressed.close(); err != nil {
				logger.Log.Errorln("closing gzip writer:", err)
			}
		}()

		h.ServeHTTP(compressed, request)
	}

	return http.HandlerFunc(middleware)
}

// UngzipRequest replaces the request body with a decompressing reader
// when the request's Content-Encoding is gzip.
func UngzipRequest(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		if strings.Contains(request.Header.Get("Content-Encoding"), "gzip") {
			decompressed, err := newDecompressedReader(request.Body)
			if err != nil {
				response.WriteHeader(http.StatusInternalServerError)
				return
			}
			request.Body = decompressed
			defer decompressed.Close()
		}

		h.ServeHTTP(response, request)
	}

	return http.HandlerFunc(middleware)
}

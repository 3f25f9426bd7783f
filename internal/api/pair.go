package api

import (
	"net/http"

	qrcode "github.com/skip2/go-qrcode"
)

// pairQRSize is the edge length of the pairing image in pixels.
const pairQRSize = 256

// handlePair serves a QR code of the server's public URL so a device
// can be pointed at it by scanning.
func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	if s.publicURL == "" {
		s.errorResponse(w, http.StatusNotFound, "listen.public_url is not configured")
		return
	}
	png, err := qrcode.Encode(s.publicURL, qrcode.Medium, pairQRSize)
	if err != nil {
		s.logger.Error("qr encode failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "could not render pairing code")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(png); err != nil {
		s.logger.Debug("failed to write pairing code", "error", err)
	}
}

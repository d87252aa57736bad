package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"
)

const qrSize = 256

// joinURL is the address players should open to join. Without a configured
// public URL it is derived from the request.
func joinURL(publicURL string, r *http.Request) string {
	if publicURL != "" {
		return publicURL
	}
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/", scheme, r.Host)
}

// qrHandler serves a PNG QR code pointing at the join URL
func qrHandler(publicURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		png, err := qrcode.Encode(joinURL(publicURL, c.Request), qrcode.Medium, qrSize)
		if err != nil {
			log.Printf("qr: encode: %v", err)
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Header("Cache-Control", "no-cache")
		c.Data(http.StatusOK, "image/png", png)
	}
}

package server

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/labstack/echo/v4"
)

// NetworkDetector detects network configuration and reverse proxy setup
type NetworkDetector struct {
	detectedIP   string
	detectedFQDN string
}

// NewNetworkDetector creates a new network detector
func NewNetworkDetector() *NetworkDetector {
	nd := &NetworkDetector{}
	nd.detectedIP = nd.GetDefaultRouteIP()
	nd.detectedFQDN = nd.GetFQDN()
	return nd
}

// GetDefaultRouteIP gets the IP address from the default route
func (nd *NetworkDetector) GetDefaultRouteIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}

// GetFQDN attempts to get the fully qualified domain name
func (nd *NetworkDetector) GetFQDN() string {
	hostname, err := os.Hostname()
	if err != nil {
		return ""
	}

	// Try to resolve FQDN
	if addrs, err := net.LookupAddr(nd.detectedIP); err == nil && len(addrs) > 0 {
		return strings.TrimSuffix(addrs[0], ".")
	}

	return hostname
}

// DetectReverseProxy detects if there's a reverse proxy
func (nd *NetworkDetector) DetectReverseProxy(c echo.Context) string {
	// Check common reverse proxy headers
	headers := []string{
		"X-Forwarded-Host",
		"X-Original-Host",
		"Host",
	}

	for _, header := range headers {
		if host := c.Request().Header.Get(header); host != "" {
			// Check if it's different from our detected address
			if host != nd.detectedIP && host != nd.detectedFQDN {
				return host
			}
		}
	}

	return ""
}

// GetBestURL returns the best URL for the service as seen by this client
func (nd *NetworkDetector) GetBestURL(c echo.Context, port int) string {
	// Check for reverse proxy first
	if proxy := nd.DetectReverseProxy(c); proxy != "" {
		scheme := "http"
		if c.Request().TLS != nil || c.Request().Header.Get("X-Forwarded-Proto") == "https" {
			scheme = "https"
		}
		return fmt.Sprintf("%s://%s", scheme, proxy)
	}

	return nd.AnnounceURL(port)
}

// AnnounceURL returns the URL to print at startup, preferring the FQDN
// over the raw interface address.
func (nd *NetworkDetector) AnnounceURL(port int) string {
	if nd.detectedFQDN != "" && nd.detectedFQDN != "localhost" {
		return fmt.Sprintf("http://%s:%d", nd.detectedFQDN, port)
	}
	return fmt.Sprintf("http://%s:%d", nd.detectedIP, port)
}

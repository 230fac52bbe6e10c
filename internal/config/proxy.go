package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// NormalizeProxy turns a raw proxy line into a full URL. Lines may be
// bare host:port, may carry user:pass@ credentials, and may or may not
// have a scheme; the scheme defaults to http.
func NormalizeProxy(line string) (string, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", fmt.Errorf("empty proxy line")
	}

	scheme := "http"
	if i := strings.Index(line, "://"); i >= 0 {
		scheme = strings.ToLower(line[:i])
		line = line[i+3:]
	}
	switch scheme {
	case "http", "https", "socks5", "socks5h":
	default:
		return "", fmt.Errorf("unsupported proxy scheme: %s", scheme)
	}

	if at := strings.LastIndexByte(line, '@'); at >= 0 {
		creds := line[:at]
		if !strings.Contains(creds, ":") {
			return "", fmt.Errorf("invalid proxy credentials format")
		}
		return fmt.Sprintf("%s://%s@%s", scheme, creds, line[at+1:]), nil
	}
	return fmt.Sprintf("%s://%s", scheme, line), nil
}

// CheckProxy fetches the public IP through the proxy to confirm it is
// reachable before a job burns browser time on it. Returns the masked
// egress IP.
func CheckProxy(proxyURL string) (string, error) {
	client := resty.New().
		SetProxy(proxyURL).
		SetTimeout(15 * time.Second)

	res, err := client.R().Get("https://api.ipify.org")
	if err != nil {
		return "", fmt.Errorf("proxy check: %w", err)
	}
	return maskIP(strings.TrimSpace(res.String())), nil
}

func maskIP(ip string) string {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return "***"
	}
	return parts[0] + ".***.***." + parts[3]
}

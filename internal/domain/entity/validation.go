package entity

import (
	"net"
	"net/mail"
	"net/url"
	"strings"
)

const (
	// maxURLLength defines the maximum allowed length for URLs to prevent DoS attacks.
	maxURLLength = 2048

	maxNameLength = 100
)

// ValidateURL validates that rawURL is an absolute http(s) URL with a host.
// field is reported back in the ValidationError.
func ValidateURL(field, rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return invalid(field, "URL is required")
	}

	// DoS protection: enforce maximum URL length
	if len(rawURL) > maxURLLength {
		return invalid(field, "url must not exceed %d characters", maxURLLength)
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return invalid(field, "invalid URL: %v", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return invalid(field, "URL must use http or https scheme")
	}

	if parsedURL.Host == "" || parsedURL.Hostname() == "" {
		return invalid(field, "URL must have a valid host")
	}

	return nil
}

// CheckPublicHost resolves the host of rawURL and rejects it when any address
// falls into a loopback, link-local or private range (SSRF guard).
// Hosts that do not resolve are accepted; delivery will fail later instead.
func CheckPublicHost(field, rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return invalid(field, "invalid URL: %v", err)
	}

	host := parsedURL.Hostname()
	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return invalid(field, "url cannot point to private network")
		}
		return nil
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		return nil
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return invalid(field, "url cannot point to private network")
		}
	}
	return nil
}

// isPrivateIP checks if an IP address is in a private or restricted range:
// loopback, link-local (including cloud metadata endpoints) and RFC 1918 / RFC 4193 networks.
func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
		return true
	}
	return ip.IsPrivate()
}

// ValidateAddress checks that addr is a single RFC 5322 mailbox. A display
// name is allowed.
func ValidateAddress(field, addr string) error {
	_, err := parseMailbox(field, addr)
	return err
}

// ValidateRecipient checks that addr is a single bare address without a
// display name.
func ValidateRecipient(field, addr string) error {
	parsed, err := parseMailbox(field, addr)
	if err != nil {
		return err
	}
	if parsed.Name != "" || parsed.Address != strings.TrimSpace(addr) {
		return invalid(field, "recipient must be a bare address, got %q", addr)
	}
	return nil
}

func parseMailbox(field, addr string) (*mail.Address, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, invalid(field, "address is required")
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		return nil, invalid(field, "invalid email address %q", addr)
	}
	return parsed, nil
}

// ValidatePort checks that port is within 1-65535.
func ValidatePort(field string, port int) error {
	if port < 1 || port > 65535 {
		return invalid(field, "port must be between 1 and 65535, got %d", port)
	}
	return nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return invalid("name", "name is required")
	}
	if len(name) > maxNameLength {
		return invalid("name", "name must not exceed %d characters", maxNameLength)
	}
	return nil
}

func validateHeaderName(field, name string) error {
	if name == "" {
		return invalid(field, "header name cannot be empty")
	}
	if strings.ContainsAny(name, " \t\r\n:") {
		return invalid(field, "header name %q must be a valid token", name)
	}
	return nil
}

func validateHeaderValue(field, name, value string) error {
	if strings.ContainsAny(value, "\r\n") {
		return invalid(field, "header %q must not contain line breaks", name)
	}
	return nil
}

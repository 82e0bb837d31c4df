package proxy

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"
	"syscall"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sagarc03/cryptosheet"
)

// ErrBlockedAddress is returned when a target resolves to an address the
// policy refuses to dial.
var ErrBlockedAddress = errors.New("address not allowed")

// SupportedMethods lists the lower-case methods the generic proxy accepts.
var SupportedMethods = []string{"get", "post", "put", "delete"}

// PolicyConfig configures optional outbound restrictions. The zero value
// only enforces the scheme and method rules.
type PolicyConfig struct {
	// AllowedHosts restricts target hostnames to the given glob patterns
	// (for example "*.example.com"). Empty allows every host.
	AllowedHosts []string
	// BlockPrivate refuses to dial loopback, private, link-local,
	// multicast and unspecified addresses.
	BlockPrivate bool
}

// Policy decides whether an outbound request may be sent.
type Policy struct {
	allowedHosts []string
	blockPrivate bool
}

func NewPolicy(cfg PolicyConfig) (*Policy, error) {
	hosts := make([]string, 0, len(cfg.AllowedHosts))
	for _, h := range cfg.AllowedHosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		if !doublestar.ValidatePattern(h) {
			return nil, fmt.Errorf("new policy: invalid host pattern: %s", h)
		}
		hosts = append(hosts, h)
	}

	return &Policy{allowedHosts: hosts, blockPrivate: cfg.BlockPrivate}, nil
}

// CheckURL validates raw as a proxy target. The scheme must be http or
// https; the prefix test runs on the raw string so that "HTTP://" or
// "//host" are rejected the same way.
func (p *Policy) CheckURL(raw string) (*url.URL, error) {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return nil, cryptosheet.BadRequest("malformed url").With("url", raw)
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, cryptosheet.BadRequest("malformed url").With("url", raw)
	}

	if err := p.checkHost(u.Hostname()); err != nil {
		return nil, cryptosheet.BadRequest("host not allowed").With("url", raw)
	}

	return u, nil
}

// CheckMethod lower-cases method and checks it against SupportedMethods.
func (p *Policy) CheckMethod(method string) (string, error) {
	m := strings.ToLower(method)
	if !slices.Contains(SupportedMethods, m) {
		return "", cryptosheet.BadRequest("method not supported").With("method", method)
	}
	return m, nil
}

func (p *Policy) checkHost(host string) error {
	if len(p.allowedHosts) == 0 {
		return nil
	}

	host = strings.ToLower(host)
	for _, pattern := range p.allowedHosts {
		if matched, _ := doublestar.Match(pattern, host); matched {
			return nil
		}
	}

	return fmt.Errorf("check host %s: %w", host, ErrBlockedAddress)
}

// control is installed as net.Dialer.Control. It sees the resolved address,
// so a hostname that resolves to a private IP is refused as well.
func (p *Policy) control(_, address string, _ syscall.RawConn) error {
	if !p.blockPrivate {
		return nil
	}

	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("dial %s: %w", address, ErrBlockedAddress)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return fmt.Errorf("dial %s: %w", address, ErrBlockedAddress)
	}

	if reason := blockedReason(ip); reason != "" {
		return fmt.Errorf("dial %s: %s: %w", address, reason, ErrBlockedAddress)
	}

	return nil
}

func blockedReason(ip net.IP) string {
	switch {
	case ip.IsLoopback():
		return "loopback"
	case ip.IsPrivate():
		return "private"
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		return "link-local"
	case ip.IsMulticast():
		return "multicast"
	case ip.IsUnspecified():
		return "unspecified"
	default:
		return ""
	}
}

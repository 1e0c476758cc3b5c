package netutil

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Listen binds the preferred address, or with autoFallback the first free
// candidate.
func Listen(preferred string, candidates []string, autoFallback bool) (net.Listener, error) {
	preferred = strings.TrimSpace(preferred)
	if preferred != "" {
		ln, err := net.Listen("tcp", preferred)
		if err == nil {
			return ln, nil
		}
		if !autoFallback {
			return nil, fmt.Errorf("preferred bind address in use: %s: %w", preferred, err)
		}
	}

	for _, addr := range candidates {
		if addr == preferred {
			continue
		}
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			return ln, nil
		}
	}

	return nil, errors.New("no available bind addresses")
}

// IsListening reports whether something accepts TCP connections on addr.
func IsListening(addr string, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

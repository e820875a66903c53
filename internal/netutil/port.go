// Package netutil picks the address the HTTP API listens on.
package netutil

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
)

// ErrNoBindAddr is returned when neither the preferred address nor any
// candidate can be bound.
var ErrNoBindAddr = errors.New("no available bind addresses")

// Listen binds preferred, falling back to the first bindable candidate when
// autoFallback is set. Holding the listener avoids racing another process
// between the check and the bind.
func Listen(preferred string, candidates []string, autoFallback bool) (net.Listener, error) {
	var errs []error
	if preferred != "" {
		ln, err := net.Listen("tcp", preferred)
		if err == nil {
			return ln, nil
		}
		if !autoFallback {
			return nil, fmt.Errorf("preferred bind address in use: %s: %w", preferred, err)
		}
		slog.Warn("preferred bind address unavailable", "addr", preferred, "error", err)
		errs = append(errs, err)
	}

	for _, addr := range candidates {
		if addr == preferred {
			continue
		}
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			slog.Info("using fallback bind address", "addr", addr)
			return ln, nil
		}
		errs = append(errs, err)
	}

	return nil, errors.Join(append([]error{ErrNoBindAddr}, errs...)...)
}

// SelectBindAddr returns the address Listen would bind, without holding it.
func SelectBindAddr(preferred string, candidates []string, autoFallback bool) (string, error) {
	ln, err := Listen(preferred, candidates, autoFallback)
	if err != nil {
		return "", err
	}
	addr := ln.Addr().String()
	if err := ln.Close(); err != nil {
		return "", err
	}
	return addr, nil
}

package process

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

// FreePort asks the kernel for an unused TCP port on host.
func FreePort(host string) (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, fmt.Errorf("failed to allocate a port on %s: %w", host, err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// WaitForPort returns a ReadyFunc that succeeds once host:port accepts TCP
// connections.
func WaitForPort(host string, port int, interval time.Duration) ReadyFunc {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return func(ctx context.Context, _ *Running) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var d net.Dialer
		for {
			dialCtx, cancel := context.WithTimeout(ctx, interval)
			conn, err := d.DialContext(dialCtx, "tcp", addr)
			cancel()
			if err == nil {
				_ = conn.Close()
				return nil
			}

			select {
			case <-ctx.Done():
				return fmt.Errorf("waiting for %s: %w", addr, ctx.Err())
			case <-ticker.C:
			}
		}
	}
}

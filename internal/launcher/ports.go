// Package launcher is the runtime HTTP layer of the bundled entry point:
// it picks a local port for the embedded UI server, gates on its readiness,
// and serves health, readiness and metrics endpoints next to it.
package launcher

import (
	"fmt"
	"net"
	"strconv"
)

// DefaultStartPort is where the UI port scan begins.
const DefaultStartPort = 7860

const defaultPortAttempts = 100

// FindFreePort returns the first bindable localhost port at or above start.
func FindFreePort(start, maxAttempts int) (int, error) {
	if maxAttempts <= 0 {
		maxAttempts = defaultPortAttempts
	}
	for port := start; port < start+maxAttempts; port++ {
		l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
		if err != nil {
			continue
		}
		_ = l.Close()
		return port, nil
	}
	return 0, fmt.Errorf("no free port found in range %d-%d", start, start+maxAttempts)
}

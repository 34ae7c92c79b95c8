package preflight

import (
	"fmt"
	"strings"

	"captionsaver/internal/ipc"
)

// CheckDaemon reports whether a daemon answers on the control socket. The
// result is optional: a stopped daemon is not a misconfiguration.
func CheckDaemon(socketPath string) Result {
	const name = "Daemon"

	if strings.TrimSpace(socketPath) == "" {
		return Result{Name: name, Optional: true, Detail: "socket not configured"}
	}
	client, err := ipc.Dial(socketPath)
	if err != nil {
		return Result{Name: name, Optional: true, Detail: "not running"}
	}
	defer client.Close()

	status, err := client.Status()
	if err != nil {
		return Result{Name: name, Optional: true, Detail: fmt.Sprintf("socket present but status failed (%v)", err)}
	}
	return Result{Name: name, Passed: true, Optional: true, Detail: fmt.Sprintf("running (pid %d, %d lines)", status.PID, status.Session.Lines)}
}

//go:build !windows

package session

import (
	"io"
	"os/exec"

	"github.com/creack/pty"
)

func startPTY(cmd *exec.Cmd, cols, rows uint16) (io.ReadWriteCloser, error) {
	return pty.StartWithSize(cmd, &pty.Winsize{Cols: cols, Rows: rows})
}

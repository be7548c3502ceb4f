//go:build windows

package session

import (
	"fmt"
	"io"
	"os/exec"

	"github.com/aretw0/coaxterm/pkg/domain"
)

func startPTY(cmd *exec.Cmd, cols, rows uint16) (io.ReadWriteCloser, error) {
	return nil, fmt.Errorf("%w: pseudo-terminals are not available on windows", domain.ErrUnsupportedEmulator)
}

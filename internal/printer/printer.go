package printer

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"time"
)

// CommandPrinter submits stored images to a print spooler command (lp by
// default). The core treats the operation as opaque: it succeeds or it
// fails, and any failure reason is reported uniformly.
type CommandPrinter struct {
	command string
	args    []string
	timeout time.Duration
}

// NewCommandPrinter creates a printer that runs command with args followed
// by the image path. Empty command defaults to lp; non-positive timeout
// defaults to two minutes.
func NewCommandPrinter(command string, args []string, timeout time.Duration) *CommandPrinter {
	if command == "" {
		command = "lp"
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &CommandPrinter{
		command: command,
		args:    args,
		timeout: timeout,
	}
}

// Print submits the image and waits for the spooler command to resolve.
func (p *CommandPrinter) Print(ctx context.Context, imagePath string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := append(append([]string{}, p.args...), imagePath)
	cmd := exec.CommandContext(ctx, p.command, args...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("print command %s failed: %w (output: %s)", p.command, err, string(output))
	}

	log.Printf("Print job submitted: command=%s image=%s", p.command, imagePath)
	return nil
}

package source

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/dgnsrekt/mfa_relay/internal/codeextractor"
)

// PumpMessages reads one message per line from r, extracts a code from each
// and broadcasts it. It returns when r is exhausted or ctx is cancelled.
func (b *Broadcaster) PumpMessages(ctx context.Context, r io.Reader) error {
	lines := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errCh <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errCh:
					return err
				default:
					return nil
				}
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			code, err := codeextractor.ExtractCode(line)
			if errors.Is(err, codeextractor.ErrNoCodeFound) {
				slog.Info("no code in message", "length", len(line))
				continue
			}
			b.BroadcastMFACode(code)
		}
	}
}

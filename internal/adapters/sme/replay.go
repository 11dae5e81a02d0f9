package sme

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/lcalzada-xor/wlcoord/internal/core/ports"
)

// maxLine bounds one JSON-lines record.
const maxLine = 1 << 20

// Replay posts every envelope of a JSON-lines stream, in order. Blank lines
// and lines starting with '#' are skipped. It stops at the first bad record
// and returns how many events were posted.
func Replay(ctx context.Context, r io.Reader, sink ports.EventSink, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	posted, lineNo := 0, 0
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		if err := ctx.Err(); err != nil {
			return posted, err
		}

		var env Envelope
		if err := json.Unmarshal(line, &env); err != nil {
			return posted, fmt.Errorf("line %d: %w: %v", lineNo, ErrBadPayload, err)
		}
		id, err := Deliver(ctx, sink, "", env)
		if err != nil {
			return posted, fmt.Errorf("line %d: %w", lineNo, err)
		}
		logger.Debug("replayed event", "line", lineNo, "iface", env.Iface, "kind", env.Kind, "event_id", id)
		posted++
	}
	if err := sc.Err(); err != nil {
		return posted, err
	}
	logger.Info("replay finished", "events", posted)
	return posted, nil
}

package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/nik312123/Orbits/internal/metrics"
)

// writeTimeout bounds each event write; a stalled reader is dropped.
const writeTimeout = 30 * time.Second

// eventWriter frames orbit messages as SSE events on one response. Each data
// event carries the orbit generation as its id, so a reconnecting EventSource
// reports the orbit it last saw in Last-Event-ID.
type eventWriter struct {
	w      http.ResponseWriter
	rc     *http.ResponseController
	logger *slog.Logger

	events int64
	bytes  int64
}

func newEventWriter(w http.ResponseWriter, logger *slog.Logger) *eventWriter {
	return &eventWriter{w: w, rc: http.NewResponseController(w), logger: logger}
}

// send writes v as a data event of the given message type.
func (ew *eventWriter) send(typ string, generation uint64, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", typ, err)
	}
	n, err := ew.write("id: " + strconv.FormatUint(generation, 10) + "\ndata: " + string(data) + "\n\n")
	if err != nil {
		return fmt.Errorf("%s message: %w", typ, err)
	}
	ew.events++
	metrics.IncStreamMessages(typ)
	metrics.AddStreamBytes(n)
	return nil
}

// keepalive writes an SSE comment so idle proxies keep the connection open.
func (ew *eventWriter) keepalive() error {
	n, err := ew.write(":\n\n")
	if err != nil {
		return fmt.Errorf("keepalive: %w", err)
	}
	metrics.AddStreamBytes(n)
	return nil
}

// retry tells the browser how long to wait before reconnecting.
func (ew *eventWriter) retry(d time.Duration) error {
	_, err := ew.write("retry: " + strconv.FormatInt(d.Milliseconds(), 10) + "\n\n")
	return err
}

func (ew *eventWriter) write(s string) (int, error) {
	if err := ew.rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		ew.logger.Debug("could not set write deadline", "error", err)
	}
	n, err := fmt.Fprint(ew.w, s)
	if err != nil {
		return n, err
	}
	if err := ew.rc.Flush(); err != nil {
		return n, err
	}
	ew.bytes += int64(n)
	return n, nil
}

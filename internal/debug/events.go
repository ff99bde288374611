package debug

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/glasspane/glasspane/internal/logbuf"
)

// ingest is the event sink registered with every session transport. It
// runs on each connection's reader goroutine; the buffer serializes
// appends, so arrival order at the buffer defines sequence order when
// targets emit concurrently. Events that are not log/console
// notifications are dropped.
func (s *Supervisor) ingest(targetID, method string, params json.RawMessage) {
	switch method {
	case "Runtime.consoleAPICalled":
		s.ingestConsole(targetID, params)
	case "Log.entryAdded":
		s.ingestLogEntry(targetID, params)
	case "Runtime.exceptionThrown":
		s.ingestException(targetID, params)
	}
}

func (s *Supervisor) ingestConsole(targetID string, params json.RawMessage) {
	var ev struct {
		Type string `json:"type"`
		Args []struct {
			Type        string      `json:"type"`
			Value       interface{} `json:"value"`
			Description string      `json:"description"`
		} `json:"args"`
		Timestamp float64 `json:"timestamp"` // ms since epoch
	}
	if err := json.Unmarshal(params, &ev); err != nil {
		s.log.Debug("bad console event", zap.String("target", targetID), zap.Error(err))
		return
	}

	text := ""
	for i, arg := range ev.Args {
		if i > 0 {
			text += " "
		}
		switch {
		case arg.Value != nil:
			text += fmt.Sprintf("%v", arg.Value)
		case arg.Description != "":
			text += arg.Description
		}
	}

	s.buf.Append(logbuf.Entry{
		Time:     protocolTime(ev.Timestamp),
		Level:    consoleLevel(ev.Type),
		TargetID: targetID,
		Text:     text,
		Source:   "console",
	})
}

func (s *Supervisor) ingestLogEntry(targetID string, params json.RawMessage) {
	var ev struct {
		Entry struct {
			Source    string  `json:"source"`
			Level     string  `json:"level"`
			Text      string  `json:"text"`
			Timestamp float64 `json:"timestamp"`
		} `json:"entry"`
	}
	if err := json.Unmarshal(params, &ev); err != nil {
		s.log.Debug("bad log event", zap.String("target", targetID), zap.Error(err))
		return
	}

	level := ev.Entry.Level
	if level == "verbose" {
		level = "debug"
	}

	s.buf.Append(logbuf.Entry{
		Time:     protocolTime(ev.Entry.Timestamp),
		Level:    level,
		TargetID: targetID,
		Text:     ev.Entry.Text,
		Source:   "log." + ev.Entry.Source,
	})
}

func (s *Supervisor) ingestException(targetID string, params json.RawMessage) {
	var ev struct {
		Timestamp        float64 `json:"timestamp"`
		ExceptionDetails struct {
			Text      string `json:"text"`
			Exception struct {
				Description string `json:"description"`
			} `json:"exception"`
		} `json:"exceptionDetails"`
	}
	if err := json.Unmarshal(params, &ev); err != nil {
		s.log.Debug("bad exception event", zap.String("target", targetID), zap.Error(err))
		return
	}

	text := ev.ExceptionDetails.Text
	if ev.ExceptionDetails.Exception.Description != "" {
		text = ev.ExceptionDetails.Exception.Description
	}

	s.buf.Append(logbuf.Entry{
		Time:     protocolTime(ev.Timestamp),
		Level:    "error",
		TargetID: targetID,
		Text:     text,
		Source:   "exception",
	})
}

// consoleLevel maps a console API call type to a log level. Types like
// "table" or "trace" carry informational weight.
func consoleLevel(callType string) string {
	switch callType {
	case "debug":
		return "debug"
	case "warning":
		return "warning"
	case "error", "assert":
		return "error"
	default:
		return "info"
	}
}

// protocolTime converts the protocol's millisecond epoch timestamps;
// zero means "not provided" and falls back to ingest time.
func protocolTime(ms float64) time.Time {
	if ms <= 0 {
		return time.Now()
	}
	return time.UnixMilli(int64(ms))
}

// Package dsslog adapts logrus for the DSS components. It mirrors the
// small formatting/level-parsing shim the rest of the ecosystem builds on
// top of logrus rather than wiring logrus options ad hoc at every call site.
package dsslog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// GetLevel maps a configuration string onto a logrus.Level. An empty
// string defaults to info.
func GetLevel(level string) (logrus.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel, nil
	case "", "info":
		return logrus.InfoLevel, nil
	case "warn", "warning":
		return logrus.WarnLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	default:
		return logrus.InfoLevel, fmt.Errorf("invalid log level: %v", level)
	}
}

// GetFormatter returns the logrus.Formatter named by format: "text" for a
// human-readable single-line formatter, "json-pretty" for indented JSON,
// anything else for compact JSON.
func GetFormatter(format, timestampFormat string) logrus.Formatter {
	switch format {
	case "text":
		return &prettyFormatter{}
	case "json-pretty":
		return &logrus.JSONFormatter{PrettyPrint: true, TimestampFormat: timestampFormat}
	default:
		return &logrus.JSONFormatter{TimestampFormat: timestampFormat}
	}
}

// New builds a logrus.Logger configured from a level/format pair, used by
// the Store gateway's notice handler (4.A) and every component that needs
// a standalone logger outside of a Handle's shared instance.
func New(level, format string) *logrus.Logger {
	l := logrus.New()
	lvl, err := GetLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	l.SetFormatter(GetFormatter(format, ""))
	return l
}

// prettyFormatter is a terser single-line alternative to logrus.TextFormatter,
// used when operators want something easier to read than JSON in a terminal.
type prettyFormatter struct{}

func (p *prettyFormatter) Format(e *logrus.Entry) ([]byte, error) {
	b := new(bytes.Buffer)
	b.WriteString(fmt.Sprintf("[%s] %s", strings.ToUpper(e.Level.String()), e.Message))
	for k, v := range e.Data {
		stringVal, ok := v.(string)
		if !ok {
			jsonVal, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			stringVal = string(jsonVal)
		}
		b.WriteString(fmt.Sprintf(" %s=%s", k, stringVal))
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

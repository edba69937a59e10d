// Package testutil provides a shared logging.Logger adapter over
// testing.T, grounded on github.com/ausocean/av/revid/utils.go's
// testLogger, for use across this module's package tests.
package testutil

import (
	"fmt"
	"testing"

	"github.com/ausocean/utils/logging"
)

// TestLogger adapts *testing.T to logging.Logger.
type TestLogger testing.T

func (tl *TestLogger) Debug(msg string, args ...interface{})   { tl.Log(logging.Debug, msg, args...) }
func (tl *TestLogger) Info(msg string, args ...interface{})    { tl.Log(logging.Info, msg, args...) }
func (tl *TestLogger) Warning(msg string, args ...interface{}) { tl.Log(logging.Warning, msg, args...) }
func (tl *TestLogger) Error(msg string, args ...interface{})   { tl.Log(logging.Error, msg, args...) }
func (tl *TestLogger) Fatal(msg string, args ...interface{})   { tl.Log(logging.Fatal, msg, args...) }
func (tl *TestLogger) SetLevel(lvl int8)                       {}

func (tl *TestLogger) Log(lvl int8, msg string, args ...interface{}) {
	var l string
	switch lvl {
	case logging.Debug:
		l = "debug"
	case logging.Info:
		l = "info"
	case logging.Warning:
		l = "warning"
	case logging.Error:
		l = "error"
	case logging.Fatal:
		l = "fatal"
	}
	msg = l + ": " + msg
	if len(args) == 0 {
		(*testing.T)(tl).Log(msg)
		return
	}
	msg += " ("
	for i := 0; i < len(args); i += 2 {
		if i > 0 {
			msg += ","
		}
		if i+1 < len(args) {
			msg += fmtPair(args[i], args[i+1])
		}
	}
	msg += " )"
	(*testing.T)(tl).Log(msg)
}

func fmtPair(k, v interface{}) string {
	return fmt.Sprintf(" %v:\"%v\"", k, v)
}

// Package logger is an asynchronous front-end over logrus. Messages are tagged
// with the object that produced them and written by a single goroutine.
package logger

import (
	"bytes"
	"fmt"
	"io"
	"reflect"
	"sync"

	"github.com/sirupsen/logrus"
)

type stringer interface {
	String() string
}

type logPair struct {
	logFn func(...any)
	obj   string
	msg   string
	done  chan struct{}
}

const (
	logSize   = 1000
	objLength = 20
)

var (
	logCh     = make(chan logPair, logSize)
	drainOnce sync.Once
)

func objToString(obj any) (objStr string) {
	if obj == nil {
		objStr = "NIL"
	} else if stringerObj, ok := obj.(stringer); ok {
		objStr = stringerObj.String()
	} else if objStr, ok = obj.(string); ok {
	} else {
		t := reflect.TypeOf(obj)
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		objStr = t.Name()
	}
	if len(objStr) > objLength {
		objStr = objStr[:objLength]
	}
	return
}

// Init sets the level and the text formatter used by all components.
func Init(lvl logrus.Level) {
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{
		ForceColors:     true,
		FullTimestamp:   true,
		PadLevelText:    true,
		TimestampFormat: "2006/02/01 15:04:05",
	})
	drainOnce.Do(startDrain)
}

// InitString is Init for a textual level such as "debug" or "warn".
func InitString(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	Init(lvl)
	return nil
}

// SetOutput redirects the underlying logrus output.
func SetOutput(w io.Writer) {
	logrus.SetOutput(w)
}

func startDrain() {
	go func() {
		sb := new(bytes.Buffer)
		for pair := range logCh {
			if pair.done != nil {
				close(pair.done)
				continue
			}
			fmt.Fprintf(sb, "|%20s|%-100s", pair.obj, pair.msg)
			pair.logFn(sb.String())
			sb.Reset()
		}
	}()
}

// Flush blocks until every message queued before the call has been written.
func Flush() {
	drainOnce.Do(startDrain)
	done := make(chan struct{})
	logCh <- logPair{done: done}
	<-done
}

func enqueue(lvl logrus.Level, fn func(...any), object any, msg string) {
	if logrus.GetLevel() < lvl {
		return
	}
	drainOnce.Do(startDrain)
	logCh <- logPair{
		logFn: fn,
		obj:   objToString(object),
		msg:   msg,
	}
}

func Trace(object any, message string) {
	enqueue(logrus.TraceLevel, logrus.Trace, object, message)
}

func Tracef(object any, message string, args ...any) {
	if logrus.GetLevel() < logrus.TraceLevel {
		return
	}
	enqueue(logrus.TraceLevel, logrus.Trace, object, fmt.Sprintf(message, args...))
}

func Debug(object any, message string) {
	enqueue(logrus.DebugLevel, logrus.Debug, object, message)
}

func Debugf(object any, message string, args ...any) {
	if logrus.GetLevel() < logrus.DebugLevel {
		return
	}
	enqueue(logrus.DebugLevel, logrus.Debug, object, fmt.Sprintf(message, args...))
}

func Info(object any, message string) {
	enqueue(logrus.InfoLevel, logrus.Info, object, message)
}

func Infof(object any, message string, args ...any) {
	if logrus.GetLevel() < logrus.InfoLevel {
		return
	}
	enqueue(logrus.InfoLevel, logrus.Info, object, fmt.Sprintf(message, args...))
}

func Warning(object any, message string) {
	enqueue(logrus.WarnLevel, logrus.Warning, object, message)
}

func Warningf(object any, message string, args ...any) {
	if logrus.GetLevel() < logrus.WarnLevel {
		return
	}
	enqueue(logrus.WarnLevel, logrus.Warning, object, fmt.Sprintf(message, args...))
}

func Error(object any, message string) {
	enqueue(logrus.ErrorLevel, logrus.Error, object, message)
}

func Errorf(object any, message string, args ...any) {
	if logrus.GetLevel() < logrus.ErrorLevel {
		return
	}
	enqueue(logrus.ErrorLevel, logrus.Error, object, fmt.Sprintf(message, args...))
}

// Fatal bypasses the queue so the message is written before the process exits.
func Fatal(object any, message string) {
	Flush()
	logrus.Fatalf("|%20s|%-100s", objToString(object), message)
}

func Fatalf(object any, message string, args ...any) {
	Flush()
	logrus.Fatalf("|%20s|%-100s", objToString(object), fmt.Sprintf(message, args...))
}

package logger

import (
	"log"
	"os"
)

var debugEnabled bool

// Init configures the process-wide log format. Debug output is opt-in via
// LOG_DEBUG=true: the webhook path emits one debug line per non-billable
// status event, which is most of them.
func Init() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	debugEnabled = os.Getenv("LOG_DEBUG") == "true"
}

func Infof(format string, v ...any) {
	log.Printf("[INFO] "+format, v...)
}

func Warnf(format string, v ...any) {
	log.Printf("[WARN] "+format, v...)
}

func Errorf(format string, v ...any) {
	log.Printf("[ERROR] "+format, v...)
}

func Debugf(format string, v ...any) {
	if !debugEnabled {
		return
	}
	log.Printf("[DEBUG] "+format, v...)
}

func Fatalf(format string, v ...any) {
	log.Fatalf("[FATAL] "+format, v...)
}

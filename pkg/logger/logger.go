package logger

import (
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

const maxLogs = 500

type Entry struct {
	Time string `json:"time"`
	Msg  string `json:"msg"`
}

type ring struct {
	mu   sync.Mutex
	logs []Entry
}

var r *ring

// Init routes the standard logger to stdout, a rotated log file and an
// in-memory ring that backs GetLogs. An empty path skips the file.
func Init(path string) {
	r = &ring{}

	writers := []io.Writer{os.Stdout, r}
	if path != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   path,
			MaxSize:    1, // MB
			MaxBackups: 2,
			MaxAge:     14, // days
		})
	}
	log.SetOutput(io.MultiWriter(writers...))
}

func (rw *ring) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	rw.logs = append(rw.logs, Entry{
		Time: time.Now().Format("15:04:05"),
		Msg:  strings.TrimRight(string(p), "\n"),
	})

	if len(rw.logs) > maxLogs {
		rw.logs = rw.logs[len(rw.logs)-maxLogs:]
	}
	return len(p), nil
}

// GetLogs returns a copy of the buffered log lines, oldest first
func GetLogs() []Entry {
	if r == nil {
		return []Entry{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry{}, r.logs...)
}

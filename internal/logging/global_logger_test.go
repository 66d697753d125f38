package logging

import (
	"errors"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
)

func TestLogFormatterFieldOrder(t *testing.T) {
	entry := &log.Entry{
		Logger:  log.StandardLogger(),
		Time:    time.Date(2024, 5, 1, 10, 11, 12, 0, time.UTC),
		Level:   log.WarnLevel,
		Message: "create branch failed\n",
		Data: log.Fields{
			"error":      errors.New("boom"),
			"repo":       "api",
			"operation":  "createBranch",
			"token":      "[PRESENT]",
			"request_id": "a1b2c3d4",
			"ignored":    "x",
		},
	}

	out, err := (&LogFormatter{}).Format(entry)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	want := "[2024-05-01 10:11:12] [a1b2c3d4] [warn ] create branch failed operation=createBranch repo=api token=[PRESENT] error=boom\n"
	if string(out) != want {
		t.Fatalf("Format =\n%q\nwant\n%q", out, want)
	}
	if strings.Contains(string(out), "ignored") {
		t.Fatal("unknown fields must not be printed")
	}
}

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestLogger(t *testing.T) {
	log := DefaultLog{}

	buf := &bytes.Buffer{}
	log.SetOutput(buf)
	log.SetLevel(logrus.DebugLevel)
	log.SetFormatter(&logrus.TextFormatter{})

	log.Errorf("errorf: %s", "foo")
	s := strings.TrimSpace(buf.String())
	buf.Reset()
	if !strings.HasSuffix(s, `errorf: foo"`) {
		t.Fatalf(`Failed log.Errorf: want suffix "errorf: foo", got %q`, s)
	}

	log.Warnf("warnf: %s", "foo")
	s = strings.TrimSpace(buf.String())
	buf.Reset()
	if !strings.HasSuffix(s, `warnf: foo"`) {
		t.Fatalf(`Failed log.Warnf: want suffix "warnf: foo", got %q`, s)
	}

	log.Infof("infof: %s", "foo")
	s = strings.TrimSpace(buf.String())
	buf.Reset()
	if !strings.HasSuffix(s, `infof: foo"`) {
		t.Fatalf(`Failed log.Infof: want suffix "infof: foo", got %q`, s)
	}

	log.Debugf("debugf: %s", "foo")
	s = strings.TrimSpace(buf.String())
	if !strings.HasSuffix(s, `debugf: foo"`) {
		t.Fatalf(`Failed log.Debugf: want suffix "debugf: foo", got %q`, s)
	}
}

func TestCustomOutputForApplicationLog(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{ApplicationLogOutput: &buf})
	logrus.Info("Hello, world!")
	if !strings.Contains(buf.String(), "Hello, world!") {
		t.Error("failed to use custom output")
	}
}

func TestCustomPrefixForApplicationLog(t *testing.T) {
	var buf bytes.Buffer
	prefix := "[PIPELINE] "
	Init(Options{
		ApplicationLogOutput: &buf,
		ApplicationLogPrefix: prefix,
	})
	logrus.Info("hello")
	got := buf.String()
	if !strings.Contains(got, prefix) || !strings.Contains(got, "hello") {
		t.Error("failed to use custom prefix")
	}
}

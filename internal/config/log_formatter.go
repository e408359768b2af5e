package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
)

type NbFormatter struct {
	NoColor bool
}

func (f *NbFormatter) Format(entry *log.Entry) ([]byte, error) {
	const (
		red    = 31
		yellow = 33
		blue   = 36
		gray   = 37
	)
	levelColor := blue
	switch entry.Level {
	case log.DebugLevel, log.TraceLevel:
		levelColor = gray
	case log.WarnLevel:
		levelColor = yellow
	case log.ErrorLevel, log.FatalLevel, log.PanicLevel:
		levelColor = red
	case log.InfoLevel:
		levelColor = blue
	}
	level := strings.ToUpper(entry.Level.String())[:4]
	if !f.NoColor {
		level = fmt.Sprintf("\x1b[%dm%s\x1b[0m", levelColor, level)
	}

	var b strings.Builder
	b.WriteString("level=" + level)
	b.WriteString(" ts=" + entry.Time.Format("2006-01-02 15:04:05.000"))

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		val := entry.Data[k]
		if err, ok := val.(error); ok {
			val = err.Error()
		}
		var s string
		if m, err := json.Marshal(val); err == nil {
			s = string(m)
		}
		if s == "" {
			continue
		}
		b.WriteString(fmt.Sprintf(" %s=%s", k, s))
	}
	b.WriteString(` msg="` + entry.Message + `"`)

	output := strings.ReplaceAll(b.String(), "\r", "\\r")
	output = strings.ReplaceAll(output, "\n", "\\n") + "\n"
	return []byte(output), nil
}

func SetupLogging(level string) {
	log.SetOutput(os.Stdout)
	log.SetFormatter(&NbFormatter{})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.SetLevel(log.InfoLevel)
		log.WithField("level", level).Warnln("unknown log level, using info")
		return
	}
	log.SetLevel(lvl)
}

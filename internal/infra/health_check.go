package infra

import (
	"context"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	checkExecInterval = 5 * time.Second
)

// MonitorExecutable fires once the running binary is replaced on disk, so a
// supervisor can restart the bot with the new build.
func MonitorExecutable(ctx context.Context) <-chan struct{} {
	exeFilename, err := os.Executable()
	if err != nil {
		log.WithError(err).Warnln("cant locate executable, not monitoring")
		return make(chan struct{})
	}
	log.Debug(exeFilename)
	return WatchFile(ctx, exeFilename, checkExecInterval)
}

// WatchFile closes the returned channel when the modification time of path
// changes or the file disappears.
func WatchFile(ctx context.Context, path string, interval time.Duration) <-chan struct{} {
	ch := make(chan struct{})
	stat, err := os.Stat(path)
	if err != nil {
		log.WithError(err).WithField("path", path).Warnln("cant stat watched file")
		return ch
	}
	originalTime := stat.ModTime()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if ctx.Err() != nil {
				return
			}
			stat, err := os.Stat(path)
			if err != nil || !originalTime.Equal(stat.ModTime()) {
				close(ch)
				return
			}
		}
	}()
	return ch
}

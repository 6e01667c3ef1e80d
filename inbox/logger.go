package inbox

import (
	"fmt"
	"strings"

	cmtlog "github.com/cometbft/cometbft/libs/log"
)

// badgerLogger routes badger's printf style logging into the service logger
type badgerLogger struct {
	logger cmtlog.Logger
}

func format(f string, args ...interface{}) string {
	return strings.TrimSpace(fmt.Sprintf(f, args...))
}

func (l badgerLogger) Errorf(f string, args ...interface{}) {
	l.logger.Error(format(f, args...))
}

func (l badgerLogger) Warningf(f string, args ...interface{}) {
	l.logger.Info(format(f, args...), "level", "warn")
}

func (l badgerLogger) Infof(f string, args ...interface{}) {
	l.logger.Debug(format(f, args...))
}

func (l badgerLogger) Debugf(f string, args ...interface{}) {
	l.logger.Debug(format(f, args...))
}

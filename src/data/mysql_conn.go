package data

import (
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type gormWriter struct {
	log *zap.SugaredLogger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.Warnf(format, args...)
}

// NewGormLogger routes slow queries and errors through zap.
func NewGormLogger(log *zap.SugaredLogger) logger.Interface {
	return logger.New(
		gormWriter{log: log},
		logger.Config{SlowThreshold: time.Second, LogLevel: logger.Warn, IgnoreRecordNotFoundError: true, Colorful: false},
	)
}

// ConnectMySQL opens a gorm DB with sane defaults.
func ConnectMySQL(dsn string, log *zap.SugaredLogger) (*gorm.DB, error) {
	dsn = ensureParam(dsn, "parseTime", "true")
	if !strings.Contains(dsn, "charset=") {
		dsn = ensureParam(dsn, "charset", "utf8mb4")
		dsn = ensureParam(dsn, "collation", "utf8mb4_unicode_ci")
	}

	return gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: NewGormLogger(log), NowFunc: NowUTC})
}

// NowUTC is the clock gorm stamps rows with. Timestamps compared in queries
// must all be UTC.
func NowUTC() time.Time { return time.Now().UTC() }

func ensureParam(dsn, key, val string) string {
	if strings.Contains(dsn, key+"=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + key + "=" + val
}

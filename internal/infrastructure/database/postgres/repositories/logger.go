package repositories

// Logger is the key/value logging contract the repositories depend on.
// The binaries adapt the service's structured logger to it.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

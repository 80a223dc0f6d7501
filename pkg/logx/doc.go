// Package logx wraps zerolog behind a small structured-logging API with
// hot-swappable sinks: console, rotating file, and a rate-limited chat sink
// that mirrors WARN+ lines into an ops group once a platform connection
// exists.
package logx

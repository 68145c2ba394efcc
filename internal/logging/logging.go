package logging

import (
	"io"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/workloy/workloy/internal/config"
)

// Setup initializes the global logger based on configuration
func Setup(cfg *config.LoggingConfig, env string) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	zerolog.TimeFieldFormat = time.RFC3339Nano

	var output io.Writer
	if cfg.Format == "json" || env == "production" {
		output = os.Stdout
	} else {
		// Pretty console output for development
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
			NoColor:    false,
		}
	}

	log.Logger = zerolog.New(output).
		With().
		Timestamp().
		Str("service", "workloy").
		Logger()
}

// RequestLogger is a Gin middleware for structured request logging
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		requestID := c.GetString("request_id")

		event := log.Info()
		if c.Writer.Status() >= 500 {
			event = log.Error()
		} else if c.Writer.Status() >= 400 {
			event = log.Warn()
		}

		event.
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", raw).
			Int("status", c.Writer.Status()).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Int("body_size", c.Writer.Size()).
			Msg("HTTP request")
	}
}

// LogLedgerOp logs a balance-changing ledger operation.
func LogLedgerOp(op, email string, amount int64, err error) {
	event := log.Info()
	if err != nil {
		event = log.Warn().Err(err)
	}
	event.
		Str("op", op).
		Str("email", email).
		Int64("coins", amount).
		Msg("Ledger operation")
}

// LogPayment logs a coin purchase event
func LogPayment(email, transactionID, method string, coins int64) {
	log.Info().
		Str("email", email).
		Str("transaction_id", transactionID).
		Str("method", method).
		Int64("coins", coins).
		Msg("Payment event")
}

// LogWithdrawal logs a withdrawal lifecycle event
func LogWithdrawal(workerEmail, status string, coins int64) {
	log.Info().
		Str("worker_email", workerEmail).
		Str("status", status).
		Int64("coins", coins).
		Msg("Withdrawal event")
}

// LogSecurityEvent logs security-related events
func LogSecurityEvent(eventType, email, clientIP, details string) {
	log.Warn().
		Str("event_type", eventType).
		Str("email", email).
		Str("client_ip", clientIP).
		Str("details", details).
		Msg("Security event")
}

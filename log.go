package main

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger returns the process logger: console output on stderr with UTC
// timestamps, sampled so a flood of identical messages stays readable.
func newLogger(level zapcore.Level) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = func(ts time.Time, encoder zapcore.PrimitiveArrayEncoder) {
		encoder.AppendString(ts.UTC().Format("2006/01/02 15:04:05.000"))
	}
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), level)

	// avoid a firehose of logs
	const firstNMsgs, everyNthMsg = 10, 100
	core = zapcore.NewSamplerWithOptions(core, time.Second, firstNMsgs, everyNthMsg)

	return zap.New(core)
}

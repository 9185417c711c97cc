package logging

import "go.uber.org/zap/zapcore"

// newSampledCore samples entries below Error so that a bulk ingest skipping
// thousands of features cannot flood the output. Error and above always
// pass.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}
	severe, err := zapcore.NewIncreaseLevelCore(core, zapcore.ErrorLevel)
	if err != nil {
		// core already drops Error, so there is nothing to split off.
		return core
	}
	routine := zapcore.NewSamplerWithOptions(belowError{core}, cfg.Tick.Duration(), cfg.Initial, cfg.Thereafter)
	return zapcore.NewTee(severe, routine)
}

// belowError passes only entries under Error.
type belowError struct {
	zapcore.Core
}

func (c belowError) Enabled(lvl zapcore.Level) bool {
	return lvl < zapcore.ErrorLevel && c.Core.Enabled(lvl)
}

func (c belowError) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c belowError) With(fields []zapcore.Field) zapcore.Core {
	return belowError{c.Core.With(fields)}
}

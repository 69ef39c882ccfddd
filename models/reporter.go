package models

import (
	"github.com/mmdatafocus/pos_ledger/config"
	"github.com/sirupsen/logrus"
)

// ErrorReporter is the single sink for ledger failures. Nothing in this
// package writes diagnostics on its own.
type ErrorReporter interface {
	ReportError(moduleName string, funcName string, context string, data any, err error)
}

// LogrusReporter forwards failures to config.LogError.
type LogrusReporter struct {
	Logger *logrus.Logger
}

func NewLogrusReporter(logger *logrus.Logger) *LogrusReporter {
	if logger == nil {
		logger = config.GetLogger()
	}
	return &LogrusReporter{Logger: logger}
}

func (r *LogrusReporter) ReportError(moduleName string, funcName string, context string, data any, err error) {
	if err == nil {
		return
	}
	config.LogError(r.Logger, moduleName, funcName, context, data, err)
}

type discardReporter struct{}

func (discardReporter) ReportError(string, string, string, any, error) {}

func reporterOrDiscard(r ErrorReporter) ErrorReporter {
	if r == nil {
		return discardReporter{}
	}
	return r
}

package utils

import (
	"fmt"
	"net/http"

	"github.com/rollbar/rollbar-go"
)

// ErrorReporter ships unexpected errors to an external tracker
type ErrorReporter interface {
	Report(err error, req *http.Request, extras map[string]interface{})
	ReportPanic(recovered interface{}, req *http.Request)
	Close()
}

type RollbarConfig struct {
	Token       string
	Environment string
	CodeVersion string
	ServerHost  string
}

type rollbarReporter struct{}

// NewErrorReporter returns a Rollbar reporter when a token is configured, otherwise a no-op
func NewErrorReporter(cfg RollbarConfig) ErrorReporter {
	if cfg.Token == "" {
		return NoopReporter{}
	}

	rollbar.SetToken(cfg.Token)
	rollbar.SetEnvironment(cfg.Environment)
	if cfg.CodeVersion != "" {
		rollbar.SetCodeVersion(cfg.CodeVersion)
	}
	if cfg.ServerHost != "" {
		rollbar.SetServerHost(cfg.ServerHost)
	}
	rollbar.SetEnabled(true)
	return &rollbarReporter{}
}

func (r *rollbarReporter) Report(err error, req *http.Request, extras map[string]interface{}) {
	if err == nil {
		return
	}
	if req != nil {
		rollbar.RequestErrorWithExtras(rollbar.ERR, req, err, extras)
		return
	}
	rollbar.ErrorWithExtras(rollbar.ERR, err, extras)
}

func (r *rollbarReporter) ReportPanic(recovered interface{}, req *http.Request) {
	err, ok := recovered.(error)
	if !ok {
		err = fmt.Errorf("panic: %v", recovered)
	}
	if req != nil {
		rollbar.RequestError(rollbar.CRIT, req, err)
		return
	}
	rollbar.Critical(err)
}

func (r *rollbarReporter) Close() {
	rollbar.Wait()
	rollbar.Close()
}

// NoopReporter discards everything
type NoopReporter struct{}

func (NoopReporter) Report(error, *http.Request, map[string]interface{}) {}
func (NoopReporter) ReportPanic(interface{}, *http.Request)              {}
func (NoopReporter) Close()                                              {}

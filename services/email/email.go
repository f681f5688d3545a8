// Package emailsvc holds the core.EmailService implementations.
package emailsvc

import "github.com/trezcool/inspectorat/core"

// New returns the sendgrid service when an API key is configured outside debug/test,
// the console service otherwise.
func New(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.TestMode || conf.SendgridAPIKey == "" {
		return NewConsoleService(conf, logger)
	}
	return NewSendgridService(conf, logger)
}

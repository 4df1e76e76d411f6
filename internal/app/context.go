package app

import (
	"github.com/platescale/platescale/internal/buildinfo"
	"github.com/platescale/platescale/internal/conf"
	"github.com/platescale/platescale/internal/logger"
	"github.com/platescale/platescale/internal/telemetry"
)

// Context is shared by the CLI commands. Settings is populated by Setup,
// which runs before any subcommand.
type Context struct {
	ConfigPath string
	Debug      bool

	Settings *conf.Settings
	Build    *buildinfo.Context

	logger *logger.CentralLogger
}

// NewContext returns a context carrying the linked build information.
func NewContext() *Context {
	return &Context{Build: buildinfo.Current()}
}

// Setup loads the settings and initializes logging and telemetry.
func (c *Context) Setup() error {
	settings, err := conf.Load(c.ConfigPath)
	if err != nil {
		return err
	}
	if c.Debug {
		settings.Debug = true
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}
	c.Settings = settings

	cl, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return err
	}
	logger.SetGlobal(cl)
	c.logger = cl

	return telemetry.InitSentry(&settings.Sentry, c.Build, cl.Module("telemetry"))
}

// Teardown flushes telemetry and closes the log file.
func (c *Context) Teardown() {
	telemetry.Flush()
	if c.logger != nil {
		_ = c.logger.Close()
	}
}

package types

import (
	"github.com/sirupsen/logrus"

	"github.com/jhalttu/talkscan/config"
)

// DefaultVersion is the fallback version when AppContext is nil
const DefaultVersion = "dev"

// AppContext holds application-wide state passed to commands
type AppContext struct {
	Version string
	Config  *config.Config
	Log     *logrus.Logger
}

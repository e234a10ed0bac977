package memory

import (
	"testing"

	"paymanager/internal/settings"
	"paymanager/internal/settings/settingstest"
)

func TestStore(t *testing.T) {
	settingstest.Run(t, func(*testing.T) settings.Store { return New() })
}

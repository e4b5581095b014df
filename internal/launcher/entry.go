package launcher

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/bloom/bloomctl/internal/infrastructure/config"
)

// ErrEntryModuleNotFound is returned when neither src/main.py nor main.py exists.
// The message is printed verbatim by the CLI.
var ErrEntryModuleNotFound = errors.New("Cannot find main.py") //nolint:staticcheck

// ResolveAppModule returns the "module:variable" reference handed to the
// server. APP_MODULE wins, then MODULE_NAME; only when neither is set is
// workDir probed for src/main.py and then main.py.
func ResolveAppModule(srv config.ServerConfig, workDir string) (string, error) {
	if srv.AppModule != "" {
		return srv.AppModule, nil
	}

	variable := srv.VariableName
	if variable == "" {
		variable = "app"
	}
	if srv.ModuleName != "" {
		return srv.ModuleName + ":" + variable, nil
	}

	candidates := []struct {
		path   string
		module string
	}{
		{filepath.Join(workDir, "src", "main.py"), "src.main"},
		{filepath.Join(workDir, "main.py"), "main"},
	}
	for _, c := range candidates {
		if info, err := os.Stat(c.path); err == nil && !info.IsDir() {
			return c.module + ":" + variable, nil
		}
	}
	return "", ErrEntryModuleNotFound
}

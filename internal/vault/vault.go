package vault

import (
	"fmt"
	"path"
	"strings"
)

// reportPrefix is the namespace every report name lives under.
const reportPrefix = "reports/"

// validateName checks that name is a clean, relative report name such as
// "reports/01HX.json". Names come from the exporter but also from the CLI.
func validateName(name string) error {
	if !strings.HasPrefix(name, reportPrefix) || len(name) == len(reportPrefix) {
		return fmt.Errorf("invalid report name %q: must start with %q", name, reportPrefix)
	}
	if path.Clean(name) != name || strings.Contains(name, "..") || strings.Contains(name, `\`) {
		return fmt.Errorf("invalid report name %q", name)
	}
	return nil
}

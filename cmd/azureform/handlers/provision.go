package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/expcloud/azureform/internal/template"
)

// Provision handles the provision command: it loads the template, selects
// the requested units, starts one provisioning chain per unit, and blocks
// until every chain has terminated.
func Provision(ctx context.Context, configPath, credentialID string, experimentID int64, templatePath, unitName string) error {
	rt, err := openRuntime(configPath)
	if err != nil {
		return err
	}
	defer rt.Close() //nolint:errcheck

	units, err := loadUnits(templatePath, unitName)
	if err != nil {
		return err
	}

	var failed []string
	for _, unit := range units {
		if err := rt.orch.Provision(ctx, credentialID, experimentID, unit); err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", unit.MachineName, err))
		}
	}
	rt.orch.Wait()

	if len(failed) > 0 {
		return fmt.Errorf("provisioning failed for %d unit(s):\n  %s", len(failed), strings.Join(failed, "\n  "))
	}
	return nil
}

// loadUnits parses the template and narrows it to one unit when unitName is
// set.
func loadUnits(templatePath, unitName string) ([]template.Unit, error) {
	tpl, err := template.Load(templatePath)
	if err != nil {
		return nil, err
	}
	return selectUnits(tpl.Units, unitName)
}

func selectUnits(units []template.Unit, unitName string) ([]template.Unit, error) {
	if unitName == "" {
		return units, nil
	}
	for _, unit := range units {
		if unit.MachineName == unitName {
			return []template.Unit{unit}, nil
		}
	}
	return nil, fmt.Errorf("template has no unit with machine name %q", unitName)
}

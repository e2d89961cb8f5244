package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/expcloud/azureform/internal/template"
)

// Start handles the start command: one start chain per selected unit.
func Start(ctx context.Context, configPath, credentialID string, experimentID int64, templatePath, unitName string) error {
	return runLifecycle(ctx, configPath, templatePath, unitName, "starting",
		func(ctx context.Context, rt *runtime, unit template.Unit) error {
			return rt.orch.Start(ctx, credentialID, experimentID, unit)
		})
}

// Stop handles the stop command: one stop chain per selected unit.
func Stop(ctx context.Context, configPath, credentialID string, experimentID int64, templatePath, unitName string, deallocate bool) error {
	return runLifecycle(ctx, configPath, templatePath, unitName, "stopping",
		func(ctx context.Context, rt *runtime, unit template.Unit) error {
			return rt.orch.Stop(ctx, credentialID, experimentID, unit, deallocate)
		})
}

func runLifecycle(ctx context.Context, configPath, templatePath, unitName, verb string, run func(context.Context, *runtime, template.Unit) error) error {
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
		if err := run(ctx, rt, unit); err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", unit.MachineName, err))
		}
	}
	rt.orch.Wait()

	if len(failed) > 0 {
		return fmt.Errorf("%s failed for %d unit(s):\n  %s", verb, len(failed), strings.Join(failed, "\n  "))
	}
	return nil
}

/*
Package cortex assembles a module working-set manager from configuration.

New opens the warm database and cold directory under the data directory,
builds the event bus, registry and loader, and attaches configured hooks
to the bus. Discover registers manifests found in the module directories
and records which tier already holds each module's content. Start runs
the maintenance schedule and watches module directories for new or
changed manifests.

Usage:

	cfg, _ := config.Load("")
	c, err := cortex.New(cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	if _, err := c.Discover(); err != nil {
		logger.Warn().Err(err).Msg("Some modules failed to register")
	}
	result, err := c.Loader().Load("python_advanced", c.DefaultPriority())
*/
package cortex

/*
Package config defines the configuration model for the Saturn proxy stack.

Configuration is loaded from a YAML document, completed with defaults,
overridden from SATURN_* environment variables and validated exhaustively:
Validate collects every violated constraint into a single ValidationError
instead of stopping at the first, so an operator can fix a broken file in
one edit cycle.

A validated Config is turned into a Topology, the immutable model consumed
by the config generator, the process supervisor and the health monitor:

	cfg, err := config.Load("config.yml")
	if err != nil {
		return err
	}
	topo := config.BuildTopology(cfg)

Environment-dependent constraints (external binaries resolvable on PATH,
work/log/PID directories writable) live in ValidateEnvironment so that
structural validation stays usable on hosts that only generate configs.
*/
package config

/*
Package config loads and validates the service's YAML configuration.

Load reads a file over the built-in defaults, so a minimal config only
names what differs. Validate rejects inverted hash ranges, unknown data
element kinds, malformed shard URLs and duplicate shard ranges before
the service touches its data directory.

# Integration Points

  - cmd/gatehouse loads config at startup and for `validate`
  - pkg/types supplies ShardConfig validation for the routing section
*/
package config

package model

import "github.com/rotisserie/eris"

// EntityType discriminates the closed set of maintainable equipment classes.
type EntityType string

const (
	// EntityCrane is a rail-mounted gantry crane; its usage is read directly
	// from its own telemetry stream.
	EntityCrane EntityType = "crane"
	// EntitySpreader is a lifting attachment shared across cranes; its usage
	// is aggregated from the cranes it has been assigned to.
	EntitySpreader EntityType = "spreader"
)

// ParseEntityType validates a raw discriminator against the closed set.
func ParseEntityType(s string) (EntityType, error) {
	switch EntityType(s) {
	case EntityCrane:
		return EntityCrane, nil
	case EntitySpreader:
		return EntitySpreader, nil
	default:
		return "", eris.Errorf("model: unknown entity type %q", s)
	}
}

// Composite reports whether usage for this entity kind is accrued across
// member entities rather than read from its own stream.
func (t EntityType) Composite() bool {
	return t == EntitySpreader
}

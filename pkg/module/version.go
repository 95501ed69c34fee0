package module

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

var (
	// moduleIDRegex validates module ids; ids double as file names in the cold tier
	moduleIDRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

	// semverRegex validates semver version format
	semverRegex = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
)

// constraintOps are the supported comparators, longest first so that
// splitting "id~=1.0.0" never stops at a shorter prefix.
var constraintOps = []string{"~=", "==", ">="}

// ValidID reports whether id is a well-formed module id
func ValidID(id string) bool {
	return moduleIDRegex.MatchString(id)
}

// ParseRequirement splits a dependency or conflict entry such as
// "python_core>=1.2.0" into the module id and its constraint. Entries
// without a comparator return an empty constraint.
func ParseRequirement(entry string) (string, string, error) {
	entry = strings.TrimSpace(entry)

	for i := 0; i < len(entry); i++ {
		for _, op := range constraintOps {
			if !strings.HasPrefix(entry[i:], op) {
				continue
			}
			id := strings.TrimSpace(entry[:i])
			constraint := op + strings.TrimSpace(entry[i+len(op):])
			if !ValidID(id) {
				return "", "", fmt.Errorf("%w: invalid module id %q", ErrInvalidManifest, id)
			}
			if _, err := toSemverConstraint(constraint); err != nil {
				return "", "", err
			}
			return id, constraint, nil
		}
	}

	if !ValidID(entry) {
		return "", "", fmt.Errorf("%w: invalid module id %q", ErrInvalidManifest, entry)
	}
	return entry, "", nil
}

// VersionCompatible reports whether version satisfies constraint.
// Supported forms are >=X.Y.Z, ~=X.Y.Z (same major.minor, patch at least
// Z) and ==X.Y.Z. An empty constraint matches every version.
func VersionCompatible(version, constraint string) (bool, error) {
	if constraint == "" {
		return true, nil
	}

	v, err := semver.NewVersion(version)
	if err != nil {
		return false, fmt.Errorf("invalid version %s: %w", version, err)
	}

	c, err := toSemverConstraint(constraint)
	if err != nil {
		return false, err
	}

	return c.Check(v), nil
}

// toSemverConstraint maps the module constraint syntax onto Masterminds
// constraints: ~=X.Y.Z is the tilde range and ==X.Y.Z an exact match.
func toSemverConstraint(constraint string) (*semver.Constraints, error) {
	constraint = strings.TrimSpace(constraint)

	var op, operand string
	for _, candidate := range constraintOps {
		if strings.HasPrefix(constraint, candidate) {
			op = candidate
			operand = strings.TrimSpace(constraint[len(candidate):])
			break
		}
	}
	if op == "" {
		return nil, fmt.Errorf("%w: %q (expected >=, ~= or ==)", ErrInvalidConstraint, constraint)
	}
	if !semverRegex.MatchString(operand) {
		return nil, fmt.Errorf("%w: %q (expected X.Y.Z)", ErrInvalidConstraint, constraint)
	}

	var expr string
	switch op {
	case ">=":
		expr = ">= " + operand
	case "~=":
		expr = "~" + operand
	case "==":
		expr = "= " + operand
	}

	c, err := semver.NewConstraint(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidConstraint, constraint, err)
	}
	return c, nil
}

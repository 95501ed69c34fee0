package module

import (
	"fmt"
	"time"
)

// ModuleType is the category of a module
type ModuleType string

const (
	TypeKnowledge  ModuleType = "knowledge"
	TypeCapability ModuleType = "capability"
	TypeIdentity   ModuleType = "identity"
	TypeMemory     ModuleType = "memory"
)

// ValidTypes is a set of all valid module types
var ValidTypes = map[ModuleType]bool{
	TypeKnowledge:  true,
	TypeCapability: true,
	TypeIdentity:   true,
	TypeMemory:     true,
}

// ModuleStatus is the load state of a module
type ModuleStatus string

const (
	StatusAvailable ModuleStatus = "available"
	StatusLoading   ModuleStatus = "loading"
	StatusLoaded    ModuleStatus = "loaded"
)

// Tier names the storage tier currently holding a module's content
type Tier string

const (
	TierHot  Tier = "hot"
	TierWarm Tier = "warm"
	TierCold Tier = "cold"
	TierNone Tier = "none"
)

// Conflict declares an incompatibility with another module, optionally
// limited to a version range of that module.
type Conflict struct {
	ModuleID   string `json:"module_id"`
	Constraint string `json:"constraint,omitempty"`
}

func (c Conflict) String() string {
	return c.ModuleID + c.Constraint
}

// ConflictReport describes a conflict found between a candidate and a
// loaded module
type ConflictReport struct {
	ModuleID      string
	ConflictsWith string
	LoadedVersion string
	Constraint    string
	Reason        string
}

func (r ConflictReport) String() string {
	if r.Constraint != "" {
		return fmt.Sprintf("%s conflicts with %s@%s (%s)", r.ModuleID, r.ConflictsWith, r.LoadedVersion, r.Constraint)
	}
	return fmt.Sprintf("%s conflicts with %s@%s", r.ModuleID, r.ConflictsWith, r.LoadedVersion)
}

// ModuleRecord is the catalog entry of a module. Status, Tier, LastUsed
// and UsageCount are updated only by the loader through the Registry.
type ModuleRecord struct {
	ID                    string
	Name                  string
	Description           string
	Version               string
	Type                  ModuleType
	SizeTokens            int
	Dependencies          []string
	DependencyConstraints map[string]string
	Conflicts             []Conflict
	Triggers              []string
	Dir                   string
	ContentFiles          []string
	Status                ModuleStatus
	Tier                  Tier
	LastUsed              time.Time
	UsageCount            int
	RegisteredAt          time.Time

	seq uint64
}

// Seq returns the registration sequence number of the record
func (r ModuleRecord) Seq() uint64 {
	return r.seq
}

func (r *ModuleRecord) clone() ModuleRecord {
	c := *r
	c.Dependencies = append([]string(nil), r.Dependencies...)
	c.Conflicts = append([]Conflict(nil), r.Conflicts...)
	c.Triggers = append([]string(nil), r.Triggers...)
	c.ContentFiles = append([]string(nil), r.ContentFiles...)
	if r.DependencyConstraints != nil {
		c.DependencyConstraints = make(map[string]string, len(r.DependencyConstraints))
		for k, v := range r.DependencyConstraints {
			c.DependencyConstraints[k] = v
		}
	}
	return c
}

// ModuleStats summarizes usage of a module
type ModuleStats struct {
	ModuleID   string
	UsageCount int
	LastUsed   time.Time
	Status     ModuleStatus
	Tier       Tier
}

// Filter selects records in List. Zero values match everything.
type Filter struct {
	Type   ModuleType
	Status ModuleStatus
}

func (f Filter) matches(r *ModuleRecord) bool {
	if f.Type != "" && r.Type != f.Type {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	return true
}

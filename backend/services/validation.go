// ABOUTME: Structural validation for fabric specs and fabric ids
// ABOUTME: Fabric ids become directory names, so they are restricted to a safe charset

package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/markalston/fabric-planner/backend/models"
)

// fabricIDPattern matches valid fabric ids and leaf class ids (alphanumeric, hyphens, underscores)
var fabricIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// maxFabricIDLength bounds directory names in the artifact store
const maxFabricIDLength = 64

// sanitizeForLog removes control characters from strings to prevent log injection
// when including user input in error messages
func sanitizeForLog(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1 // Remove control characters
		}
		return r
	}, s)
}

// ValidateFabricID validates that a fabric id is safe to use as a path segment
func ValidateFabricID(id string) error {
	if id == "" {
		return fmt.Errorf("fabric id cannot be empty")
	}
	if len(id) > maxFabricIDLength {
		return fmt.Errorf("fabric id exceeds %d characters", maxFabricIDLength)
	}
	if !fabricIDPattern.MatchString(id) {
		return fmt.Errorf("invalid fabric id format: %s", sanitizeForLog(id))
	}
	return nil
}

// SpecValidationError lists every structural problem found in a spec
type SpecValidationError struct {
	Problems []string
}

func (e *SpecValidationError) Error() string {
	return "invalid fabric spec: " + strings.Join(e.Problems, "; ")
}

// ValidateSpec checks a spec's structure before it enters the pipeline.
// Design feasibility is not checked here; that is the calculator's job.
func ValidateSpec(spec models.FabricSpec) error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if err := ValidateFabricID(spec.Name); err != nil {
		addf("name: %v", err)
	}
	if spec.SpineModelID == "" {
		addf("spineModelId is required")
	}

	if spec.IsMultiClass() {
		seen := make(map[string]bool)
		for i, lc := range spec.LeafClasses {
			prefix := fmt.Sprintf("leafClasses[%d]", i)
			switch {
			case lc.ID == "":
				addf("%s: id is required", prefix)
			case !fabricIDPattern.MatchString(lc.ID):
				addf("%s: invalid id %s", prefix, sanitizeForLog(lc.ID))
			case seen[lc.ID]:
				addf("%s: duplicate id %s", prefix, lc.ID)
			}
			seen[lc.ID] = true

			if lc.Role != "" && lc.Role != models.LeafRoleStandard && lc.Role != models.LeafRoleBorder {
				addf("%s: unknown role %s", prefix, sanitizeForLog(string(lc.Role)))
			}
			if lc.LeafModelID == "" && spec.LeafModelID == "" {
				addf("%s: leafModelId is required when the spec has no default", prefix)
			}
			if lc.UplinksPerLeaf < 0 {
				addf("%s: uplinksPerLeaf cannot be negative", prefix)
			}
			if lc.Count != nil && *lc.Count < 0 {
				addf("%s: count cannot be negative", prefix)
			}
			slugs := make(map[string]string)
			for k, p := range lc.EndpointProfiles {
				pprefix := fmt.Sprintf("%s.endpointProfiles[%d]", prefix, k)
				problems = append(problems, profileProblems(pprefix, p)...)

				// Server ids are built from the slug, so it must be unique within the class
				slug := normalizeProfileName(profileName(p))
				if slug == "" {
					continue
				}
				if other, ok := slugs[slug]; ok {
					addf("%s: name %s collides with %s as server id %s", pprefix, sanitizeForLog(profileName(p)), sanitizeForLog(other), slug)
				} else {
					slugs[slug] = profileName(p)
				}
			}
		}
	} else {
		if spec.LeafModelID == "" {
			addf("leafModelId is required")
		}
		if spec.UplinksPerLeaf != nil && *spec.UplinksPerLeaf < 0 {
			addf("uplinksPerLeaf cannot be negative")
		}
		if spec.EndpointCount != nil && *spec.EndpointCount < 0 {
			addf("endpointCount cannot be negative")
		}
		if spec.EndpointProfile != nil {
			problems = append(problems, profileProblems("endpointProfile", *spec.EndpointProfile)...)
		}
	}

	if len(problems) > 0 {
		return &SpecValidationError{Problems: problems}
	}
	return nil
}

func profileProblems(prefix string, p models.EndpointProfile) []string {
	var problems []string
	if p.PortsPerEndpoint < 0 {
		problems = append(problems, prefix+": portsPerEndpoint cannot be negative")
	}
	if p.Count != nil && *p.Count < 0 {
		problems = append(problems, prefix+": count cannot be negative")
	}
	if p.NICs != nil && *p.NICs < 1 {
		problems = append(problems, prefix+": nics must be at least 1")
	}
	if normalizeProfileName(profileName(p)) == "" {
		problems = append(problems, prefix+": name "+sanitizeForLog(p.Name)+" has no letters or digits")
	}
	return problems
}

// profileName is the name the profile resolves to after normalization.
func profileName(p models.EndpointProfile) string {
	if p.Name == "" {
		return models.DefaultProfileName
	}
	return p.Name
}

package services

import "github.com/linesmerrill/dispute-resolution-api/models"

// caseRule decides whether an actor with a given role may access a case.
// Rules are keyed on role so adding a role is a one-line change.
type caseRule func(c *models.Case, actor models.UserContext) bool

var caseAccessRules = map[string]caseRule{
	models.RoleAdmin: func(*models.Case, models.UserContext) bool {
		return true
	},
	models.RoleClient: func(c *models.Case, actor models.UserContext) bool {
		return c.Details.CreatedBy == actor.ID
	},
	models.RolePanelist: func(c *models.Case, actor models.UserContext) bool {
		return hasActivePanelAssignment(c, actor.PanelistID)
	},
}

// CanAccessCase reports whether the acting user may access the given
// case. Pure predicate, no side effects; callers raise ErrForbidden.
func CanAccessCase(c *models.Case, actor models.UserContext) bool {
	rule, ok := caseAccessRules[actor.Role]
	if !ok {
		return false
	}
	return rule(c, actor)
}

func hasActivePanelAssignment(c *models.Case, panelistID string) bool {
	if panelistID == "" {
		return false
	}
	for _, pa := range c.Details.AssignedPanelists {
		if pa.Panelist == panelistID && pa.Status == models.PanelistStatusActive {
			return true
		}
	}
	return false
}

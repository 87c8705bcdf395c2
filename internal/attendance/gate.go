package attendance

// Authorize decides whether a subject holding roles may check in to the category.
// Unrestricted categories always pass.
func Authorize(roles []string, cp CategoryPolicy) error {
	if !cp.Restricted {
		return nil
	}
	if cp.AllowedRoles.Intersects(roles) {
		return nil
	}
	return &ForbiddenError{Category: cp.Category, Reason: ReasonRequiresLeadership}
}

// CanIssue reports whether roles may operate a presenter screen.
func (p *Policy) CanIssue(roles []string) bool {
	return p.PresenterRoles.Intersects(roles)
}

// CanAudit reports whether roles may read attendance records.
func (p *Policy) CanAudit(roles []string) bool {
	return p.AuditorRoles.Intersects(roles)
}

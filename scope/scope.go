/*
Package scope matches attendance groups against recipients' hierarchical
college/course/branch access.

PURPOSE:
  A day-end report only goes to a recipient whose scope covers the
  group. Scopes are tagged by role - Principal or HOD - and the matcher
  branches on the tag explicitly instead of inferring the role from
  which fields happen to be set.

MATCHING RULES:
  College: an empty college list means NO access, never "all colleges".
           Otherwise the group's college must be a member, or the group
           carries no college attribution at all.
  Course:  AllCourses short-circuits; otherwise explicit membership.
  Branch:  Principals may carry AllBranches. HODs may NOT - an HOD scope
           without an explicit branch list is misconfigured, matches
           nothing, and is logged once per scope rather than raised.
*/
package scope

import (
	"context"
	"log"
	"sync"

	"github.com/campus/attendance-engine/attendance"
)

// Role tags a scope variant.
type Role string

const (
	RolePrincipal Role = "Principal"
	RoleHOD       Role = "HOD"
)

// UserScope is one recipient's area of responsibility.
type UserScope struct {
	ID    string
	Email string
	Role  Role

	Colleges []string

	AllCourses bool
	Courses    []string

	// AllBranches is honored for Principals only.
	AllBranches bool
	Branches    []string
}

// IsMisconfigured reports the branchless-HOD case: there is no "all
// branches" shortcut for HODs.
func (s UserScope) IsMisconfigured() bool {
	return s.Role == RoleHOD && len(s.Branches) == 0
}

// Store lists the scoped users eligible for day-end reports.
type Store interface {
	ListScopedUsers(ctx context.Context, roles ...Role) ([]UserScope, error)
}

// Matcher filters groups against scopes. Safe for concurrent use.
type Matcher struct {
	mu       sync.Mutex
	reported map[string]bool // scope IDs already logged as misconfigured
}

// NewMatcher creates a matcher.
func NewMatcher() *Matcher {
	return &Matcher{reported: make(map[string]bool)}
}

// Matches reports whether the scope covers the group.
func (m *Matcher) Matches(group attendance.GroupKey, scope UserScope) bool {
	if scope.IsMisconfigured() {
		m.reportOnce(scope)
		return false
	}
	return m.matchesCollege(group, scope) &&
		m.matchesCourse(group, scope) &&
		m.matchesBranch(group, scope)
}

func (m *Matcher) matchesCollege(group attendance.GroupKey, scope UserScope) bool {
	// Empty list is no access, never a wildcard.
	if len(scope.Colleges) == 0 {
		return false
	}
	name, known := group.College.Name()
	if !known {
		// Unattributed groups are visible to anyone with college access.
		return true
	}
	return contains(scope.Colleges, name)
}

func (m *Matcher) matchesCourse(group attendance.GroupKey, scope UserScope) bool {
	if scope.AllCourses {
		return true
	}
	return contains(scope.Courses, group.Course)
}

func (m *Matcher) matchesBranch(group attendance.GroupKey, scope UserScope) bool {
	switch scope.Role {
	case RolePrincipal:
		if scope.AllBranches {
			return true
		}
		return contains(scope.Branches, group.Branch)
	case RoleHOD:
		// Misconfiguration was rejected in Matches; a reachable HOD
		// scope has an explicit branch list.
		return contains(scope.Branches, group.Branch)
	default:
		return false
	}
}

// FilterGroups returns the groups the scope covers. Pure filter, no side
// effects beyond the one-time misconfiguration log.
func (m *Matcher) FilterGroups(groups []attendance.Group, scope UserScope) []attendance.Group {
	var out []attendance.Group
	for _, g := range groups {
		if m.Matches(g.Key, scope) {
			out = append(out, g)
		}
	}
	return out
}

// ResolveRecipients returns the scopes that cover the group.
func (m *Matcher) ResolveRecipients(scopes []UserScope, group attendance.GroupKey) []UserScope {
	var out []UserScope
	for _, s := range scopes {
		if m.Matches(group, s) {
			out = append(out, s)
		}
	}
	return out
}

func (m *Matcher) reportOnce(scope UserScope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reported[scope.ID] {
		return
	}
	m.reported[scope.ID] = true
	log.Printf("[Scope] HOD scope %s (%s) has no branch list, matching nothing", scope.ID, scope.Email)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

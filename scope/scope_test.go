package scope

import (
	"testing"

	"github.com/campus/attendance-engine/attendance"
)

func groupKey(college, course, branch string) attendance.GroupKey {
	return attendance.GroupKey{
		College:  attendance.KnownCollege(college),
		Course:   course,
		Branch:   branch,
		Batch:    "2023",
		Year:     2,
		Semester: 4,
	}
}

func principal(colleges ...string) UserScope {
	return UserScope{
		ID: "p1", Email: "principal@campus.edu", Role: RolePrincipal,
		Colleges: colleges, AllCourses: true, AllBranches: true,
	}
}

// =============================================================================
// COLLEGE DIMENSION
// =============================================================================

func TestMatches_EmptyCollegeListIsNoAccess(t *testing.T) {
	// GIVEN: A principal with every wildcard set but no colleges
	m := NewMatcher()
	scope := principal()

	// THEN: Nothing matches - empty is never "all"
	if m.Matches(groupKey("Engineering", "BTech", "CSE"), scope) {
		t.Fatal("expected scope without colleges to match nothing")
	}
}

func TestMatches_CollegeMembership(t *testing.T) {
	m := NewMatcher()
	scope := principal("Engineering", "Pharmacy")

	if !m.Matches(groupKey("Pharmacy", "BPharm", "Pharm"), scope) {
		t.Fatal("expected listed college to match")
	}
	if m.Matches(groupKey("Law", "LLB", "Law"), scope) {
		t.Fatal("expected unlisted college not to match")
	}
}

func TestMatches_UnspecifiedCollegePassesCollegeCheck(t *testing.T) {
	// GIVEN: A group with no college attribution
	m := NewMatcher()
	group := attendance.GroupKey{
		College: attendance.UnspecifiedCollege(),
		Course:  "BTech", Branch: "CSE", Batch: "2023", Year: 2, Semester: 4,
	}

	// THEN: Any scope holding at least one college sees it
	if !m.Matches(group, principal("Engineering")) {
		t.Fatal("expected unattributed group to be visible")
	}
	// But an empty college list still sees nothing.
	if m.Matches(group, principal()) {
		t.Fatal("expected empty college list to hide unattributed group too")
	}
}

// =============================================================================
// COURSE AND BRANCH DIMENSIONS
// =============================================================================

func TestMatches_ExplicitCourseList(t *testing.T) {
	m := NewMatcher()
	scope := UserScope{
		ID: "h1", Email: "hod@campus.edu", Role: RoleHOD,
		Colleges: []string{"Engineering"},
		Courses:  []string{"BTech"},
		Branches: []string{"CSE", "ECE"},
	}

	if !m.Matches(groupKey("Engineering", "BTech", "CSE"), scope) {
		t.Fatal("expected listed course/branch to match")
	}
	if m.Matches(groupKey("Engineering", "MTech", "CSE"), scope) {
		t.Fatal("expected unlisted course not to match")
	}
	if m.Matches(groupKey("Engineering", "BTech", "MECH"), scope) {
		t.Fatal("expected unlisted branch not to match")
	}
}

func TestMatches_PrincipalAllBranches(t *testing.T) {
	m := NewMatcher()
	scope := UserScope{
		ID: "p2", Email: "dean@campus.edu", Role: RolePrincipal,
		Colleges: []string{"Engineering"}, AllCourses: true, AllBranches: true,
	}

	for _, branch := range []string{"CSE", "ECE", "MECH", "CIVIL"} {
		if !m.Matches(groupKey("Engineering", "BTech", branch), scope) {
			t.Fatalf("expected AllBranches principal to match branch %s", branch)
		}
	}
}

func TestMatches_BranchlessHODMatchesNothing(t *testing.T) {
	// GIVEN: An HOD scope with AllBranches set but no branch list - there
	// is no wildcard for HODs, this is a misconfiguration
	m := NewMatcher()
	scope := UserScope{
		ID: "h2", Email: "hod2@campus.edu", Role: RoleHOD,
		Colleges: []string{"Engineering"}, AllCourses: true, AllBranches: true,
	}

	if !scope.IsMisconfigured() {
		t.Fatal("expected branchless HOD scope to report misconfigured")
	}
	for _, branch := range []string{"CSE", "ECE"} {
		if m.Matches(groupKey("Engineering", "BTech", branch), scope) {
			t.Fatalf("expected branchless HOD to match nothing, matched %s", branch)
		}
	}
}

// =============================================================================
// FILTERING AND RECIPIENT RESOLUTION
// =============================================================================

func TestFilterGroups(t *testing.T) {
	m := NewMatcher()
	groups := []attendance.Group{
		{Key: groupKey("Engineering", "BTech", "CSE")},
		{Key: groupKey("Engineering", "BTech", "ECE")},
		{Key: groupKey("Pharmacy", "BPharm", "Pharm")},
	}
	scope := UserScope{
		ID: "h3", Email: "cse@campus.edu", Role: RoleHOD,
		Colleges: []string{"Engineering"}, AllCourses: true,
		Branches: []string{"CSE"},
	}

	out := m.FilterGroups(groups, scope)

	if len(out) != 1 {
		t.Fatalf("expected 1 group, got %d", len(out))
	}
	if out[0].Key.Branch != "CSE" {
		t.Fatalf("expected CSE group, got %s", out[0].Key.Branch)
	}
}

func TestResolveRecipients(t *testing.T) {
	m := NewMatcher()
	scopes := []UserScope{
		principal("Engineering"),
		{ID: "h4", Email: "ece@campus.edu", Role: RoleHOD,
			Colleges: []string{"Engineering"}, AllCourses: true, Branches: []string{"ECE"}},
		{ID: "h5", Email: "cse@campus.edu", Role: RoleHOD,
			Colleges: []string{"Engineering"}, AllCourses: true, Branches: []string{"CSE"}},
	}

	out := m.ResolveRecipients(scopes, groupKey("Engineering", "BTech", "CSE"))

	if len(out) != 2 {
		t.Fatalf("expected principal and CSE HOD, got %d recipients", len(out))
	}
}

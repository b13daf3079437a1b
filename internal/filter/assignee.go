package filter

import (
	"strconv"
	"strings"

	"github.com/worktrack/worktrack/pkg/model"
)

// AssignmentKind tells what an assignment filter value refers to.
type AssignmentKind int

const (
	// AssignUnconstrained places no constraint on the column.
	AssignUnconstrained AssignmentKind = iota
	// AssignUser refers to one user ("user-{id}").
	AssignUser
	// AssignRole refers to a role, a group of users ("role-{id}").
	AssignRole
	// AssignText is free text matched against a display name.
	AssignText
	// AssignInvalid never matches.
	AssignInvalid
)

const (
	userPrefix = "user-"
	rolePrefix = "role-"
)

// Assignment is a decoded assignment filter value.
type Assignment struct {
	Kind AssignmentKind
	ID   int64
	Text string
}

// ParseAssignment decodes the "user-{id}" / "role-{id}" encoding used by
// saved filters. An empty string or null is unconstrained; a prefixed value
// with a malformed id and an undefined value are invalid.
func ParseAssignment(v model.Value) Assignment {
	switch v.Kind() {
	case model.KindUndefined:
		return Assignment{Kind: AssignInvalid}
	case model.KindNull:
		return Assignment{Kind: AssignUnconstrained}
	}

	s, _ := v.ComparableString()
	switch {
	case s == "":
		return Assignment{Kind: AssignUnconstrained}
	case strings.HasPrefix(s, userPrefix):
		return parseTaggedID(AssignUser, s[len(userPrefix):])
	case strings.HasPrefix(s, rolePrefix):
		return parseTaggedID(AssignRole, s[len(rolePrefix):])
	}
	return Assignment{Kind: AssignText, Text: s}
}

// parseTaggedID accepts only a whole decimal id. "user-12x" is invalid
// rather than user 12.
func parseTaggedID(kind AssignmentKind, raw string) Assignment {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Assignment{Kind: AssignInvalid}
	}
	return Assignment{Kind: kind, ID: id}
}

// String encodes the assignment back into its filter value form.
func (a Assignment) String() string {
	switch a.Kind {
	case AssignUser:
		return userPrefix + strconv.FormatInt(a.ID, 10)
	case AssignRole:
		return rolePrefix + strconv.FormatInt(a.ID, 10)
	case AssignText:
		return a.Text
	}
	return ""
}

// EvaluateUserRoleCondition matches a column that references either a user or
// a role. textFallback is the display text compared for free-text values; nil
// means none is available.
func EvaluateUserRoleCondition(userID, roleID *int64, c model.Condition, textFallback *string) bool {
	return MatchUserRole(ParseAssignment(c.Value), c.Operator, userID, roleID, textFallback)
}

// MatchUserRole is EvaluateUserRoleCondition for an already decoded value.
func MatchUserRole(a Assignment, op model.Operator, userID, roleID *int64, textFallback *string) bool {
	switch a.Kind {
	case AssignUnconstrained:
		return true
	case AssignInvalid:
		return false
	case AssignUser:
		return applyNegation(op, sameID(userID, a.ID))
	case AssignRole:
		return applyNegation(op, sameID(roleID, a.ID))
	}

	if textFallback == nil {
		return false
	}
	want := strings.ToLower(a.Text)
	have := strings.ToLower(*textFallback)
	switch op {
	case model.OpEquals:
		return have == want
	case model.OpNotEquals:
		return have != want
	case model.OpContains:
		return strings.Contains(have, want)
	}
	return false
}

// EvaluateResponsibleAndQualityControl matches one filter column against two
// relations at once: the responsible person (user or role) and the quality
// controller (user only). A user id matches if it is either of them.
func EvaluateResponsibleAndQualityControl(responsibleID, responsibleRoleID, qualityControlID *int64, c model.Condition, responsibleText, qualityControlText *string) bool {
	return MatchResponsibleAndQualityControl(ParseAssignment(c.Value), c.Operator,
		responsibleID, responsibleRoleID, qualityControlID, responsibleText, qualityControlText)
}

// MatchResponsibleAndQualityControl is EvaluateResponsibleAndQualityControl
// for an already decoded value.
func MatchResponsibleAndQualityControl(a Assignment, op model.Operator, responsibleID, responsibleRoleID, qualityControlID *int64, responsibleText, qualityControlText *string) bool {
	switch a.Kind {
	case AssignUnconstrained:
		return true
	case AssignInvalid:
		return false
	case AssignUser:
		return applyNegation(op, sameID(responsibleID, a.ID) || sameID(qualityControlID, a.ID))
	case AssignRole:
		// Roles only apply to the responsible side.
		return applyNegation(op, sameID(responsibleRoleID, a.ID))
	}

	if responsibleText == nil && qualityControlText == nil {
		return false
	}
	want := strings.ToLower(a.Text)
	texts := make([]string, 0, 2)
	for _, t := range []*string{responsibleText, qualityControlText} {
		if t != nil {
			texts = append(texts, strings.ToLower(*t))
		}
	}

	switch op {
	case model.OpEquals:
		for _, t := range texts {
			if t == want {
				return true
			}
		}
		return false
	case model.OpContains:
		for _, t := range texts {
			if strings.Contains(t, want) {
				return true
			}
		}
		return false
	case model.OpNotEquals:
		for _, t := range texts {
			if t == want {
				return false
			}
		}
		return true
	}
	return false
}

func sameID(ref *int64, id int64) bool {
	return ref != nil && *ref == id
}

func applyNegation(op model.Operator, match bool) bool {
	if op == model.OpNotEquals {
		return !match
	}
	return match
}

package domain

import (
	"fmt"
	"math"
	"strings"

	"github.com/bwmarrin/snowflake"
)

const (
	RoleOwner      = "OWNER"
	RoleSupervisor = "SUPERVISOR"
	RoleEmployee   = "EMPLOYEE"
)

// CanRate reports whether rater may rate target. Owners may rate anyone in
// their organization; supervisors only the employees assigned to them.
func CanRate(rater, target Member) bool {
	switch rater.Role {
	case RoleOwner:
		return true
	case RoleSupervisor:
		return target.Role == RoleEmployee &&
			target.SupervisorID != nil &&
			*target.SupervisorID == rater.UserID
	default:
		return false
	}
}

// CanModify checks that rating belongs to orgID and that rater is its owner
// or the supervisor who wrote it.
func CanModify(rater Member, rating Rating, orgID snowflake.ID) error {
	if rating.OrgID != orgID {
		return ErrForbidden
	}
	if rater.Role == RoleOwner || rating.SupervisorID == rater.UserID {
		return nil
	}
	return ErrNotAuthorized
}

// MaxScore bounds a single score and the overall score. Score columns are
// 32-bit integers.
const MaxScore = math.MaxInt32

// TotalScore is the sum of all criteria scores. A negative score or a sum
// outside [0, MaxScore] is ErrInvalidScore.
func TotalScore(scores []CriteriaScore) (int, error) {
	total := 0
	for _, s := range scores {
		if s.Score < 0 || s.Score > MaxScore-total {
			return 0, ErrInvalidScore
		}
		total += s.Score
	}
	return total, nil
}

// InvalidCriteriaError lists criteria ids that are unknown, belong to another
// organization, or appear more than once.
type InvalidCriteriaError struct {
	IDs []string
}

func (e *InvalidCriteriaError) Error() string {
	return fmt.Sprintf("invalid criteria: %s", strings.Join(e.IDs, ", "))
}

// ValidateCriteria checks requested criteria ids against the ids known to the
// organization. Order of the offending ids follows the request.
func ValidateCriteria(requested []string, known map[snowflake.ID]struct{}) ([]snowflake.ID, error) {
	ids := make([]snowflake.ID, 0, len(requested))
	seen := make(map[snowflake.ID]struct{}, len(requested))
	var invalid []string
	for _, raw := range requested {
		id, err := snowflake.ParseString(strings.TrimSpace(raw))
		if err != nil {
			invalid = append(invalid, raw)
			continue
		}
		if _, ok := known[id]; !ok {
			invalid = append(invalid, raw)
			continue
		}
		if _, dup := seen[id]; dup {
			invalid = append(invalid, raw)
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(invalid) > 0 {
		return nil, &InvalidCriteriaError{IDs: invalid}
	}
	return ids, nil
}

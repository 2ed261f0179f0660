package domain

import (
	"math"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(id snowflake.ID) *snowflake.ID { return &id }

func TestCanRate(t *testing.T) {
	owner := Member{UserID: 1, Role: RoleOwner}
	supervisor := Member{UserID: 2, Role: RoleSupervisor}
	other := Member{UserID: 3, Role: RoleSupervisor}

	assigned := Member{UserID: 10, Role: RoleEmployee, SupervisorID: ptr(2)}
	unassigned := Member{UserID: 11, Role: RoleEmployee}

	tests := []struct {
		name   string
		rater  Member
		target Member
		want   bool
	}{
		{"owner rates anyone", owner, unassigned, true},
		{"owner rates supervisor", owner, other, true},
		{"supervisor rates assigned employee", supervisor, assigned, true},
		{"supervisor skips unassigned", supervisor, unassigned, false},
		{"supervisor skips other supervisors team", other, assigned, false},
		{"supervisor cannot rate supervisor", supervisor, Member{UserID: 3, Role: RoleSupervisor, SupervisorID: ptr(2)}, false},
		{"employee never rates", assigned, unassigned, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanRate(tc.rater, tc.target))
		})
	}
}

func TestCanModify(t *testing.T) {
	rating := Rating{ID: 900, OrgID: 100, SupervisorID: 2}

	assert.NoError(t, CanModify(Member{UserID: 1, Role: RoleOwner}, rating, 100))
	assert.NoError(t, CanModify(Member{UserID: 2, Role: RoleSupervisor}, rating, 100))
	assert.ErrorIs(t, CanModify(Member{UserID: 3, Role: RoleSupervisor}, rating, 100), ErrNotAuthorized)
	assert.ErrorIs(t, CanModify(Member{UserID: 1, Role: RoleOwner}, rating, 200), ErrForbidden)
}

func TestTotalScore(t *testing.T) {
	total, err := TotalScore(nil)
	require.NoError(t, err)
	assert.Zero(t, total)

	total, err = TotalScore([]CriteriaScore{{Score: 4}, {Score: 5}, {Score: 3}})
	require.NoError(t, err)
	assert.Equal(t, 12, total)

	total, err = TotalScore([]CriteriaScore{{Score: MaxScore - 1}, {Score: 1}})
	require.NoError(t, err)
	assert.Equal(t, MaxScore, total)
}

func TestTotalScore_OutOfRange(t *testing.T) {
	for name, scores := range map[string][]CriteriaScore{
		"negative":         {{Score: 3}, {Score: -1}},
		"single too big":   {{Score: MaxScore + 1}},
		"sum too big":      {{Score: MaxScore}, {Score: 1}},
		"int64 wraparound": {{Score: math.MaxInt64}, {Score: 1}},
	} {
		_, err := TotalScore(scores)
		assert.ErrorIs(t, err, ErrInvalidScore, name)
	}
}

func TestValidateCriteria(t *testing.T) {
	known := map[snowflake.ID]struct{}{500: {}, 501: {}}

	ids, err := ValidateCriteria([]string{"500", " 501 "}, known)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{500, 501}, ids)

	_, err = ValidateCriteria([]string{"500", "999", "abc", "500"}, known)
	var invalid *InvalidCriteriaError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, []string{"999", "abc", "500"}, invalid.IDs)
	assert.Contains(t, err.Error(), "999")
}

func TestPersonDisplayName(t *testing.T) {
	assert.Equal(t, "Jane Doe", Person{FirstName: "Jane", LastName: "Doe"}.DisplayName())
	assert.Equal(t, "Jane", Person{FirstName: "Jane"}.DisplayName())
	assert.Equal(t, "jane@example.com", Person{Email: "jane@example.com"}.DisplayName())
}

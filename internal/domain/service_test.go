package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanOpenIncident(t *testing.T) {
	tests := []struct {
		name string
		from ServiceStatus
		to   ServiceStatus
		want bool
	}{
		{"operational can degrade", ServiceStatusOperational, ServiceStatusDegraded, true},
		{"operational can go partial", ServiceStatusOperational, ServiceStatusPartial, true},
		{"operational can go major", ServiceStatusOperational, ServiceStatusMajor, true},
		{"operational cannot stay operational", ServiceStatusOperational, ServiceStatusOperational, false},
		{"operational cannot enter maintenance via incident", ServiceStatusOperational, ServiceStatusMaintenance, false},
		{"degraded can worsen to partial", ServiceStatusDegraded, ServiceStatusPartial, true},
		{"degraded can worsen to major", ServiceStatusDegraded, ServiceStatusMajor, true},
		{"degraded cannot improve", ServiceStatusDegraded, ServiceStatusOperational, false},
		{"partial can worsen to major", ServiceStatusPartial, ServiceStatusMajor, true},
		{"partial cannot go degraded", ServiceStatusPartial, ServiceStatusDegraded, false},
		{"major is terminal", ServiceStatusMajor, ServiceStatusDegraded, false},
		{"maintenance is terminal", ServiceStatusMaintenance, ServiceStatusMajor, false},
		{"unknown from state", ServiceStatus("bogus"), ServiceStatusMajor, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanOpenIncident(tt.from, tt.to))
		})
	}
}

func TestValidNextStates(t *testing.T) {
	assert.ElementsMatch(t,
		[]ServiceStatus{ServiceStatusDegraded, ServiceStatusPartial, ServiceStatusMajor},
		ValidNextStates(ServiceStatusOperational),
	)
	assert.Empty(t, ValidNextStates(ServiceStatusMajor))
	assert.Empty(t, ValidNextStates(ServiceStatusMaintenance))
}

func TestServiceStatusIsValid(t *testing.T) {
	for _, s := range []ServiceStatus{
		ServiceStatusOperational,
		ServiceStatusDegraded,
		ServiceStatusPartial,
		ServiceStatusMajor,
		ServiceStatusMaintenance,
	} {
		assert.True(t, s.IsValid(), s)
	}
	assert.False(t, ServiceStatus("down").IsValid())
}

func TestServiceIsPublic(t *testing.T) {
	s := Service{IsActive: true, IsDeleted: false}
	assert.True(t, s.IsPublic())

	s.IsActive = false
	assert.False(t, s.IsPublic())

	s.IsActive = true
	s.IsDeleted = true
	assert.False(t, s.IsPublic())
}

func TestRoleHasPermission(t *testing.T) {
	assert.True(t, RoleAdmin.HasPermission(RoleAdmin))
	assert.True(t, RoleAdmin.HasPermission(RoleMember))
	assert.True(t, RoleMember.HasPermission(RoleMember))
	assert.False(t, RoleMember.HasPermission(RoleAdmin))
	assert.False(t, Role("ghost").HasPermission(RoleMember))
}

func TestIncidentStatusIsResolved(t *testing.T) {
	assert.True(t, IncidentStatusResolved.IsResolved())
	assert.False(t, IncidentStatusInvestigating.IsResolved())
	assert.False(t, IncidentStatusMonitoring.IsResolved())
}

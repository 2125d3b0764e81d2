package booking

import "github.com/avelora/clinic-scheduler/internal/model"

// Role is the caller's access level as carried in the token's role claim.
type Role string

const (
	RolePatient Role = "patient"
	RoleStaff   Role = "staff"
	RoleAdmin   Role = "admin"
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RolePatient, RoleStaff, RoleAdmin:
		return Role(s), true
	}
	return "", false
}

// Caller is the authenticated identity making a request. ID is the token's
// subject claim.
type Caller struct {
	ID   string
	Role Role
}

// ScopeKind narrows which appointment records a caller may read.
type ScopeKind int

const (
	ScopeAll ScopeKind = iota
	ScopeByPatient
	ScopeByProvider
)

// Scope is the read filter the store applies verbatim; no further filtering
// happens above it.
type Scope struct {
	Kind ScopeKind
	ID   string
}

// capability is one row of the role capability table. New roles are
// additions here, not conditionals scattered through the service.
type capability struct {
	readScope    ScopeKind
	create       bool
	updateStatus bool
	deleteAny    bool
	deleteOwn    bool
}

// Gate decides, per role, which operations are permitted and with which
// read scope. A failed check is always Forbidden, never an empty result.
type Gate struct {
	table map[Role]capability
}

func NewGate() Gate {
	return Gate{table: map[Role]capability{
		RoleAdmin:   {readScope: ScopeAll, create: true, updateStatus: true, deleteAny: true},
		RoleStaff:   {readScope: ScopeByProvider, create: true, updateStatus: true, deleteAny: true},
		RolePatient: {readScope: ScopeByPatient, create: true, deleteOwn: true},
	}}
}

func (g Gate) CanCreate(c Caller) error {
	entry, ok := g.table[c.Role]
	if !ok || !entry.create {
		return ErrForbidden
	}
	return nil
}

func (g Gate) ReadScope(c Caller) (Scope, error) {
	entry, ok := g.table[c.Role]
	if !ok {
		return Scope{}, ErrForbidden
	}
	switch entry.readScope {
	case ScopeByPatient:
		return Scope{Kind: ScopeByPatient, ID: c.ID}, nil
	case ScopeByProvider:
		return Scope{Kind: ScopeByProvider, ID: c.ID}, nil
	default:
		return Scope{Kind: ScopeAll}, nil
	}
}

func (g Gate) CanUpdateStatus(c Caller) error {
	entry, ok := g.table[c.Role]
	if !ok || !entry.updateStatus {
		return ErrForbidden
	}
	return nil
}

// CanDelete checks delete rights against a fetched record. A patient
// deleting another patient's appointment gets NotFound rather than
// Forbidden so the record's existence is not confirmed.
func (g Gate) CanDelete(c Caller, appt model.Appointment) error {
	entry, ok := g.table[c.Role]
	if !ok {
		return ErrForbidden
	}
	if entry.deleteAny {
		return nil
	}
	if entry.deleteOwn {
		if appt.PatientID == c.ID {
			return nil
		}
		return ErrNotFound
	}
	return ErrForbidden
}

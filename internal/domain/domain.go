package domain

import (
	"github.com/brightpath/iep-backend/internal/domain/audit"
	"github.com/brightpath/iep-backend/internal/domain/iep"
	"github.com/brightpath/iep-backend/internal/domain/students"
)

const (
	IEPStatusDraft           = iep.StatusDraft
	IEPStatusPendingApproval = iep.StatusPendingApproval
	IEPStatusApproved        = iep.StatusApproved
	IEPStatusRejected        = iep.StatusRejected

	ApprovalPending    = iep.ApprovalPending
	ApprovalApproved   = iep.ApprovalApproved
	ApprovalRejected   = iep.ApprovalRejected
	ApprovalSuperseded = iep.ApprovalSuperseded

	AuditActionVersionCreated = audit.ActionVersionCreated
	AuditActionSubmitted      = audit.ActionSubmitted
	AuditActionApproved       = audit.ActionApproved
	AuditActionRejected       = audit.ActionRejected
	AuditActionSuperseded     = audit.ActionSuperseded
	AuditActionCreated        = audit.ActionCreated
	AuditActionUpdated        = audit.ActionUpdated
	AuditActionDeleted        = audit.ActionDeleted
)

const (
	PresentLevelDraft = iep.PresentLevelDraft
	PresentLevelFinal = iep.PresentLevelFinal
)

// Constraint registrations the conflict classifier is built from.
var (
	IEPVersionConstraints          = iep.VersionConstraints
	IEPNaturalKeys                 = iep.NaturalKeys
	PresentLevelVersionConstraints = iep.PresentLevelVersionConstraints
)

type Student = students.Student
type StudentDocument = students.StudentDocument

type IEP = iep.IEP
type PresentLevelAssessment = iep.PresentLevelAssessment
type ApprovalRequest = iep.ApprovalRequest

type AuditEvent = audit.AuditEvent

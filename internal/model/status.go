package model

// Status vocabularies are typed strings and stored as varchar. Some mobile
// clients and webhook consumers still speak the legacy numeric codes, so each
// vocabulary carries a Code()/FromCode pair used only at that boundary.

type CheckpointStatus string

const (
	CheckpointPending     CheckpointStatus = "pending"
	CheckpointApproved    CheckpointStatus = "approved"
	CheckpointRejected    CheckpointStatus = "rejected"
	CheckpointConditional CheckpointStatus = "conditionally_approved"
)

func (s CheckpointStatus) Valid() bool {
	switch s {
	case CheckpointPending, CheckpointApproved, CheckpointRejected, CheckpointConditional:
		return true
	}
	return false
}

// Final reports whether the checkpoint has been reviewed. A final checkpoint
// never goes back to pending; rework happens on a reinspection checkpoint.
func (s CheckpointStatus) Final() bool {
	return s == CheckpointApproved || s == CheckpointRejected || s == CheckpointConditional
}

// Passed reports whether the verdict satisfies a progress gate.
func (s CheckpointStatus) Passed() bool {
	return s == CheckpointApproved || s == CheckpointConditional
}

func (s CheckpointStatus) Code() int {
	switch s {
	case CheckpointApproved:
		return 1
	case CheckpointRejected:
		return 2
	case CheckpointConditional:
		return 3
	default:
		return 0
	}
}

func CheckpointStatusFromCode(code int) CheckpointStatus {
	switch code {
	case 1:
		return CheckpointApproved
	case 2:
		return CheckpointRejected
	case 3:
		return CheckpointConditional
	default:
		return CheckpointPending
	}
}

type ItemStatus string

const (
	ItemPending ItemStatus = "pending"
	ItemPass    ItemStatus = "pass"
	ItemFail    ItemStatus = "fail"
	ItemNA      ItemStatus = "na"
)

func (s ItemStatus) Valid() bool {
	switch s {
	case ItemPending, ItemPass, ItemFail, ItemNA:
		return true
	}
	return false
}

func (s ItemStatus) Code() int {
	switch s {
	case ItemPass:
		return 1
	case ItemFail:
		return 2
	case ItemNA:
		return 3
	default:
		return 0
	}
}

func ItemStatusFromCode(code int) ItemStatus {
	switch code {
	case 1:
		return ItemPass
	case 2:
		return ItemFail
	case 3:
		return ItemNA
	default:
		return ItemPending
	}
}

type IssueStatus string

const (
	IssueOpen       IssueStatus = "open"
	IssueInProgress IssueStatus = "in_progress"
	IssueResolved   IssueStatus = "resolved"
	IssueClosed     IssueStatus = "closed"
)

func (s IssueStatus) Valid() bool {
	return s.rank() > 0
}

func (s IssueStatus) rank() int {
	switch s {
	case IssueOpen:
		return 1
	case IssueInProgress:
		return 2
	case IssueResolved:
		return 3
	case IssueClosed:
		return 4
	}
	return 0
}

// CanTransitionTo enforces the forward-only lifecycle. Skipping ahead is
// allowed (open straight to closed), going back or staying put is not.
func (s IssueStatus) CanTransitionTo(next IssueStatus) bool {
	return s.rank() > 0 && next.rank() > s.rank()
}

func (s IssueStatus) Terminal() bool {
	return s == IssueResolved || s == IssueClosed
}

func (s IssueStatus) Code() int {
	return s.rank() - 1
}

func IssueStatusFromCode(code int) IssueStatus {
	switch code {
	case 1:
		return IssueInProgress
	case 2:
		return IssueResolved
	case 3:
		return IssueClosed
	default:
		return IssueOpen
	}
}

type IssueType string

const (
	IssueDefect         IssueType = "defect"
	IssueNonConformance IssueType = "non_conformance"
	IssueObservation    IssueType = "observation"
)

func (t IssueType) Valid() bool {
	switch t {
	case IssueDefect, IssueNonConformance, IssueObservation:
		return true
	}
	return false
}

type IssueSeverity string

const (
	SeverityCritical IssueSeverity = "critical"
	SeverityMajor    IssueSeverity = "major"
	SeverityMinor    IssueSeverity = "minor"
)

func (s IssueSeverity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityMajor, SeverityMinor:
		return true
	}
	return false
}

type ProgressStatus string

const (
	ProgressNotStarted ProgressStatus = "not_started"
	ProgressInProgress ProgressStatus = "in_progress"
	ProgressCompleted  ProgressStatus = "completed"
)

func (s ProgressStatus) Valid() bool {
	switch s {
	case ProgressNotStarted, ProgressInProgress, ProgressCompleted:
		return true
	}
	return false
}

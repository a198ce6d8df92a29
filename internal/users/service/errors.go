package service

import (
	"fmt"

	id "registrar/pkg/domain"
)

// PartialCreateError reports a create that minted a principal but failed
// to insert the record row. The principal is left in place; the subject
// identifier is the handle an operator needs to reconcile.
type PartialCreateError struct {
	SubjectID id.SubjectID
	Cause     error
}

func (e *PartialCreateError) Error() string {
	return fmt.Sprintf("principal %s created but record insert failed: %v", e.SubjectID, e.Cause)
}

func (e *PartialCreateError) Unwrap() error { return e.Cause }

// MirrorLagError reports an update whose record write succeeded but whose
// directory attribute mirror failed. The row is retained; re-issuing the
// same update reconciles the mirror.
type MirrorLagError struct {
	SubjectID id.SubjectID
	Cause     error
}

func (e *MirrorLagError) Error() string {
	return fmt.Sprintf("record for %s updated but attribute mirror failed: %v", e.SubjectID, e.Cause)
}

func (e *MirrorLagError) Unwrap() error { return e.Cause }

// PartialDeleteError reports a delete that removed the record row but
// failed to delete the principal. The remaining artifact is a credential
// with no domain data.
type PartialDeleteError struct {
	SubjectID id.SubjectID
	Cause     error
}

func (e *PartialDeleteError) Error() string {
	return fmt.Sprintf("record for %s deleted but principal removal failed: %v", e.SubjectID, e.Cause)
}

func (e *PartialDeleteError) Unwrap() error { return e.Cause }

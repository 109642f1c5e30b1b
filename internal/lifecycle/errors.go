package lifecycle

import (
	"fmt"
	"strings"

	"linky/internal/model"
)

// GuardViolation reports an action that is illegal for the request's current state.
type GuardViolation struct {
	Action        Action
	Status        model.RequestStatus
	PaymentStatus model.PaymentStatus
	Reason        string
}

func (e *GuardViolation) Error() string {
	return fmt.Sprintf("%s not allowed (status=%s, payment=%s): %s", e.Action, e.Status, e.PaymentStatus, e.Reason)
}

// ValidationError lists every invalid field of a rejected input.
type ValidationError struct {
	Fields []model.FieldError
}

func (e *ValidationError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Field + " (" + f.Reason + ")"
	}
	return "invalid fields: " + strings.Join(names, ", ")
}

func violation(action Action, st State, reason string) *GuardViolation {
	return &GuardViolation{
		Action:        action,
		Status:        st.Status,
		PaymentStatus: st.PaymentStatus,
		Reason:        reason,
	}
}

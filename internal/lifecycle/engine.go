// Package lifecycle decides which request transitions are legal and what they cause.
// It performs no I/O: callers load state, ask for a Transition, persist it and
// dispatch its effects.
package lifecycle

import (
	"fmt"
	"slices"
	"time"

	"linky/internal/model"
	"linky/internal/notify"

	"github.com/google/uuid"
)

// Action is a named operation an actor can request on a request.
type Action string

const (
	ActionScout        Action = "scout"
	ActionMarkNotFound Action = "mark-not-found"
	ActionAcknowledge  Action = "ack-not-found"
	ActionSaveOffer    Action = "save-offer"
	ActionPay50        Action = "pay50"
	ActionPayRemaining Action = "pay50-rest"
	ActionDecline      Action = "decline"
	ActionCancel       Action = "cancel"
	ActionAdvance      Action = "advance-status"
	ActionExpire       Action = "expire"
)

// Effect is a notification a successful transition must emit.
type Effect struct {
	Event    notify.EventName
	Audience notify.Audience
	// Payment is set on payment events to select the PARTIAL or FULL variant.
	Payment model.PaymentStatus
}

// State is the part of a request the engine reasons about.
type State struct {
	Status         model.RequestStatus
	PaymentStatus  model.PaymentStatus
	OwnerID        uuid.UUID
	HasOffer       bool
	OfferUpdatedAt time.Time
}

// StateOf extracts the engine state from a loaded request.
func StateOf(r *model.Request) State {
	st := State{
		Status:        r.Status,
		PaymentStatus: r.PaymentStatus,
		OwnerID:       r.UserID,
	}
	if r.Offer != nil {
		st.HasOffer = true
		st.OfferUpdatedAt = r.Offer.UpdatedAt
	}
	return st
}

// Command is a request to perform Action as Actor.
type Command struct {
	Action Action
	Actor  model.Actor
	// Target optionally pins the status an advance must reach.
	Target model.RequestStatus
}

// Transition is an approved state change.
type Transition struct {
	Action      Action
	From        model.RequestStatus
	To          model.RequestStatus
	PaymentFrom model.PaymentStatus
	PaymentTo   model.PaymentStatus
	Effects     []Effect
}

// Patch returns the columns the transition writes.
func (t Transition) Patch() model.RequestPatch {
	return model.RequestPatch{
		Status:        t.To,
		PaymentStatus: t.PaymentTo,
	}
}

// rule is one row of the transition table. reason explains a status mismatch,
// paymentReason a payment mismatch.
type rule struct {
	action        Action
	role          model.Role
	ownerOnly     bool
	from          []model.RequestStatus
	payment       model.PaymentStatus
	needOffer     bool
	to            model.RequestStatus
	paymentTo     model.PaymentStatus
	guard         func(e *Engine, st State, now time.Time) string
	reason        string
	paymentReason string
	effects       []Effect
}

func userNotice(ev notify.EventName) Effect {
	return Effect{Event: ev, Audience: notify.AudienceUser}
}

func paidNotices(p model.PaymentStatus) []Effect {
	return []Effect{
		{Event: notify.EventUserPaymentReceived, Audience: notify.AudienceUser, Payment: p},
		{Event: notify.EventAdminPaymentReceived, Audience: notify.AudienceAdmin, Payment: p},
	}
}

// rules is the complete transition table. Anything not listed is a GuardViolation.
var rules = []rule{
	{
		action: ActionScout, role: model.RoleAdmin,
		from: []model.RequestStatus{model.StatusNew},
		to:   model.StatusScouting,
	},
	{
		action: ActionMarkNotFound, role: model.RoleAdmin,
		from:    []model.RequestStatus{model.StatusNew, model.StatusScouting},
		to:      model.StatusNotFound,
		effects: []Effect{userNotice(notify.EventUserNotFound)},
	},
	{
		action: ActionAcknowledge, role: model.RoleUser, ownerOnly: true,
		from: []model.RequestStatus{model.StatusNotFound},
		to:   model.StatusCancelled,
	},
	{
		action: ActionSaveOffer, role: model.RoleAdmin,
		from:    []model.RequestStatus{model.StatusNew, model.StatusScouting, model.StatusOffered},
		to:      model.StatusOffered,
		reason:  "offer can no longer be edited",
		effects: []Effect{userNotice(notify.EventUserOfferCreated)},
	},
	{
		action: ActionPay50, role: model.RoleUser, ownerOnly: true,
		from:      []model.RequestStatus{model.StatusOffered},
		payment:   model.PaymentNone,
		needOffer: true,
		to:        model.StatusPaidPartially,
		paymentTo: model.PaymentPartial,
		effects:   paidNotices(model.PaymentPartial),
	},
	{
		action: ActionDecline, role: model.RoleUser, ownerOnly: true,
		from: []model.RequestStatus{model.StatusOffered},
		to:   model.StatusDeclined,
	},
	{
		action: ActionCancel, role: model.RoleUser, ownerOnly: true,
		from: []model.RequestStatus{
			model.StatusNew, model.StatusScouting, model.StatusOffered, model.StatusAccepted,
			model.StatusPaidPartially, model.StatusInProgress, model.StatusArrived,
		},
		to:     model.StatusCancelled,
		reason: "cannot cancel at this stage",
	},
	{
		action: ActionAdvance, role: model.RoleAdmin,
		from:    []model.RequestStatus{model.StatusAccepted, model.StatusPaidPartially},
		to:      model.StatusInProgress,
		effects: []Effect{userNotice(notify.EventUserInProgress)},
	},
	{
		action: ActionAdvance, role: model.RoleAdmin,
		from:    []model.RequestStatus{model.StatusInProgress},
		to:      model.StatusArrived,
		effects: []Effect{userNotice(notify.EventUserArrivedPayRemaining)},
	},
	{
		action: ActionAdvance, role: model.RoleAdmin,
		from:          []model.RequestStatus{model.StatusArrived},
		payment:       model.PaymentFull,
		to:            model.StatusCompleted,
		paymentReason: "waiting for final payment",
		effects:       []Effect{userNotice(notify.EventUserDelivered)},
	},
	{
		action: ActionPayRemaining, role: model.RoleUser, ownerOnly: true,
		from:      []model.RequestStatus{model.StatusArrived},
		payment:   model.PaymentPartial,
		needOffer: true,
		paymentTo: model.PaymentFull,
		reason:    "not arrived yet",
		effects:   paidNotices(model.PaymentFull),
	},
	{
		action: ActionExpire, role: model.RoleSystem,
		from:      []model.RequestStatus{model.StatusOffered},
		needOffer: true,
		to:        model.StatusExpired,
		guard: func(e *Engine, st State, now time.Time) string {
			if e.OfferFresh(st.OfferUpdatedAt, now) {
				return "offer is still fresh"
			}
			return ""
		},
	},
}

// Config tunes the time-based rules.
type Config struct {
	// OfferValidity is how long an offer price is honoured.
	OfferValidity time.Duration
	// RepeatCooldown is the window in which an expired repeat is deduplicated.
	RepeatCooldown time.Duration
}

// DefaultConfig returns a 7-day offer validity and a 30-minute repeat cooldown.
func DefaultConfig() Config {
	return Config{
		OfferValidity:  7 * 24 * time.Hour,
		RepeatCooldown: 30 * time.Minute,
	}
}

// Engine evaluates commands against the transition table.
type Engine struct {
	cfg Config
}

// New creates an engine. Zero durations fall back to DefaultConfig values.
func New(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.OfferValidity <= 0 {
		cfg.OfferValidity = def.OfferValidity
	}
	if cfg.RepeatCooldown <= 0 {
		cfg.RepeatCooldown = def.RepeatCooldown
	}
	return &Engine{cfg: cfg}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Decide validates cmd against st and returns the transition to persist.
// It returns model.ErrForbidden for a wrong role or non-owner, and a
// *GuardViolation when the table has no matching row.
func (e *Engine) Decide(cmd Command, st State, now time.Time) (Transition, error) {
	candidates := rulesFor(cmd.Action)
	if len(candidates) == 0 {
		return Transition{}, violation(cmd.Action, st, "unknown action")
	}

	// All rows of one action share the same actor requirements.
	head := candidates[0]
	if cmd.Actor.Role != head.role {
		return Transition{}, fmt.Errorf("%s requires role %s: %w", cmd.Action, head.role, model.ErrForbidden)
	}
	if head.ownerOnly && cmd.Actor.ID != st.OwnerID {
		return Transition{}, fmt.Errorf("%s is owner-only: %w", cmd.Action, model.ErrForbidden)
	}

	var r *rule
	for i := range candidates {
		if slices.Contains(candidates[i].from, st.Status) {
			r = &candidates[i]
			break
		}
	}
	if r == nil {
		reason := head.reason
		if reason == "" {
			reason = "not allowed for this request status"
		}
		return Transition{}, violation(cmd.Action, st, reason)
	}

	if r.payment != "" && st.PaymentStatus != r.payment {
		reason := r.paymentReason
		if reason == "" {
			reason = fmt.Sprintf("payment status must be %s", r.payment)
		}
		return Transition{}, violation(cmd.Action, st, reason)
	}
	if r.needOffer && !st.HasOffer {
		return Transition{}, violation(cmd.Action, st, "no offer attached")
	}
	if r.guard != nil {
		if reason := r.guard(e, st, now); reason != "" {
			return Transition{}, violation(cmd.Action, st, reason)
		}
	}

	to := r.to
	if to == "" {
		to = st.Status
	}
	if cmd.Target != "" && cmd.Target != to {
		return Transition{}, violation(cmd.Action, st, fmt.Sprintf("invalid transition to %s", cmd.Target))
	}

	paymentTo := r.paymentTo
	if paymentTo == "" {
		paymentTo = st.PaymentStatus
	}

	return Transition{
		Action:      cmd.Action,
		From:        st.Status,
		To:          to,
		PaymentFrom: st.PaymentStatus,
		PaymentTo:   paymentTo,
		Effects:     slices.Clone(r.effects),
	}, nil
}

// Allowed lists the actions role could perform from st, ignoring ownership.
func (e *Engine) Allowed(role model.Role, st State, now time.Time) []Action {
	var out []Action
	seen := map[Action]bool{}
	for _, r := range rules {
		if r.role != role || seen[r.action] {
			continue
		}
		actor := model.Actor{Role: role, ID: st.OwnerID}
		if _, err := e.Decide(Command{Action: r.action, Actor: actor}, st, now); err == nil {
			seen[r.action] = true
			out = append(out, r.action)
		}
	}
	return out
}

func rulesFor(action Action) []rule {
	var out []rule
	for _, r := range rules {
		if r.action == action {
			out = append(out, r)
		}
	}
	return out
}

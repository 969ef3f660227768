package requests

import (
	"fmt"

	"github.com/google/uuid"

	"design-desk/request-portal/request-portal-backend/internal/apierrors"
	"design-desk/request-portal/request-portal-backend/internal/identity"
	"design-desk/request-portal/request-portal-backend/pkg/workflows"
)

// Action is a workflow verb. CompleteDesign and ProcessApproval each split
// into two actions so that every action has exactly one target status.
type Action string

const (
	ActionCreate              Action = "create"
	ActionStartDesign         Action = "start_design"
	ActionReturnForCorrection Action = "return_for_correction"
	ActionCompleteDesign      Action = "complete_design"
	ActionSubmitForApproval   Action = "submit_for_approval"
	ActionApprove             Action = "approve"
	ActionReject              Action = "reject"
	ActionResubmit            Action = "resubmit"
	ActionResubmitForApproval Action = "resubmit_for_approval"
)

// Actions lists every action in table order.
var Actions = []Action{
	ActionCreate,
	ActionStartDesign,
	ActionReturnForCorrection,
	ActionCompleteDesign,
	ActionSubmitForApproval,
	ActionApprove,
	ActionReject,
	ActionResubmit,
	ActionResubmitForApproval,
}

// transitions is the only source of legality. Submitted appears solely as the
// source of Create; nothing transitions into it.
var transitions = workflows.NewStateMachine[Status, Action]().
	Allow(StatusSubmitted, ActionCreate, StatusDesignerReview).
	Allow(StatusDesignerReview, ActionStartDesign, StatusDesignInProgress).
	Allow(StatusDesignerReview, ActionReturnForCorrection, StatusPendingCorrection).
	Allow(StatusDesignInProgress, ActionReturnForCorrection, StatusPendingCorrection).
	Allow(StatusDesignInProgress, ActionCompleteDesign, StatusCompleted).
	Allow(StatusDesignInProgress, ActionSubmitForApproval, StatusPendingApproval).
	Allow(StatusPendingRedesign, ActionReturnForCorrection, StatusPendingCorrection).
	Allow(StatusPendingRedesign, ActionCompleteDesign, StatusCompleted).
	Allow(StatusPendingRedesign, ActionSubmitForApproval, StatusPendingApproval).
	Allow(StatusPendingRedesign, ActionResubmitForApproval, StatusPendingApproval).
	Allow(StatusPendingApproval, ActionApprove, StatusCompleted).
	Allow(StatusPendingApproval, ActionReject, StatusPendingRedesign).
	Allow(StatusPendingCorrection, ActionResubmit, StatusDesignerReview)

// NextStatus returns the target of action from status.
func NextStatus(from Status, action Action) (Status, bool) {
	return transitions.Next(from, action)
}

// LegalEdge reports whether some action moves from one status to the other.
func LegalEdge(from, to Status) bool {
	return transitions.CanTransition(from, to)
}

// ActionsFrom returns the actions legal in status, regardless of actor.
func ActionsFrom(status Status) []Action {
	return transitions.GetAllowedActions(status)
}

// Party is the request-scoped identity an action requires.
type Party int

const (
	PartyRequester Party = iota
	PartyDesigner
	PartyApprover
)

func (p Party) String() string {
	switch p {
	case PartyRequester:
		return "requester"
	case PartyDesigner:
		return "assigned designer"
	default:
		return "assigned approver"
	}
}

type actorRule struct {
	party Party
	role  identity.Role
	// adminOverride lets an Admin act without being the assigned party.
	adminOverride bool
}

var actorRules = map[Action]actorRule{
	ActionCreate:              {party: PartyRequester, role: identity.RoleRequester},
	ActionStartDesign:         {party: PartyDesigner, role: identity.RoleDesigner},
	ActionReturnForCorrection: {party: PartyDesigner, role: identity.RoleDesigner, adminOverride: true},
	ActionCompleteDesign:      {party: PartyDesigner, role: identity.RoleDesigner},
	ActionSubmitForApproval:   {party: PartyDesigner, role: identity.RoleDesigner},
	ActionApprove:             {party: PartyApprover, role: identity.RoleApprover},
	ActionReject:              {party: PartyApprover, role: identity.RoleApprover},
	ActionResubmit:            {party: PartyRequester, role: identity.RoleRequester},
	ActionResubmitForApproval: {party: PartyDesigner, role: identity.RoleDesigner},
}

// authorize checks that actor is the party action requires on req and holds
// the matching role. A role alone is never enough.
func authorize(actor identity.Actor, req *Request, action Action) error {
	if actor.ID == uuid.Nil {
		return apierrors.Unauthorized("an authenticated actor is required")
	}
	rule, ok := actorRules[action]
	if !ok {
		return apierrors.Forbidden(fmt.Sprintf("action %s is not permitted", action))
	}
	if rule.adminOverride && actor.IsAdmin() {
		return nil
	}
	if !actor.HasRole(rule.role) {
		return apierrors.Forbidden(fmt.Sprintf("action %s requires the %s role", action, rule.role))
	}

	var assigned *uuid.UUID
	switch rule.party {
	case PartyRequester:
		assigned = &req.RequesterID
	case PartyDesigner:
		assigned = req.DesignerID
	case PartyApprover:
		assigned = req.ApproverID
	}
	if assigned == nil || *assigned != actor.ID {
		return apierrors.Forbidden(fmt.Sprintf("only the %s may %s this request", rule.party, action))
	}
	return nil
}

// defaultComments gives every destination a deterministic history comment.
var defaultComments = map[Status]string{
	StatusDesignerReview:    "Request submitted for designer review.",
	StatusDesignInProgress:  "Design work started.",
	StatusPendingCorrection: "Request returned to the requester for correction.",
	StatusPendingApproval:   "Design submitted for approval.",
	StatusPendingRedesign:   "Design rejected by the approver; redesign required.",
	StatusCompleted:         "Design completed.",
}

// DefaultComment returns the system comment for a transition into to.
func DefaultComment(to Status) string {
	if c, ok := defaultComments[to]; ok {
		return c
	}
	return "Status changed to " + to.String() + "."
}

// notificationPlan names who hears about each committed action.
var notificationPlan = map[Action][]Party{
	ActionCreate:              {PartyDesigner},
	ActionStartDesign:         {PartyRequester},
	ActionReturnForCorrection: {PartyRequester},
	ActionCompleteDesign:      {PartyRequester},
	ActionSubmitForApproval:   {PartyApprover},
	ActionApprove:             {PartyRequester, PartyDesigner},
	ActionReject:              {PartyDesigner},
	ActionResubmit:            {PartyDesigner},
	ActionResubmitForApproval: {PartyApprover},
}

var notificationText = map[Action]string{
	ActionCreate:              "New design request assigned to you: %s",
	ActionStartDesign:         "Design work has started on %s",
	ActionReturnForCorrection: "Your request %s was returned for correction",
	ActionCompleteDesign:      "Your request %s is complete",
	ActionSubmitForApproval:   "A design for %s is awaiting your approval",
	ActionApprove:             "The design for %s was approved",
	ActionReject:              "The design for %s was rejected",
	ActionResubmit:            "Request %s was corrected and resubmitted",
	ActionResubmitForApproval: "A revised design for %s is awaiting your approval",
}

// recipients resolves the notification plan of action against req,
// skipping the actor and unassigned parties.
func recipients(req *Request, action Action, actorID uuid.UUID) []uuid.UUID {
	var out []uuid.UUID
	seen := map[uuid.UUID]bool{actorID: true}
	for _, p := range notificationPlan[action] {
		var id *uuid.UUID
		switch p {
		case PartyRequester:
			id = &req.RequesterID
		case PartyDesigner:
			id = req.DesignerID
		case PartyApprover:
			id = req.ApproverID
		}
		if id == nil || seen[*id] {
			continue
		}
		seen[*id] = true
		out = append(out, *id)
	}
	return out
}

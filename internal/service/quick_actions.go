package service

import (
	"fmt"

	"hospital-console-go/internal/model"
)

var quickActionCatalog = map[model.Role][]model.QuickAction{
	model.RolePatient: {
		{ID: "book-appointment", Label: "Book Appointment", Phrase: "Book Appointment"},
		{ID: "visiting-hours", Label: "Visiting Hours", Phrase: "What are the visiting hours?"},
		{ID: "find-doctor", Label: "Find a Doctor", Phrase: "How do I find a doctor for my condition?"},
		{ID: "emergency", Label: "Emergency Contact", Phrase: "What is the emergency contact number?"},
	},
	model.RoleVisitor: {
		{ID: "visiting-hours", Label: "Visiting Hours", Phrase: "What are the visiting hours?"},
		{ID: "parking", Label: "Parking", Phrase: "Where can visitors park?"},
		{ID: "cafeteria", Label: "Cafeteria", Phrase: "When is the cafeteria open?"},
		{ID: "directions", Label: "Directions", Phrase: "How do I find a patient's ward?"},
	},
	model.RoleStaff: {
		{ID: "department-contacts", Label: "Department Contacts", Phrase: "List the department contact numbers."},
		{ID: "shift-policy", Label: "Shift Policy", Phrase: "What is the shift handover policy?"},
		{ID: "infection-control", Label: "Infection Control", Phrase: "Summarize the infection control protocol."},
	},
	model.RoleAdmin: {
		{ID: "system-status", Label: "System Status", AdminWorkflow: model.WorkflowStatus},
		{ID: "appointments", Label: "Appointments", AdminWorkflow: model.WorkflowAppointments},
		{ID: "chat-history", Label: "Chat History", AdminWorkflow: model.WorkflowHistory},
		{ID: "notifications", Label: "Notifications", AdminWorkflow: model.WorkflowNotifications},
	},
}

func findQuickAction(role model.Role, id string) (model.QuickAction, bool) {
	for _, a := range quickActionCatalog[role] {
		if a.ID == id {
			return a, true
		}
	}
	return model.QuickAction{}, false
}

func welcomeMessage(sess model.Session) string {
	var hint string
	switch sess.Role {
	case model.RolePatient:
		hint = "I can help you book appointments, find doctors and answer questions about hospital services."
	case model.RoleVisitor:
		hint = "I can help with visiting hours, directions and facilities around the hospital."
	case model.RoleStaff:
		hint = "I can look up hospital policies, protocols and department information."
	case model.RoleAdmin:
		hint = "Use the quick actions to review system status, appointments, chat history and notifications."
	}
	article := "a"
	if sess.Role == model.RoleAdmin {
		article = "an"
	}
	return fmt.Sprintf("Hello %s! You are signed in as %s %s. %s", sess.DisplayName, article, sess.Role, hint)
}

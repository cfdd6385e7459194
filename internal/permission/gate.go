// Package permission decides whether one user may message another.
package permission

import (
	"context"
	"errors"

	"github.com/talentbridge/messaging/internal/model"
	"github.com/talentbridge/messaging/internal/store"
)

// ProfileReader reads receiver profiles.
type ProfileReader interface {
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
}

// ApplicationReader reads job applications.
type ApplicationReader interface {
	GetApplication(ctx context.Context, id string) (*model.Application, error)
}

// Gate evaluates messaging permission against profile and application state.
type Gate struct {
	profiles     ProfileReader
	applications ApplicationReader
}

// NewGate creates a new permission gate.
func NewGate(profiles ProfileReader, applications ApplicationReader) *Gate {
	return &Gate{
		profiles:     profiles,
		applications: applications,
	}
}

// CanMessage reports whether senderID may message receiverID.
//
// With an application id, the application must be accepted and link the two
// users. Without one, the receiver must be public or accept direct messages.
// A missing profile or application denies. Other read failures are returned
// so the caller can treat them as retryable store errors.
func (g *Gate) CanMessage(ctx context.Context, senderID, receiverID string, applicationID *string) (bool, error) {
	if senderID == "" || receiverID == "" || senderID == receiverID {
		return false, nil
	}

	if applicationID != nil && *applicationID != "" {
		app, err := g.applications.GetApplication(ctx, *applicationID)
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if !linksParticipants(app, senderID, receiverID) {
			return false, nil
		}
		return app.Status == model.ApplicationAccepted, nil
	}

	profile, err := g.profiles.GetProfile(ctx, receiverID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if profile == nil {
		return false, nil
	}

	return !profile.IsPrivate || profile.AcceptDM, nil
}

func linksParticipants(app *model.Application, a, b string) bool {
	if app == nil {
		return false
	}
	return (app.StudentID == a && app.EmployerID == b) || (app.StudentID == b && app.EmployerID == a)
}

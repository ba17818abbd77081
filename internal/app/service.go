package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kushan1992/diagram-builder/internal/accounts"
	"github.com/kushan1992/diagram-builder/internal/auth"
	"github.com/kushan1992/diagram-builder/internal/config"
	"github.com/kushan1992/diagram-builder/internal/email"
	"github.com/kushan1992/diagram-builder/internal/graph"
	"github.com/kushan1992/diagram-builder/internal/perm"
	"github.com/kushan1992/diagram-builder/internal/search"
	"github.com/kushan1992/diagram-builder/internal/store"
	"github.com/kushan1992/diagram-builder/internal/util"
)

// Session is the resolved principal for a request.
type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	Email        string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

// user materializes the session's principal for capability computation. The
// account role is immutable after creation, so the token copy is
// authoritative for its lifetime.
func (s Session) user() *store.User {
	if s.UserID == "" {
		return nil
	}
	return &store.User{ID: s.UserID, Email: s.Email, Role: s.Role}
}

type dataStore interface {
	GetUserByID(ctx context.Context, id string) (store.User, error)
	CreateDiagram(ctx context.Context, diagram store.Diagram) (string, error)
	GetDiagram(ctx context.Context, diagramID string) (store.Diagram, error)
	ListDiagramsForUser(ctx context.Context, userID string) ([]store.Diagram, error)
	ReplaceDiagramContent(ctx context.Context, diagramID string, nodes []store.Node, edges []store.Edge) error
	SetCollaborator(ctx context.Context, diagramID, userID, role string) error
	RemoveCollaborator(ctx context.Context, diagramID, userID string) error
	DeleteDiagram(ctx context.Context, diagramID string) error
	Ping(ctx context.Context) error
}

type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
	Ping(ctx context.Context) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	accounts *accounts.Service
	search   *search.Service
	email    *email.Service

	// saveMu serializes saves per diagram id so a session never runs two
	// persistence operations for the same diagram concurrently.
	saveMu    sync.Mutex
	saveLocks map[string]*sync.Mutex
}

func New(cfg config.Config, dataStore *store.PostgresStore, sessions sessionStore, accountsService *accounts.Service, searchService *search.Service, emailService *email.Service) *Service {
	return &Service{
		cfg:       cfg,
		store:     dataStore,
		sessions:  sessions,
		accounts:  accountsService,
		search:    searchService,
		email:     emailService,
		saveLocks: make(map[string]*sync.Mutex),
	}
}

// Accounts exposes the identity resolver to the HTTP layer.
func (s *Service) Accounts() *accounts.Service {
	return s.accounts
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) PingSessions(ctx context.Context) error {
	return s.sessions.Ping(ctx)
}

// CreateSession issues an access token and a rotating refresh token.
func (s *Service) CreateSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:   user.ID,
		Email: user.Email,
		Role:  user.Role,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		Email:        user.Email,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

// Refresh rotates a refresh token and issues a fresh session.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.CreateSession(ctx, user)
}

// Logout revokes the refresh token. Revoking an absent token is harmless.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	return s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
}

// SessionFromToken resolves the current principal from a bearer token.
func (s *Service) SessionFromToken(_ context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    claims.Sub,
		Email:     claims.Email,
		Role:      claims.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

// CreateDiagram produces an empty diagram owned by the caller. Only accounts
// with the global editor role may create diagrams.
func (s *Service) CreateDiagram(ctx context.Context, session Session, title string) (store.Diagram, error) {
	if !perm.CanCreate(perm.Role(session.Role)) {
		return store.Diagram{}, permissionDenied("Viewer accounts cannot create diagrams")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return store.Diagram{}, validationError("title is required")
	}

	id, err := s.store.CreateDiagram(ctx, store.Diagram{
		Title:      title,
		OwnerID:    session.UserID,
		OwnerEmail: session.Email,
	})
	if err != nil {
		return store.Diagram{}, err
	}

	diagram, err := s.store.GetDiagram(ctx, id)
	if err != nil {
		return store.Diagram{}, err
	}
	s.indexDiagram(diagram)
	return diagram, nil
}

// LoadDiagram fetches a diagram the caller may view, along with the caller's
// capability set.
func (s *Service) LoadDiagram(ctx context.Context, session Session, diagramID string) (store.Diagram, perm.Capabilities, error) {
	diagram, err := s.store.GetDiagram(ctx, diagramID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Diagram{}, perm.Capabilities{}, notFound("Diagram not found")
	}
	if err != nil {
		return store.Diagram{}, perm.Capabilities{}, err
	}

	caps := perm.Compute(session.user(), &diagram)
	if !caps.CanView {
		return store.Diagram{}, perm.Capabilities{}, permissionDenied("You do not have access to this diagram")
	}
	return diagram, caps, nil
}

// SaveDiagram overwrites the diagram's entire node and edge sequences. Last
// write wins across sessions; within a session saves for the same diagram
// are serialized.
func (s *Service) SaveDiagram(ctx context.Context, session Session, diagramID string, nodes []store.Node, edges []store.Edge) (store.Diagram, error) {
	lock := s.saveLock(diagramID)
	lock.Lock()
	defer lock.Unlock()

	diagram, err := s.store.GetDiagram(ctx, diagramID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Diagram{}, notFound("Diagram not found")
	}
	if err != nil {
		return store.Diagram{}, err
	}

	caps := perm.Compute(session.user(), &diagram)
	if !caps.CanEdit {
		return store.Diagram{}, permissionDenied("You do not have edit access to this diagram")
	}

	container := graph.NewContainer(caps)
	if err := container.Load(nodes, edges); err != nil {
		return store.Diagram{}, validationError(err.Error())
	}
	validNodes, validEdges := container.Snapshot()

	if err := s.store.ReplaceDiagramContent(ctx, diagramID, validNodes, validEdges); err != nil {
		return store.Diagram{}, err
	}

	diagram.Nodes = validNodes
	diagram.Edges = validEdges
	diagram.UpdatedAt = time.Now()
	return diagram, nil
}

// ShareDiagram grants a collaborator role by email. Only the owner may
// share. Re-granting an identical role is rejected, not silently accepted.
func (s *Service) ShareDiagram(ctx context.Context, session Session, diagramID, targetEmail, roleStr string) (store.Diagram, error) {
	role, ok := perm.Parse(roleStr)
	if !ok {
		return store.Diagram{}, validationError("role must be editor or viewer")
	}

	diagram, err := s.store.GetDiagram(ctx, diagramID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Diagram{}, notFound("Diagram not found")
	}
	if err != nil {
		return store.Diagram{}, err
	}

	caps := perm.Compute(session.user(), &diagram)
	if !caps.CanShare {
		return store.Diagram{}, permissionDenied("Only the owner can share this diagram")
	}

	target, err := s.accounts.ResolveEmail(ctx, targetEmail)
	if errors.Is(err, accounts.ErrUserNotFound) {
		return store.Diagram{}, userNotFound(targetEmail)
	}
	if err != nil {
		return store.Diagram{}, err
	}

	if target.ID == diagram.OwnerID {
		return store.Diagram{}, invalidTarget("Cannot share a diagram with its owner")
	}
	if existing, isCollaborator := diagram.Collaborators[target.ID]; isCollaborator && existing == string(role) {
		return store.Diagram{}, alreadyShared(existing)
	}

	// Single-key merge, not a read-modify-write of the whole map.
	if err := s.store.SetCollaborator(ctx, diagramID, target.ID, string(role)); err != nil {
		return store.Diagram{}, err
	}

	diagram.Collaborators[target.ID] = string(role)
	s.indexDiagram(diagram)
	s.notifyShare(target.Email, diagram, string(role))
	return diagram, nil
}

// UnshareDiagram revokes a collaborator's access. Removing a uid that is not
// a collaborator is a harmless no-op.
func (s *Service) UnshareDiagram(ctx context.Context, session Session, diagramID, targetUID string) (store.Diagram, error) {
	diagram, err := s.store.GetDiagram(ctx, diagramID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Diagram{}, notFound("Diagram not found")
	}
	if err != nil {
		return store.Diagram{}, err
	}

	caps := perm.Compute(session.user(), &diagram)
	if !caps.CanShare {
		return store.Diagram{}, permissionDenied("Only the owner can manage collaborators")
	}

	if err := s.store.RemoveCollaborator(ctx, diagramID, targetUID); err != nil {
		return store.Diagram{}, err
	}

	delete(diagram.Collaborators, targetUID)
	s.indexDiagram(diagram)
	return diagram, nil
}

// DeleteDiagram removes the diagram document. Owner only; irreversible.
func (s *Service) DeleteDiagram(ctx context.Context, session Session, diagramID string) error {
	diagram, err := s.store.GetDiagram(ctx, diagramID)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound("Diagram not found")
	}
	if err != nil {
		return err
	}

	caps := perm.Compute(session.user(), &diagram)
	if !caps.CanDelete {
		return permissionDenied("Only the owner can delete this diagram")
	}

	if err := s.store.DeleteDiagram(ctx, diagramID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteDiagram(diagramID)
	}
	return nil
}

// ListDiagrams returns every diagram the caller owns or collaborates on.
// Ordering is unspecified; callers sort client-side if they need one.
func (s *Service) ListDiagrams(ctx context.Context, session Session) ([]store.Diagram, error) {
	diagrams, err := s.store.ListDiagramsForUser(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if diagrams == nil {
		diagrams = []store.Diagram{}
	}
	return diagrams, nil
}

// SearchDiagrams runs a title search scoped to the caller's diagrams.
func (s *Service) SearchDiagrams(ctx context.Context, session Session, text string, limit int) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}
	}
	return s.search.Search(ctx, search.Query{Text: text, UserID: session.UserID, Limit: limit})
}

func (s *Service) saveLock(diagramID string) *sync.Mutex {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	lock, ok := s.saveLocks[diagramID]
	if !ok {
		lock = &sync.Mutex{}
		s.saveLocks[diagramID] = lock
	}
	return lock
}

func (s *Service) indexDiagram(diagram store.Diagram) {
	if s.search == nil {
		return
	}
	members := make([]string, 0, len(diagram.Collaborators)+1)
	members = append(members, diagram.OwnerID)
	for uid := range diagram.Collaborators {
		members = append(members, uid)
	}
	s.search.IndexDiagram(search.Record{
		ID:         diagram.ID,
		Title:      diagram.Title,
		OwnerEmail: diagram.OwnerEmail,
		Members:    members,
	})
}

// notifyShare sends a best-effort share notification. Mail failure never
// fails the share.
func (s *Service) notifyShare(targetEmail string, diagram store.Diagram, role string) {
	if s.email == nil || !s.email.IsConfigured() {
		return
	}
	go func() {
		url := "/diagram/" + diagram.ID
		if err := s.email.SendShareNotification(targetEmail, diagram.OwnerEmail, diagram.Title, role, url); err != nil {
			log.Warn().Err(err).Str("diagram", diagram.ID).Msg("share notification failed")
		}
	}()
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
	`, user.ID, user.Email, user.PasswordHash, user.Role)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByEmail looks up a user by email, case-insensitively.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, role, created_at
		FROM users WHERE LOWER(email) = LOWER($1)
	`, email).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, role, created_at
		FROM users WHERE id = $1
	`, userID).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// CreateDiagram inserts the diagram and returns the store-generated id.
func (s *PostgresStore) CreateDiagram(ctx context.Context, diagram Diagram) (string, error) {
	id := uuid.NewString()

	nodes, edges, collaborators, err := marshalDiagramFields(diagram)
	if err != nil {
		return "", err
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO diagrams (id, title, owner_id, owner_email, nodes, edges, collaborators)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id, diagram.Title, diagram.OwnerID, diagram.OwnerEmail, nodes, edges, collaborators); err != nil {
		return "", fmt.Errorf("insert diagram: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) GetDiagram(ctx context.Context, diagramID string) (Diagram, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, owner_id, owner_email, nodes, edges, collaborators, created_at, updated_at
		FROM diagrams WHERE id = $1
	`, diagramID)
	return scanDiagram(row)
}

// ListDiagramsForUser returns diagrams where the user is owner or appears in
// the collaborator map. The single query dedups by construction; ordering is
// a courtesy only.
func (s *PostgresStore) ListDiagramsForUser(ctx context.Context, userID string) ([]Diagram, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, owner_id, owner_email, nodes, edges, collaborators, created_at, updated_at
		FROM diagrams
		WHERE owner_id = $1 OR collaborators ? $1
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list diagrams: %w", err)
	}
	defer rows.Close()

	var diagrams []Diagram
	for rows.Next() {
		diagram, err := scanDiagram(rows)
		if err != nil {
			return nil, err
		}
		diagrams = append(diagrams, diagram)
	}
	return diagrams, rows.Err()
}

// ReplaceDiagramContent overwrites the entire node and edge sequences and
// bumps updated_at. Last write wins; there is no optimistic-concurrency check.
func (s *PostgresStore) ReplaceDiagramContent(ctx context.Context, diagramID string, nodes []Node, edges []Edge) error {
	nodesJSON, err := json.Marshal(emptyIfNilNodes(nodes))
	if err != nil {
		return fmt.Errorf("marshal nodes: %w", err)
	}
	edgesJSON, err := json.Marshal(emptyIfNilEdges(edges))
	if err != nil {
		return fmt.Errorf("marshal edges: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE diagrams SET nodes = $2, edges = $3, updated_at = NOW() WHERE id = $1
	`, diagramID, nodesJSON, edgesJSON)
	if err != nil {
		return fmt.Errorf("update diagram content: %w", err)
	}
	return requireRow(result)
}

// SetCollaborator merges a single collaborator key atomically instead of
// rewriting the whole map, so concurrent grants on the same diagram cannot
// clobber each other.
func (s *PostgresStore) SetCollaborator(ctx context.Context, diagramID, userID, role string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE diagrams
		SET collaborators = collaborators || jsonb_build_object($2::text, $3::text),
		    updated_at = NOW()
		WHERE id = $1
	`, diagramID, userID, role)
	if err != nil {
		return fmt.Errorf("set collaborator: %w", err)
	}
	return requireRow(result)
}

// RemoveCollaborator deletes a single collaborator key. Removing an absent
// key is a harmless no-op.
func (s *PostgresStore) RemoveCollaborator(ctx context.Context, diagramID, userID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE diagrams
		SET collaborators = collaborators - $2, updated_at = NOW()
		WHERE id = $1
	`, diagramID, userID)
	if err != nil {
		return fmt.Errorf("remove collaborator: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStore) DeleteDiagram(ctx context.Context, diagramID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM diagrams WHERE id = $1`, diagramID)
	if err != nil {
		return fmt.Errorf("delete diagram: %w", err)
	}
	return nil
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDiagram(row rowScanner) (Diagram, error) {
	var diagram Diagram
	var nodesJSON, edgesJSON, collaboratorsJSON []byte

	err := row.Scan(
		&diagram.ID, &diagram.Title, &diagram.OwnerID, &diagram.OwnerEmail,
		&nodesJSON, &edgesJSON, &collaboratorsJSON,
		&diagram.CreatedAt, &diagram.UpdatedAt,
	)
	if err != nil {
		return Diagram{}, err
	}

	diagram.Nodes = []Node{}
	if err := json.Unmarshal(nodesJSON, &diagram.Nodes); err != nil {
		return Diagram{}, fmt.Errorf("unmarshal nodes: %w", err)
	}
	diagram.Edges = []Edge{}
	if err := json.Unmarshal(edgesJSON, &diagram.Edges); err != nil {
		return Diagram{}, fmt.Errorf("unmarshal edges: %w", err)
	}
	diagram.Collaborators = map[string]string{}
	if err := json.Unmarshal(collaboratorsJSON, &diagram.Collaborators); err != nil {
		return Diagram{}, fmt.Errorf("unmarshal collaborators: %w", err)
	}
	return diagram, nil
}

func marshalDiagramFields(diagram Diagram) (nodes, edges, collaborators []byte, err error) {
	nodes, err = json.Marshal(emptyIfNilNodes(diagram.Nodes))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal nodes: %w", err)
	}
	edges, err = json.Marshal(emptyIfNilEdges(diagram.Edges))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal edges: %w", err)
	}
	collabMap := diagram.Collaborators
	if collabMap == nil {
		collabMap = map[string]string{}
	}
	collaborators, err = json.Marshal(collabMap)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal collaborators: %w", err)
	}
	return nodes, edges, collaborators, nil
}

func emptyIfNilNodes(nodes []Node) []Node {
	if nodes == nil {
		return []Node{}
	}
	return nodes
}

func emptyIfNilEdges(edges []Edge) []Edge {
	if edges == nil {
		return []Edge{}
	}
	return edges
}

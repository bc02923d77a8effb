package store

import (
	"context"
	"encoding/json"
	"fmt"

	"codesift.app/codesift/common/id"
	"codesift.app/codesift/core/db"
	"codesift.app/codesift/internal/model"
)

type agentUpdateStore struct {
	db *db.DB
}

func NewAgentUpdateStore(database *db.DB) AgentUpdateStore {
	return &agentUpdateStore{db: database}
}

func (s *agentUpdateStore) Create(ctx context.Context, runID int64, messageID string, update model.AgentUpdate) error {
	details, err := json.Marshal(update.Details)
	if err != nil {
		return fmt.Errorf("encoding update details: %w", err)
	}

	_, err = s.db.Pool().Exec(ctx, `
		INSERT INTO agent_updates (id, run_id, message_id, agent, repo_path, action, summary, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id.New(), runID, messageID, update.Agent, update.RepoPath,
		update.Action, update.Summary, details, update.Timestamp)
	if err != nil {
		return fmt.Errorf("inserting agent update: %w", err)
	}
	return nil
}

func (s *agentUpdateStore) ListByRun(ctx context.Context, runID int64) ([]model.AgentUpdate, error) {
	rows, err := s.db.Pool().Query(ctx, `
		SELECT agent, repo_path, action, summary, details, created_at
		FROM agent_updates
		WHERE run_id = $1
		ORDER BY created_at ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing agent updates: %w", err)
	}
	defer rows.Close()

	var updates []model.AgentUpdate
	for rows.Next() {
		var update model.AgentUpdate
		var details []byte
		if err := rows.Scan(&update.Agent, &update.RepoPath, &update.Action, &update.Summary, &details, &update.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning agent update: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &update.Details); err != nil {
				return nil, fmt.Errorf("decoding update details: %w", err)
			}
		}
		updates = append(updates, update)
	}
	return updates, rows.Err()
}

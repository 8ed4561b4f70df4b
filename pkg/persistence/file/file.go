// Package file provides a file-backed gateway implementation for development and tests.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aubira/flowd/pkg/models"
	"github.com/aubira/flowd/pkg/persistence"
	"github.com/google/uuid"
)

// Gateway implements persistence.Gateway on top of the local file system. One
// JSON file per record; adequate for single-process development use only.
type Gateway struct {
	root string
	mu   sync.Mutex
}

func NewGateway(root string) *Gateway {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Gateway{root: cleanRoot}
}

func (g *Gateway) CreateExecution(ctx context.Context, workflowID, userID string, inputs map[string]any) (*models.ExecutionRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	record := &models.ExecutionRecord{
		ID:         uuid.New().String(),
		WorkflowID: workflowID,
		UserID:     userID,
		Status:     models.ExecutionStatusPending,
		Inputs:     inputs,
		CreatedAt:  time.Now().UTC(),
	}

	if err := g.write("executions", record.ID, record); err != nil {
		return nil, persistence.NewExecutionError("Create", record.ID, err)
	}

	return record, nil
}

func (g *Gateway) UpdateExecution(ctx context.Context, id string, status models.ExecutionStatus, update persistence.ExecutionUpdate) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var record models.ExecutionRecord
	if err := g.read("executions", id, &record); err != nil {
		return persistence.NewExecutionError("Update", id, err)
	}

	record.Status = status

	if update.Outputs != nil {
		record.Outputs = update.Outputs
	}

	if update.Error != "" {
		record.Error = update.Error
	}

	if update.StartedAt != nil {
		record.StartedAt = update.StartedAt
	}

	if update.CompletedAt != nil {
		record.CompletedAt = update.CompletedAt
	}

	if err := g.write("executions", id, &record); err != nil {
		return persistence.NewExecutionError("Update", id, err)
	}

	return nil
}

func (g *Gateway) ExecutionByID(ctx context.Context, id string) (*models.ExecutionRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var record models.ExecutionRecord
	if err := g.read("executions", id, &record); err != nil {
		return nil, err
	}

	return &record, nil
}

func (g *Gateway) ListExecutions(ctx context.Context, workflowID string, limit int) ([]*models.ExecutionRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var records []*models.ExecutionRecord

	err := g.readAll("executions", func(raw []byte) error {
		var record models.ExecutionRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			return err
		}

		if record.WorkflowID == workflowID {
			records = append(records, &record)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	return records, nil
}

func (g *Gateway) CreateNodeExecution(ctx context.Context, executionID, nodeID, nodeType string, inputs map[string]any, startedAt time.Time) (*models.NodeExecutionRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	record := &models.NodeExecutionRecord{
		ID:          uuid.New().String(),
		ExecutionID: executionID,
		NodeID:      nodeID,
		NodeType:    nodeType,
		Status:      "running",
		Inputs:      inputs,
		StartedAt:   startedAt,
	}

	if err := g.write("node_executions", record.ID, record); err != nil {
		return nil, err
	}

	return record, nil
}

func (g *Gateway) UpdateNodeExecution(ctx context.Context, id string, update persistence.NodeExecutionUpdate) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var record models.NodeExecutionRecord
	if err := g.read("node_executions", id, &record); err != nil {
		return err
	}

	if update.Status != "" {
		record.Status = update.Status
	}

	if update.Outputs != nil {
		record.Outputs = update.Outputs
	}

	if update.Error != "" {
		record.Error = update.Error
	}

	if update.CompletedAt != nil {
		record.CompletedAt = update.CompletedAt
	}

	return g.write("node_executions", id, &record)
}

func (g *Gateway) ListNodeExecutions(ctx context.Context, executionID string) ([]*models.NodeExecutionRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var records []*models.NodeExecutionRecord

	err := g.readAll("node_executions", func(raw []byte) error {
		var record models.NodeExecutionRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			return err
		}

		if record.ExecutionID == executionID {
			records = append(records, &record)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.Before(records[j].StartedAt)
	})

	return records, nil
}

func (g *Gateway) InsertUsage(ctx context.Context, usage *models.AIUsage) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.write("usage", uuid.New().String(), usage)
}

func (g *Gateway) ListUsage(ctx context.Context, userID string, since time.Time) ([]*models.AIUsage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var records []*models.AIUsage

	err := g.readAll("usage", func(raw []byte) error {
		var record models.AIUsage
		if err := json.Unmarshal(raw, &record); err != nil {
			return err
		}

		if record.UserID == userID && record.CreatedAt.After(since) {
			records = append(records, &record)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

func (g *Gateway) ListExecutionUsage(ctx context.Context, executionID string) ([]*models.AIUsage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var records []*models.AIUsage

	err := g.readAll("usage", func(raw []byte) error {
		var record models.AIUsage
		if err := json.Unmarshal(raw, &record); err != nil {
			return err
		}

		if record.ExecutionID == executionID {
			records = append(records, &record)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})

	return records, nil
}

func (g *Gateway) HealthCheck(ctx context.Context) error {
	if _, err := os.Stat(g.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (g *Gateway) Close(ctx context.Context) error {
	return nil
}

func (g *Gateway) write(kind, id string, v any) error {
	dir := filepath.Join(g.root, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", kind, err)
	}

	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s record: %w", kind, err)
	}

	return os.WriteFile(filepath.Join(dir, id+".json"), raw, 0o644)
}

func (g *Gateway) read(kind, id string, v any) error {
	raw, err := os.ReadFile(filepath.Join(g.root, kind, id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return g.notFound(kind)
		}

		return err
	}

	return json.Unmarshal(raw, v)
}

func (g *Gateway) readAll(kind string, visit func(raw []byte) error) error {
	dir := filepath.Join(g.root, kind)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return err
		}

		if err := visit(raw); err != nil {
			return err
		}
	}

	return nil
}

func (g *Gateway) notFound(kind string) error {
	if kind == "node_executions" {
		return persistence.ErrNodeExecutionNotFound
	}

	return persistence.ErrExecutionNotFound
}

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"breederhub/api/internal/config"
	"breederhub/api/internal/db"
	"breederhub/api/internal/models"
	"breederhub/api/internal/utils"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TypeAuditRecord is the asynq task type carrying one AuditEntry.
const TypeAuditRecord = "audit:record"

const redactedValue = "[REDACTED]"

var sensitiveKeys = map[string]struct{}{
	"password":           {},
	"old_password":       {},
	"new_password":       {},
	"token":              {},
	"reset_token":        {},
	"verification_token": {},
	"authorization":      {},
	"cookie":             {},
}

// TaskEnqueuer is the part of *asynq.Client used to hand work to the background worker.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// IAuditService records who did what. Recording never fails the caller.
type IAuditService interface {
	Record(ctx context.Context, entry models.AuditEntry)
	Persist(ctx context.Context, entry *models.AuditEntry) error
	ListRecent(ctx context.Context, limit int) ([]models.AuditEntry, error)
}

// auditQueueSize bounds the entries waiting for Redis. Entries beyond it are dropped.
const auditQueueSize = 256

type pendingAudit struct {
	action string
	task   *asynq.Task
}

// auditService implements IAuditService.
type auditService struct {
	db         *mongo.Database
	cfg        *config.Config
	taskClient TaskEnqueuer

	pending   chan pendingAudit
	startOnce sync.Once
}

// NewAuditService creates a new AuditService. taskClient may be nil, which disables recording.
func NewAuditService(db *mongo.Database, cfg *config.Config, taskClient TaskEnqueuer) IAuditService {
	return &auditService{db: db, cfg: cfg, taskClient: taskClient, pending: make(chan pendingAudit, auditQueueSize)}
}

// Record hands the entry to a background sender and returns at once. A full queue or a
// failed enqueue is logged and the entry dropped.
func (s *auditService) Record(ctx context.Context, entry models.AuditEntry) {
	if s.taskClient == nil || (s.cfg != nil && !s.cfg.AuditEnabled) {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	entry.Metadata = RedactMetadata(entry.Metadata)

	payload, err := json.Marshal(entry)
	if err != nil {
		log.Printf("WARN: audit entry %q not recorded: %v", entry.Action, err)
		return
	}

	s.startOnce.Do(func() { go s.send() })
	select {
	case s.pending <- pendingAudit{action: entry.Action, task: asynq.NewTask(TypeAuditRecord, payload)}:
	default:
		log.Printf("WARN: audit queue full, entry %q dropped", entry.Action)
	}
}

// send forwards queued entries to the task queue for the life of the process.
func (s *auditService) send() {
	for p := range s.pending {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, err := s.taskClient.EnqueueContext(ctx, p.task, asynq.Queue("low"), asynq.MaxRetry(3), asynq.Timeout(10*time.Second))
		cancel()
		if err != nil {
			log.Printf("WARN: audit entry %q not queued: %v", p.action, err)
		}
	}
}

// Persist stores an entry. It is called by the background worker.
func (s *auditService) Persist(ctx context.Context, entry *models.AuditEntry) error {
	collection := s.db.Collection(db.AuditLogsCollection)
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	entry.Metadata = RedactMetadata(entry.Metadata)

	err := db.Try(func() error {
		entry.GenID()
		_, insertErr := collection.InsertOne(ctx, entry)
		return insertErr
	})
	if err != nil {
		return fmt.Errorf("failed to insert audit entry %q: %w", entry.Action, err)
	}
	return nil
}

// ListRecent returns the latest entries, newest first.
func (s *auditService) ListRecent(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(int64(limit))
	cursor, err := s.db.Collection(db.AuditLogsCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing audit entries: %w", err)
	}
	defer cursor.Close(ctx)

	entries := []models.AuditEntry{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("error decoding audit entries: %w", err)
	}
	return entries, nil
}

// RedactMetadata returns a copy of m with credential values replaced, at any nesting depth.
func RedactMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if _, ok := sensitiveKeys[strings.ToLower(k)]; ok {
			out[k] = redactedValue
			continue
		}
		out[k] = redactValue(v)
	}
	return out
}

func redactValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return RedactMetadata(t)
	case []any:
		items := make([]any, len(t))
		for i, item := range t {
			items[i] = redactValue(item)
		}
		return items
	default:
		return v
	}
}

// AuditUserID is a convenience for building entries from an optional principal.
func AuditUserID(p *models.Principal) *utils.SixID {
	if p == nil {
		return nil
	}
	id := p.UserID
	return &id
}

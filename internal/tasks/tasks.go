package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"log"
	"time"

	"breederhub/api/internal/config"
	"breederhub/api/internal/models"
	"breederhub/api/internal/services"
	"breederhub/api/internal/storage"
	"breederhub/api/internal/utils"
	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"github.com/redis/go-redis/v9"
)

// TaskType defines the type of a background task.
const (
	TypeAuditRecord  = services.TypeAuditRecord
	TypeImageProcess = "image:process"
)

// --- Task Client (Enqueuing tasks) ---

func redisOpt(rdb *redis.Client) asynq.RedisClientOpt {
	o := rdb.Options()
	return asynq.RedisClientOpt{Addr: o.Addr, Password: o.Password, DB: o.DB}
}

func NewClient(rdb *redis.Client) *asynq.Client {
	return asynq.NewClient(redisOpt(rdb))
}

// ImageTaskPayload asks the worker to normalise an uploaded listing image.
type ImageTaskPayload struct {
	S3Key     string `json:"s3_key"`
	ListingID string `json:"listing_id"`
}

// NewImageProcessTask builds the task for an uploaded image.
func NewImageProcessTask(key string, listingID utils.SixID) (*asynq.Task, error) {
	payload, err := json.Marshal(ImageTaskPayload{S3Key: key, ListingID: listingID.String()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeImageProcess, payload, asynq.Queue("images"), asynq.MaxRetry(5), asynq.Timeout(2*time.Minute)), nil
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of tasks.
// It holds dependencies needed by task handlers.
type TaskProcessor struct {
	cfg            *config.Config
	storageService storage.IS3Storage
	listingService services.IListingService
	auditService   services.IAuditService
}

func NewTaskProcessor(
	cfg *config.Config,
	storageService storage.IS3Storage,
	listingService services.IListingService,
	auditService services.IAuditService,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:            cfg,
		storageService: storageService,
		listingService: listingService,
		auditService:   auditService,
	}
}

// NewServeMux registers the handlers for the given worker roles.
func NewServeMux(processor *TaskProcessor, isImageWorker, isBgWorker bool) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	if isBgWorker {
		mux.HandleFunc(TypeAuditRecord, processor.HandleAuditRecordTask)
		fmt.Println("Registered background task handlers.")
	}
	if isImageWorker {
		mux.HandleFunc(TypeImageProcess, processor.HandleImageProcessTask)
		fmt.Println("Registered image processing task handlers.")
	}
	return mux
}

// SetupServer configures an Asynq server and its mux. The caller starts it with Start and
// stops it with Shutdown. Returns nil when no worker role is enabled.
func SetupServer(rdb *redis.Client, processor *TaskProcessor, isImageWorker bool, isBgWorker bool) (*asynq.Server, *asynq.ServeMux) {
	if !isBgWorker && !isImageWorker {
		fmt.Println("Running in API mode, no task server started.")
		return nil, nil
	}

	srv := asynq.NewServer(
		redisOpt(rdb),
		asynq.Config{
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
				"images":   5,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("ERROR: task %s failed: %v", task.Type(), err)
			}),
		},
	)
	return srv, NewServeMux(processor, isImageWorker, isBgWorker)
}

// --- Task Handlers ---

// HandleAuditRecordTask persists one audit entry.
func (p *TaskProcessor) HandleAuditRecordTask(ctx context.Context, t *asynq.Task) error {
	var entry models.AuditEntry
	if err := json.Unmarshal(t.Payload(), &entry); err != nil {
		return fmt.Errorf("failed to unmarshal audit payload: %v: %w", err, asynq.SkipRetry)
	}
	if entry.Action == "" {
		return fmt.Errorf("audit entry without action: %w", asynq.SkipRetry)
	}
	return p.auditService.Persist(ctx, &entry)
}

// HandleImageProcessTask downsizes an uploaded listing image that exceeds the configured
// dimensions, then points the listing at it.
func (p *TaskProcessor) HandleImageProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ImageTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal image task payload: %v: %w", err, asynq.SkipRetry)
	}

	listingID, err := utils.ParseSixID(payload.ListingID)
	if err != nil {
		log.Printf("Invalid ListingID in image task payload: %s", payload.ListingID)
		return fmt.Errorf("invalid listing ID in payload: %w", asynq.SkipRetry)
	}

	log.Printf("Processing image task: S3Key=%s, ListingID=%s", payload.S3Key, payload.ListingID)

	imgData, contentType, err := p.storageService.GetObject(ctx, payload.S3Key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			log.Printf("S3 object %s not found, likely upload failed or key incorrect.", payload.S3Key)
			return fmt.Errorf("s3 object not found: %w", asynq.SkipRetry)
		}
		return fmt.Errorf("failed to download image from S3: %w", err)
	}

	maxSizeBytes := int64(p.cfg.ImageMaxSizeMB) * 1024 * 1024
	if int64(len(imgData)) > maxSizeBytes {
		log.Printf("Image %s exceeds max size (%d > %d bytes). Deleting.", payload.S3Key, len(imgData), maxSizeBytes)
		p.discard(ctx, payload.S3Key)
		return fmt.Errorf("image exceeds max size: %w", asynq.SkipRetry)
	}

	img, format, err := image.Decode(bytes.NewReader(imgData))
	if err != nil {
		log.Printf("Error decoding image for key %s: %v", payload.S3Key, err)
		p.discard(ctx, payload.S3Key)
		return fmt.Errorf("unsupported image format or corrupt image: %w", asynq.SkipRetry)
	}

	maxDim := uint(p.cfg.ImageMaxDimension)
	if uint(img.Bounds().Dx()) > maxDim || uint(img.Bounds().Dy()) > maxDim {
		log.Printf("Resizing %s image %s from %dx%d to fit %d", format, payload.S3Key, img.Bounds().Dx(), img.Bounds().Dy(), maxDim)
		resized := resize.Thumbnail(maxDim, maxDim, img, resize.Lanczos3)
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
			return fmt.Errorf("failed to re-encode resized image: %w", err)
		}
		if err := p.storageService.PutObject(ctx, payload.S3Key, buf.Bytes(), "image/jpeg"); err != nil {
			return fmt.Errorf("failed to upload processed image: %w", err)
		}
		contentType = "image/jpeg"
	}

	if err := p.listingService.SetListingImage(ctx, listingID, payload.S3Key); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			log.Printf("Listing %s vanished before its image %s was processed", payload.ListingID, payload.S3Key)
			p.discard(ctx, payload.S3Key)
			return fmt.Errorf("listing not found: %w", asynq.SkipRetry)
		}
		return fmt.Errorf("failed to update listing with processed image: %w", err)
	}

	log.Printf("Image task processed successfully: Key=%s (%s), ListingID=%s", payload.S3Key, contentType, payload.ListingID)
	return nil
}

func (p *TaskProcessor) discard(ctx context.Context, key string) {
	if err := p.storageService.DeleteObject(ctx, key); err != nil {
		log.Printf("WARN: could not delete rejected image %s: %v", key, err)
	}
}
